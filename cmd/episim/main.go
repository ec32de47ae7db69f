package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
	"github.com/san-kum/episim/internal/observe"
	"github.com/san-kum/episim/internal/server"
	"github.com/san-kum/episim/internal/sim"
	"github.com/san-kum/episim/internal/viz"
)

var (
	format    string
	outFile   string
	saveFile  string
	height    int
	width     int
	theme     string
	timeout   time.Duration
	addr      string
	r0From    float64
	r0To      float64
	r0Steps   int
	workers   int
	every     int
	alignFlag string
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("[EPISIM] ")

	rootCmd := &cobra.Command{
		Use:           "episim",
		Short:         "compartmental epidemic models against observed case data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "wall-clock limit for a single solve")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "solve a scenario and print the series",
		Args:  cobra.NoArgs,
		RunE:  runScenario,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	runCmd.Flags().StringVarP(&outFile, "out", "o", "", "write output to file instead of stdout")
	runCmd.Flags().StringVar(&saveFile, "save", "", "save the resolved scenario as yaml")
	runCmd.Flags().IntVar(&every, "every", 10, "print every n-th sample in table format")

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "plot a scenario in the terminal",
		Args:  cobra.NoArgs,
		RunE:  plotScenario,
	}
	addScenarioFlags(plotCmd)
	addPlotFlags(plotCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same scenario",
		RunE:  compareIntegrators,
	}
	addScenarioFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve a scenario over a range of R0 values",
		Args:  cobra.NoArgs,
		RunE:  sweepR0,
	}
	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&r0From, "from", 1.5, "first R0")
	sweepCmd.Flags().Float64Var(&r0To, "to", 3.5, "last R0")
	sweepCmd.Flags().IntVar(&r0Steps, "steps", 5, "number of R0 values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (default GOMAXPROCS)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	observationsCmd := &cobra.Command{
		Use:   "observations [dataset]",
		Short: "print an observation set",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printObservations,
	}
	observationsCmd.Flags().StringVar(&alignFlag, "epoch", "", "show day offsets relative to this date")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive view that re-solves on parameter changes",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)
	addPlotFlags(liveCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the simulation API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	addScenarioFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	rootCmd.AddCommand(runCmd, plotCmd, compareCmd, sweepCmd, presetsCmd, observationsCmd, liveCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Print(err)
		os.Exit(exitCode(err))
	}
}

func addPlotFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&height, "height", viz.DefaultHeight, "plot height in rows")
	cmd.Flags().IntVar(&width, "width", viz.DefaultWidth, "plot width in columns")
	cmd.Flags().StringVar(&theme, "theme", viz.ThemeClassic.Name, fmt.Sprintf("color theme %v", viz.ThemeNames()))
}

// exitCode is 2 for rejected input and 3 for a failed integration.
func exitCode(err error) int {
	switch {
	case dynamo.IsInvalidParameter(err):
		return 2
	case dynamo.IsNumerical(err):
		return 3
	default:
		return 1
	}
}

func buildExperiment(cmd *cobra.Command) (*experiment.Experiment, *config.Config, error) {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return nil, nil, err
	}
	expCfg, err := cfg.Experiment()
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(experiment.NewRegistry(), expCfg)
	if err != nil {
		return nil, nil, err
	}
	return exp, cfg, nil
}

func solve(cmd *cobra.Command) (*experiment.Outcome, *config.Config, error) {
	exp, cfg, err := buildExperiment(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out, err := exp.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return out, cfg, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	out, cfg, err := solve(cmd)
	if err != nil {
		return err
	}
	if saveFile != "" {
		if err := config.Save(saveFile, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "csv":
		return export.WriteCSV(w, out)
	case "json":
		return export.WriteJSON(w, export.NewReport(out, cfg.Integrator))
	case "table":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	res := out.Result
	fmt.Fprintf(w, "%s via %s, t=%g..%g (%d samples, %d steps, %d evaluations)\n\n",
		strings.ToUpper(string(out.Model)), cfg.Integrator, res.Times[0], res.Times[res.Len()-1],
		res.Len(), res.Stats.Steps, res.Stats.Evaluations)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "t\tdate\t" + strings.Join(res.Compartments, "\t") + "\t"
	fmt.Fprintln(tw, header)
	step := max(every, 1)
	for i := 0; i < res.Len(); i++ {
		if i%step != 0 && i != res.Len()-1 && res.Times[i] != 0 {
			continue
		}
		date := "-"
		if !out.Epoch.IsZero() {
			date = out.DateAt(res.Times[i]).String()
		}
		fmt.Fprintf(tw, "%g\t%s\t", res.Times[i], date)
		for _, v := range res.States[i] {
			fmt.Fprintf(tw, "%.0f\t", v)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	return printMetrics(w, res.Metrics)
}

func printMetrics(w io.Writer, metrics map[string]float64) error {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%.6g\n", k, metrics[k])
	}
	return tw.Flush()
}

func plotOptions(cfg *config.Config) viz.PlotOptions {
	return viz.PlotOptions{
		Height: height,
		Width:  width,
		YMax:   cfg.YMax,
		Theme:  viz.GetTheme(theme),
	}
}

func plotScenario(cmd *cobra.Command, args []string) error {
	out, cfg, err := solve(cmd)
	if err != nil {
		return err
	}
	fmt.Println(viz.Plot(out, plotOptions(cfg)))
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	names := args
	if len(names) == 0 {
		names = registry.ListIntegrators()
	}

	base, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	expCfg, err := base.Experiment()
	if err != nil {
		return err
	}

	reference, err := runWith(cmd.Context(), registry, expCfg, experiment.DefaultIntegrator)
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s (t=%d..%d, reference %s)\n\n", base.Model, base.Window.TMin, base.Window.TMax, experiment.DefaultIntegrator)
	fmt.Printf("%-10s  %-14s  %-10s  %-8s  %-8s  %-14s  %-8s\n", "integrator", "peak_infected", "peak_day", "steps", "evals", "max_deviation", "time_ms")
	fmt.Println(strings.Repeat("-", 84))

	for _, name := range names {
		start := time.Now()
		out, err := runWith(cmd.Context(), registry, expCfg, name)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-10s  error: %v\n", name, err)
			continue
		}

		res := out.Result
		fmt.Printf("%-10s  %-14.0f  %-10.0f  %-8d  %-8d  %-14.4g  %-8.2f\n",
			name,
			res.Metrics["peak_infected"],
			res.Metrics["peak_day"],
			res.Stats.Steps,
			res.Stats.Evaluations,
			maxDeviation(reference.Result, res),
			float64(elapsed.Microseconds())/1000,
		)
	}
	return nil
}

func runWith(ctx context.Context, registry *experiment.Registry, cfg experiment.Config, integ string) (*experiment.Outcome, error) {
	cfg.Integrator = integ
	exp, err := experiment.New(registry, cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return exp.Run(ctx)
}

func maxDeviation(a, b *sim.Result) float64 {
	worst := 0.0
	for i := range a.States {
		if i >= len(b.States) {
			break
		}
		for _, v := range a.States[i].Sub(b.States[i]) {
			worst = max(worst, math.Abs(v))
		}
	}
	return worst
}

func sweepR0(cmd *cobra.Command, args []string) error {
	if r0Steps < 1 {
		return fmt.Errorf("steps must be at least 1")
	}
	base, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	expCfg, err := base.Experiment()
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	integ, err := registry.GetIntegrator(expCfg.Integrator)
	if err != nil {
		return err
	}

	values := make([]float64, r0Steps)
	jobs := make([]sim.Job, r0Steps)
	for i := range values {
		values[i] = r0From
		if r0Steps > 1 {
			values[i] = r0From + float64(i)*(r0To-r0From)/float64(r0Steps-1)
		}

		p := expCfg.Params
		p.R0 = values[i]
		m, err := registry.GetModel(expCfg.Model, p)
		if err != nil {
			return err
		}
		x0, _, err := experiment.ResolveInitial(cmd.Context(), m, expCfg.Initial, expCfg.DeriveExposed, float64(expCfg.Window.TMin))
		if err != nil {
			return err
		}
		jobs[i] = sim.Job{
			Label:        fmt.Sprintf("%.3g", values[i]),
			System:       m,
			X0:           x0,
			Compartments: m.Compartments(),
			Metrics:      registry.DefaultMetrics(m),
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	start := time.Now()
	results, err := sim.Sweep(ctx, integ, jobs, expCfg.Window, workers)
	if err != nil {
		return err
	}
	log.Printf("swept %d values of R0 in %v", len(results), time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "R0\tPEAK\tPEAK_DAY\tPEAK_DATE\tATTACK_RATE\tHERD_THRESHOLD")
	for i, res := range results {
		peakDate := "-"
		if !expCfg.Epoch.IsZero() {
			peakDate = expCfg.Epoch.AddDays(int(res.Metrics["peak_day"])).String()
		}
		p := expCfg.Params
		p.R0 = values[i]
		fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%s\t%.3f\t%.3f\n",
			jobs[i].Label,
			res.Metrics["peak_infected"],
			res.Metrics["peak_day"],
			peakDate,
			res.Metrics["attack_rate"],
			p.HerdImmunityThreshold(),
		)
	}
	return w.Flush()
}

var presetDescriptions = map[string]string{
	"default":      "Sweden, epoch at the latest observation, I0 from a 10% detection rate",
	"sweden-march": "Sweden from 13 March 2020, R0=2.5, D=17.5, 300 days",
	"seir-covid":   "SEIR with a 5.2 day incubation period",
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tN\tR0\tD\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%.3g\t%.2f\t%.1f\t%s\n", name, p.Model, p.Population, p.R0, p.InfectiousDays, presetDescriptions[name])
	}
	return w.Flush()
}

func printObservations(cmd *cobra.Command, args []string) error {
	name := config.DefaultDataset
	if len(args) > 0 {
		name = args[0]
	}
	set, err := observe.Dataset(name, observe.Date{})
	if err != nil {
		return err
	}

	points := set.Points()
	days := points
	header := fmt.Sprintf("DATE\tDAY (from %s)\tCOUNT", set.Reference)
	if alignFlag != "" {
		e, err := observe.ParseDate(alignFlag)
		if err != nil {
			return err
		}
		days = set.Align(e)
		header = fmt.Sprintf("DATE\tDAY (from %s)\tCOUNT", e)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for i, p := range points {
		fmt.Fprintf(w, "%s\t%d\t%.0f\n", set.DateOf(p), days[i].Day, p.Count)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	expCfg, err := cfg.Experiment()
	if err != nil {
		return err
	}
	registry := experiment.NewRegistry()
	// Fail on bad input before taking over the terminal.
	if _, err := experiment.New(registry, expCfg); err != nil {
		return err
	}
	return viz.RunLive(registry, expCfg, plotOptions(cfg))
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	if _, err := cfg.Experiment(); err != nil {
		return fmt.Errorf("base scenario: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.New(experiment.NewRegistry(), cfg, timeout).ListenAndServe(ctx, addr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

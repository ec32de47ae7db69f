package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
)

// solveTimeout bounds a single re-solve triggered by a key press.
const solveTimeout = 5 * time.Second

type param struct {
	key   string
	label string
	get   func(*epidemic.Params) *float64
}

var liveParams = []param{
	{"r0", "R0", func(p *epidemic.Params) *float64 { return &p.R0 }},
	{"infectious_days", "Infectious days", func(p *epidemic.Params) *float64 { return &p.InfectiousDays }},
	{"incubation_days", "Incubation days", func(p *epidemic.Params) *float64 { return &p.IncubationDays }},
	{"population", "Population", func(p *epidemic.Params) *float64 { return &p.Population }},
}

type solvedMsg struct {
	gen int
	out *experiment.Outcome
	err error
}

// Live is the Bubble Tea model of the interactive view. Each parameter
// change builds a fresh experiment, so no solver state is shared between
// solves.
type Live struct {
	reg      *experiment.Registry
	initial  experiment.Config
	cfg      experiment.Config
	selected int
	theme    int
	opts     PlotOptions
	gen      int
	out      *experiment.Outcome
	err      error
	width    int
	height   int
}

func NewLive(reg *experiment.Registry, cfg experiment.Config, opts PlotOptions) Live {
	theme := 0
	for i, t := range Themes {
		if t.Name == opts.Theme.Name {
			theme = i
		}
	}
	if cfg.Params.IncubationDays <= 0 {
		cfg.Params.IncubationDays = 5.2
	}
	return Live{
		reg:     reg,
		initial: cfg,
		cfg:     cfg,
		theme:   theme,
		opts:    opts,
	}
}

func (m Live) Init() tea.Cmd {
	return m.solve()
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.selected = m.nextVisible(m.selected + 1)
			return m, nil
		case "up", "k":
			return m.adjust(1.05)
		case "down", "j":
			return m.adjust(0.95)
		case "m":
			if m.cfg.Model == string(epidemic.VariantSEIR) {
				m.cfg.Model = string(epidemic.VariantSIR)
				m.cfg.Initial.Exposed = 0
			} else {
				m.cfg.Model = string(epidemic.VariantSEIR)
				m.cfg.DeriveExposed = true
			}
			m.selected = m.nextVisible(m.selected)
			return m.resolve()
		case "o":
			m.opts.HideObservations = !m.opts.HideObservations
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "r":
			m.cfg = m.initial
			m.selected = m.nextVisible(m.selected)
			return m.resolve()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case solvedMsg:
		if msg.gen == m.gen {
			m.out, m.err = msg.out, msg.err
		}
	}
	return m, nil
}

// visible reports whether parameter i applies to the current model.
func (m Live) visible(i int) bool {
	return liveParams[i].key != "incubation_days" || m.cfg.Model == string(epidemic.VariantSEIR)
}

// nextVisible returns the first visible parameter at or after i, wrapping.
func (m Live) nextVisible(i int) int {
	for range liveParams {
		i %= len(liveParams)
		if m.visible(i) {
			return i
		}
		i++
	}
	return 0
}

func (m Live) adjust(factor float64) (tea.Model, tea.Cmd) {
	v := liveParams[m.selected].get(&m.cfg.Params)
	*v *= factor
	return m.resolve()
}

func (m Live) resolve() (tea.Model, tea.Cmd) {
	m.gen++
	return m, m.solve()
}

func (m Live) solve() tea.Cmd {
	reg, cfg, gen := m.reg, m.cfg, m.gen
	return func() tea.Msg {
		exp, err := experiment.New(reg, cfg)
		if err != nil {
			return solvedMsg{gen: gen, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), solveTimeout)
		defer cancel()
		out, err := exp.Run(ctx)
		return solvedMsg{gen: gen, out: out, err: err}
	}
}

func (m Live) View() string {
	theme := Themes[m.theme]
	st := theme.styles()

	opts := m.opts
	opts.Theme = theme
	if m.width > 0 {
		opts.Width = max(20, m.width-60)
	}
	if m.height > 0 {
		opts.Height = max(8, m.height-12)
	}

	var chart string
	switch {
	case m.err != nil:
		chart = st.errText.Render("error: " + m.err.Error())
	case m.out == nil:
		chart = st.muted.Render("solving...")
	default:
		chart = Plot(m.out, opts)
	}

	var panel strings.Builder
	panel.WriteString(st.header.Render(strings.ToUpper(m.cfg.Model)+" live") + "\n")
	for i, p := range liveParams {
		if !m.visible(i) {
			continue
		}
		label := st.label.Render(p.label)
		value := fmt.Sprintf("%.4g", *p.get(&m.cfg.Params))
		if i == m.selected {
			panel.WriteString(label + st.active.Render("> "+value) + "\n")
		} else {
			panel.WriteString(label + st.value.Render("  "+value) + "\n")
		}
	}
	if m.out != nil && m.err == nil {
		panel.WriteString("\n")
		metrics := m.out.Result.Metrics
		keys := make([]string, 0, len(metrics))
		for k := range metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			panel.WriteString(st.label.Render(k) + st.value.Render(fmt.Sprintf("%.4g", metrics[k])) + "\n")
		}
		if !m.out.Epoch.IsZero() {
			panel.WriteString(st.label.Render("epoch") + st.value.Render(m.out.Epoch.String()) + "\n")
		}
	}
	panel.WriteString("\n" + st.muted.Render("tab select  ↑/↓ adjust  m model\no observed  t theme  r reset  q quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, chart, st.panel.Render(panel.String()))
}

// RunLive starts the interactive view and blocks until the user quits.
func RunLive(reg *experiment.Registry, cfg experiment.Config, opts PlotOptions) error {
	_, err := tea.NewProgram(NewLive(reg, cfg, opts), tea.WithAltScreen()).Run()
	return err
}

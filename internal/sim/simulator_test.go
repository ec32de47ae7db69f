package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/sim"
)

func run(m epidemic.Model, in epidemic.Initial, cfg sim.Config) (*sim.Result, error) {
	x0, err := m.InitialState(in)
	if err != nil {
		return nil, err
	}
	s := sim.New(m, integrators.NewDOPRI5())
	s.SetCompartments(m.Compartments())
	return s.Run(context.Background(), x0, cfg)
}

func window(tmin, tmax int) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.TMin, cfg.TMax = tmin, tmax
	return cfg
}

var defaultParams = epidemic.Params{
	Population:     9e6,
	R0:             2,
	InfectiousDays: 10,
	IncubationDays: 5.2,
}

var defaultInitial = epidemic.Initial{Infected: 54660, Recovered: 100}

var _ = Describe("Simulator", func() {
	for _, variant := range []epidemic.Variant{epidemic.VariantSIR, epidemic.VariantSEIR} {
		Context("with the "+string(variant)+" model", func() {
			var (
				model  epidemic.Model
				result *sim.Result
			)

			BeforeEach(func() {
				var err error
				model, err = epidemic.New(variant, defaultParams)
				Expect(err).NotTo(HaveOccurred())

				result, err = run(model, defaultInitial, window(-20, 150))
				Expect(err).NotTo(HaveOccurred())
			})

			It("conserves the population at every sample", func() {
				for i, x := range result.States {
					drift := math.Abs(x.Sum()-defaultParams.Population) / defaultParams.Population
					Expect(drift).To(BeNumerically("<", 1e-4), "sample %d at t=%v", i, result.Times[i])
				}
			})

			It("never decreases the removed compartment", func() {
				r, ok := result.Series(epidemic.Removed)
				Expect(ok).To(BeTrue())
				for i := 1; i < len(r); i++ {
					Expect(r[i]).To(BeNumerically(">=", r[i-1]-1e-6), "t=%v", result.Times[i])
				}
			})

			It("samples every integer day of the window once", func() {
				Expect(result.Len()).To(Equal(170))
				Expect(result.States).To(HaveLen(170))
				for i, t := range result.Times {
					Expect(t).To(Equal(float64(-20 + i)))
				}
			})

			It("derives S(0) from the other compartments exactly", func() {
				idx := result.IndexOf(0)
				Expect(idx).To(Equal(20))

				x := result.States[idx]
				others := 0.0
				for i, v := range x {
					if i != 0 {
						others += v
					}
				}
				Expect(x[0]).To(Equal(defaultParams.Population - others))
			})

			It("starts both halves from the initial condition", func() {
				x0, err := model.InitialState(defaultInitial)
				Expect(err).NotTo(HaveOccurred())

				forward, err := run(model, defaultInitial, window(0, 5))
				Expect(err).NotTo(HaveOccurred())
				Expect(forward.Times[0]).To(Equal(0.0))
				Expect(forward.States[0]).To(Equal(x0))

				backward, err := run(model, defaultInitial, window(-5, 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(backward.Times).To(Equal([]float64{-5, -4, -3, -2, -1}))

				full := result.States[result.IndexOf(0)]
				Expect(full).To(Equal(x0))
			})
		})
	}

	Describe("the March 2020 Sweden scenario", func() {
		var (
			result *sim.Result
			peak   int
		)

		BeforeEach(func() {
			model, err := epidemic.NewSIR(epidemic.Params{Population: 1e7, R0: 2.5, InfectiousDays: 17.5})
			Expect(err).NotTo(HaveOccurred())

			result, err = run(model, epidemic.Initial{Infected: 7750, Recovered: 100}, window(0, 300))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Len()).To(Equal(300))

			infected, _ := result.Series(epidemic.Infectious)
			for i, v := range infected {
				if v > infected[peak] {
					peak = i
				}
			}
		})

		It("rises, peaks inside the window, then decays", func() {
			infected, _ := result.Series(epidemic.Infectious)
			Expect(peak).To(BeNumerically(">", 0))
			Expect(peak).To(BeNumerically("<", 299))
			Expect(infected[299]).To(BeNumerically("<", 0.01*infected[peak]))
		})

		It("never gains susceptibles", func() {
			s, _ := result.Series(epidemic.Susceptible)
			for i := 1; i < len(s); i++ {
				Expect(s[i]).To(BeNumerically("<=", s[i-1]+1.0))
			}
		})
	})

	Describe("window edges", func() {
		var model epidemic.Model

		BeforeEach(func() {
			var err error
			model, err = epidemic.NewSIR(defaultParams)
			Expect(err).NotTo(HaveOccurred())
		})

		It("omits t=0 when the window ends at the epoch", func() {
			result, err := run(model, defaultInitial, window(-3, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Times).To(Equal([]float64{-3, -2, -1}))
			Expect(result.IndexOf(0)).To(Equal(-1))
		})

		It("supports sub-day resolution", func() {
			cfg := window(-1, 1)
			cfg.Resolution = 0.25
			result, err := run(model, defaultInitial, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Times).To(Equal([]float64{-1, -0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75}))
			Expect(cfg.SampleCount()).To(Equal(8))
		})

		It("integrates windows longer than the step budget", func() {
			result, err := run(model, defaultInitial, window(0, 120000))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Len()).To(Equal(120000))
			Expect(result.Stats.Steps).To(BeNumerically(">", integrators.DefaultMaxSteps))
		})

		It("integrates the default window at one-minute resolution", func() {
			cfg := window(-20, 170)
			cfg.Resolution = sim.MinResolution
			result, err := run(model, defaultInitial, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Len()).To(Equal(cfg.SampleCount()))
			Expect(result.Len()).To(BeNumerically(">", integrators.DefaultMaxSteps))
		})

		It("rejects windows that do not contain the epoch", func() {
			for _, cfg := range []sim.Config{window(1, 10), window(-10, -1), window(0, 0)} {
				_, err := run(model, defaultInitial, cfg)
				Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
			}
		})
	})

	Describe("invalid input", func() {
		It("rejects an empty population before integrating", func() {
			_, err := epidemic.NewSIR(epidemic.Params{Population: 0, R0: 2, InfectiousDays: 10})
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))

			var pe *dynamo.ParamError
			Expect(err).To(BeAssignableToTypeOf(pe))
			Expect(err.(*dynamo.ParamError).Field).To(Equal("population"))
		})

		It("rejects initial compartments larger than the population", func() {
			model, err := epidemic.NewSIR(epidemic.Params{Population: 100, R0: 2, InfectiousDays: 10})
			Expect(err).NotTo(HaveOccurred())

			_, err = run(model, epidemic.Initial{Infected: 90, Recovered: 20}, window(-1, 1))
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})

		It("rejects a non-finite initial state", func() {
			model, err := epidemic.NewSIR(defaultParams)
			Expect(err).NotTo(HaveOccurred())

			s := sim.New(model, integrators.NewDOPRI5())
			_, err = s.Run(context.Background(), dynamo.State{math.NaN(), 1, 0}, window(0, 2))
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})

		It("rejects a state of the wrong dimension", func() {
			model, err := epidemic.NewSEIR(defaultParams)
			Expect(err).NotTo(HaveOccurred())

			s := sim.New(model, integrators.NewDOPRI5())
			_, err = s.Run(context.Background(), dynamo.State{1, 2, 3}, window(0, 2))
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Describe("fixed-step integrators", func() {
		It("agree with the adaptive solver on the default scenario", func() {
			model, err := epidemic.NewSEIR(defaultParams)
			Expect(err).NotTo(HaveOccurred())
			x0, err := model.InitialState(defaultInitial)
			Expect(err).NotTo(HaveOccurred())

			cfg := window(-10, 60)
			reference, err := sim.New(model, integrators.NewDOPRI5()).Run(context.Background(), x0, cfg)
			Expect(err).NotTo(HaveOccurred())
			fixed, err := sim.New(model, integrators.NewRK4()).Run(context.Background(), x0, cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(fixed.Times).To(Equal(reference.Times))
			for i := range fixed.States {
				for j := range fixed.States[i] {
					Expect(fixed.States[i][j]).To(BeNumerically("~", reference.States[i][j], 1e-3*defaultParams.Population))
				}
			}
			// 59 forward and 10 backward unit intervals at 10 substeps each
			Expect(fixed.Stats.Steps).To(Equal(690))
		})

		It("reports divergence as a numerical failure", func() {
			s := sim.New(&runaway{}, integrators.NewEuler())
			_, err := s.Run(context.Background(), dynamo.State{1}, window(0, 50))
			Expect(err).To(MatchError(dynamo.ErrNumerical))

			var se *dynamo.SimulationError
			Expect(err).To(BeAssignableToTypeOf(se))
		})
	})

	Describe("metrics", func() {
		It("observe the merged series in time order", func() {
			model, err := epidemic.NewSIR(defaultParams)
			Expect(err).NotTo(HaveOccurred())
			x0, err := model.InitialState(defaultInitial)
			Expect(err).NotTo(HaveOccurred())

			rec := &recorder{}
			s := sim.New(model, integrators.NewDOPRI5())
			s.AddMetric(rec)

			result, err := s.Run(context.Background(), x0, window(-5, 5))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.times).To(Equal(result.Times))
			Expect(result.Metrics).To(HaveKeyWithValue("samples", 10.0))

			_, err = s.Run(context.Background(), x0, window(-2, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.times).To(HaveLen(4))
		})
	})

	It("honours cancellation", func() {
		model, err := epidemic.NewSIR(defaultParams)
		Expect(err).NotTo(HaveOccurred())
		x0, err := model.InitialState(defaultInitial)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		for _, integ := range []dynamo.Integrator{integrators.NewDOPRI5(), integrators.NewRK4()} {
			_, err = sim.New(model, integ).Run(ctx, x0, window(-5, 5))
			Expect(err).To(MatchError(context.Canceled))
		}
	})
})

// runaway is x' = x^3, which overflows in finite time.
type runaway struct{}

func (r *runaway) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[0] * x[0] * x[0] * 1e3}
}

func (r *runaway) StateDim() int { return 1 }

type recorder struct{ times []float64 }

func (r *recorder) Name() string { return "samples" }

func (r *recorder) Observe(x dynamo.State, t float64) { r.times = append(r.times, t) }

func (r *recorder) Value() float64 { return float64(len(r.times)) }

func (r *recorder) Reset() { r.times = nil }

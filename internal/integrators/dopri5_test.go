package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/dynamo"
)

type decay struct{ rate float64 }

func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}

func (d *decay) StateDim() int { return 1 }

// blowup has the solution 1/(1-t), which is singular at t=1.
type blowup struct{}

func (b *blowup) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[0] * x[0]}
}

func (b *blowup) StateDim() int { return 1 }

func unitGrid(from, to int) []float64 {
	step := 1
	if to < from {
		step = -1
	}
	var times []float64
	for t := from; t != to+step; t += step {
		times = append(times, float64(t))
	}
	return times
}

func TestDOPRI5_SolveMatchesExactDecay(t *testing.T) {
	g := NewWithT(t)
	dyn := &decay{rate: 0.3}
	times := unitGrid(0, 30)

	states, stats, err := NewDOPRI5().Solve(context.Background(), dyn, dynamo.State{1000}, times)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(states).To(HaveLen(len(times)))
	g.Expect(stats.Steps).To(BeNumerically(">=", len(times)-1))

	for i, tm := range times {
		exact := 1000 * math.Exp(-0.3*tm)
		g.Expect(states[i][0]).To(BeNumerically("~", exact, 1e-5*1000))
	}
}

func TestDOPRI5_SolveBackward(t *testing.T) {
	g := NewWithT(t)
	dyn := &decay{rate: 0.1}
	times := unitGrid(0, -20)

	states, _, err := NewDOPRI5().Solve(context.Background(), dyn, dynamo.State{50}, times)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(states[0][0]).To(Equal(50.0))

	for i, tm := range times {
		exact := 50 * math.Exp(-0.1*tm)
		g.Expect(states[i][0]).To(BeNumerically("~", exact, 1e-5*exact+1e-4))
	}
}

func TestDOPRI5_RoundTrip(t *testing.T) {
	g := NewWithT(t)
	dyn := &oscillator{}
	solver := NewDOPRI5()
	x0 := dynamo.State{1.0, 0.0}

	fwd, _, err := solver.Solve(context.Background(), dyn, x0, unitGrid(0, 10))
	g.Expect(err).NotTo(HaveOccurred())

	back, _, err := solver.Solve(context.Background(), dyn, fwd[len(fwd)-1], unitGrid(10, 0))
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(back[len(back)-1].Sub(x0).Norm()).To(BeNumerically("<", 1e-4))
}

func TestDOPRI5_StepMatchesHighOrder(t *testing.T) {
	dyn := &oscillator{}
	x := NewDOPRI5().Step(dyn, dynamo.State{1, 0}, 0, 0.1)

	if math.Abs(x[0]-math.Cos(0.1)) > 1e-7 || math.Abs(x[1]+math.Sin(0.1)) > 1e-7 {
		t.Errorf("single step inaccurate: %v", x)
	}
}

func TestDOPRI5_SingularityIsNumericalFailure(t *testing.T) {
	g := NewWithT(t)
	_, _, err := NewDOPRI5().Solve(context.Background(), &blowup{}, dynamo.State{1}, []float64{0, 0.5, 2})

	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, dynamo.ErrNumerical)).To(BeTrue())

	var simErr *dynamo.SimulationError
	g.Expect(errors.As(err, &simErr)).To(BeTrue())
	g.Expect(simErr.Time).To(BeNumerically("~", 1.0, 1e-3))
}

func TestDOPRI5_StepBudget(t *testing.T) {
	g := NewWithT(t)
	solver := NewDOPRI5()
	solver.MaxSteps = 3

	_, _, err := solver.Solve(context.Background(), &oscillator{}, dynamo.State{1, 0}, unitGrid(0, 100))
	g.Expect(errors.Is(err, dynamo.ErrStepLimit)).To(BeTrue())
}

func TestDOPRI5_StepBudgetIsPerInterval(t *testing.T) {
	g := NewWithT(t)
	solver := NewDOPRI5()
	solver.MaxSteps = 200
	times := unitGrid(0, 1000)

	states, stats, err := solver.Solve(context.Background(), &oscillator{}, dynamo.State{1, 0}, times)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(states).To(HaveLen(len(times)))
	g.Expect(stats.Steps + stats.Rejected).To(BeNumerically(">", solver.MaxSteps))
}

func TestDOPRI5_RejectsBadGrid(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
	}{
		{"repeated", []float64{0, 1, 1, 2}},
		{"zigzag", []float64{0, 1, 0.5}},
		{"nan", []float64{0, math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDOPRI5().Solve(context.Background(), &decay{rate: 1}, dynamo.State{1}, tt.times)
			if !dynamo.IsInvalidParameter(err) {
				t.Errorf("expected invalid parameter error, got %v", err)
			}
		})
	}
}

func TestDOPRI5_DimensionMismatch(t *testing.T) {
	_, _, err := NewDOPRI5().Solve(context.Background(), &oscillator{}, dynamo.State{1}, []float64{0, 1})
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestDOPRI5_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewDOPRI5().Solve(ctx, &decay{rate: 1}, dynamo.State{1}, unitGrid(0, 5))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDOPRI5_Deterministic(t *testing.T) {
	g := NewWithT(t)
	solver := NewDOPRI5()
	times := unitGrid(0, 25)

	a, _, err := solver.Solve(context.Background(), &oscillator{}, dynamo.State{0.3, 1.2}, times)
	g.Expect(err).NotTo(HaveOccurred())
	b, _, err := solver.Solve(context.Background(), &oscillator{}, dynamo.State{0.3, 1.2}, times)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(a).To(Equal(b))
}

package sim_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/sim"
)

func sweepJobs(r0s ...float64) []sim.Job {
	jobs := make([]sim.Job, 0, len(r0s))
	for _, r0 := range r0s {
		p := defaultParams
		p.R0 = r0
		model, err := epidemic.NewSIR(p)
		Expect(err).NotTo(HaveOccurred())
		x0, err := model.InitialState(defaultInitial)
		Expect(err).NotTo(HaveOccurred())

		jobs = append(jobs, sim.Job{
			Label:        fmt.Sprintf("R0=%.1f", r0),
			System:       model,
			X0:           x0,
			Compartments: model.Compartments(),
			Metrics:      []dynamo.Metric{&recorder{}},
		})
	}
	return jobs
}

var _ = Describe("Sweep", func() {
	It("keeps results in job order", func() {
		jobs := sweepJobs(1.5, 2, 2.5, 3)
		results, err := sim.Sweep(context.Background(), integrators.NewDOPRI5(), jobs, window(-5, 60), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		for i, job := range jobs {
			single := sim.New(job.System, integrators.NewDOPRI5())
			want, err := single.Run(context.Background(), job.X0, window(-5, 60))
			Expect(err).NotTo(HaveOccurred())
			Expect(results[i].States).To(Equal(want.States), job.Label)
			Expect(results[i].Metrics).To(HaveKeyWithValue("samples", 65.0))
		}
	})

	It("stops on the first failure", func() {
		jobs := sweepJobs(2)
		jobs = append(jobs, sim.Job{Label: "bad", System: jobs[0].System, X0: dynamo.State{1, 2}})

		_, err := sim.Sweep(context.Background(), integrators.NewDOPRI5(), jobs, window(0, 10), 0)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("validates the window once up front", func() {
		_, err := sim.Sweep(context.Background(), integrators.NewDOPRI5(), sweepJobs(2), window(5, 10), 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
	})
})

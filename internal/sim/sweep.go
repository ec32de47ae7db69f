package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/episim/internal/dynamo"
)

// Job is one independent run of a sweep.
type Job struct {
	Label        string
	System       dynamo.System
	X0           dynamo.State
	Compartments []string
	// Metrics must be fresh values owned by this job.
	Metrics []dynamo.Metric
}

// Sweep runs jobs concurrently with at most limit in flight (GOMAXPROCS when
// limit <= 0). Results keep the order of jobs. The first failure cancels the
// remaining runs.
func Sweep(ctx context.Context, integrator dynamo.Integrator, jobs []Job, cfg Config, limit int) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		g.Go(func() error {
			s := New(job.System, integrator)
			s.SetCompartments(job.Compartments)
			for _, m := range job.Metrics {
				s.AddMetric(m)
			}

			res, err := s.Run(ctx, job.X0, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

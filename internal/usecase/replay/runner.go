package replay

import (
	"context"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"golang.org/x/sync/errgroup"
)

// Job is the replay of one symbol over files ordered by time.
type Job struct {
	Symbol   string
	Interval interval.Interval
	Files    []*dtf.File
	From     uint64
	To       uint64
	Options  []Option
}

// RunAll replays independent jobs in parallel, at most workers at a time
// (unbounded when workers <= 0). Each job gets its own session. The first
// failure cancels the others. Results are in job order.
func RunAll(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, job := range jobs {
		g.Go(func() error {
			s, err := NewSession(job.Symbol, job.Interval, job.Options...)
			if err != nil {
				return err
			}
			for _, f := range job.Files {
				if err := s.Replay(ctx, f, job.From, job.To); err != nil {
					return err
				}
			}
			results[i] = s.Finish()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

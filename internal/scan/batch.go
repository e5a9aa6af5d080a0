package scan

import (
	"context"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"jsbridge/internal/diag"
)

// Summary is the outcome of a batch.
type Summary struct {
	Apps     int               `json:"apps"`
	Success  int               `json:"success"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Bridges  int               `json:"bridges"`
	Content  int               `json:"content"`
	WebViews int               `json:"webviews"`
	Diags    map[diag.Kind]int `json:"diags"`
	Results  []Result          `json:"results"`
	Started  time.Time         `json:"started"`
	Elapsed  time.Duration     `json:"elapsed_ns"`
}

// Add folds one result into the totals.
func (s *Summary) Add(r Result) {
	s.Apps++
	switch r.Status {
	case StatusSuccess:
		s.Success++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Bridges += r.Bridges
	s.Content += r.Content
	s.WebViews += r.WebViews
	if s.Diags == nil {
		s.Diags = make(map[diag.Kind]int)
	}
	for k, n := range r.Diags {
		s.Diags[k] += n
	}
	s.Results = append(s.Results, r)
}

// RunBatch analyzes dirs with at most jobs applications in flight. Each
// application runs in isolation and its context is dropped once written.
// Cancelling ctx stops scheduling new applications; those never started
// are left out of the summary. progress, when non-nil, receives a
// progress bar.
func RunBatch(ctx context.Context, dirs []string, o Options, progress io.Writer) Summary {
	o.defaults()
	jobs := o.Config.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(dirs),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("analyzing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	sum := Summary{Started: time.Now(), Diags: make(map[diag.Kind]int)}
	results := make([]Result, len(dirs))
	started := make([]bool, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, dir := range dirs {
		if gctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			r := Run(gctx, dir, o)
			r.Context = nil
			results[i] = r
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	for i, r := range results {
		if started[i] {
			sum.Add(r)
		}
	}
	sum.Elapsed = time.Since(sum.Started)
	return sum
}

// Package dispatch runs independent units of work on a bounded pool.
//
// Units never cancel each other. A unit that returns an error or panics is
// logged with its label and contributes no result; its siblings run to
// completion regardless.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

// DefaultWorkers is used when Options.Workers is not positive
const DefaultWorkers = 1

// Options configure a single Run.
type Options[T any] struct {
	// Workers caps how many units run at once
	Workers int
	// Pool names the wave in logs and metrics, e.g. "primary"
	Pool string
	// Label identifies a unit in failure logs, typically its URL
	Label func(item T) string
	// Recorder receives unit failure counts; nil discards them
	Recorder metrics.Recorder
}

// Report summarizes a finished Run
type Report struct {
	Units    int
	Results  int
	Errors   int // units that returned an error
	Panics   int // units that panicked
	Duration time.Duration
}

// Failed returns the number of units that produced no result
func (r Report) Failed() int {
	return r.Errors + r.Panics
}

// Run executes work for every item with at most opts.Workers units in
// flight and returns the results in completion order.
//
// Units get a context that is never cancelled, so a unit runs to completion
// once started. Timeouts are left to the work function.
func Run[T, R any](ctx context.Context, items []T, opts Options[T], work func(context.Context, T) (R, error)) []R {
	results, _ := RunReport(ctx, items, opts, work)
	return results
}

// RunReport is Run that also reports unit counts.
func RunReport[T, R any](ctx context.Context, items []T, opts Options[T], work func(context.Context, T) (R, error)) ([]R, Report) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NopRecorder{}
	}

	log := GetLogger().WithContext(ctx).With(logger.String("pool", opts.Pool))
	start := time.Now()
	report := Report{Units: len(items)}

	log.Debug("Dispatching units",
		logger.Int("units", len(items)),
		logger.Int("workers", workers))

	unitCtx := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		results = make([]R, 0, len(items))
	)

	// Not context-bound and units never return errors, so nothing cancels
	// siblings
	var g errgroup.Group
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			r, failure := runUnit(unitCtx, item, opts, work)

			mu.Lock()
			defer mu.Unlock()
			switch failure {
			case "":
				results = append(results, r)
			case metrics.FailurePanic:
				report.Panics++
			default:
				report.Errors++
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Results = len(results)
	report.Duration = time.Since(start)

	log.Info("Dispatch complete",
		logger.Int("units", report.Units),
		logger.Int("results", report.Results),
		logger.Int("failed", report.Failed()),
		logger.Duration("elapsed", report.Duration))

	return results, report
}

// runUnit runs one unit and converts errors and panics into a failure
// reason. An empty reason means r is valid.
func runUnit[T, R any](ctx context.Context, item T, opts Options[T], work func(context.Context, T) (R, error)) (r R, failure string) {
	defer func() {
		if p := recover(); p != nil {
			var zero R
			r, failure = zero, metrics.FailurePanic

			err := errors.New(fmt.Errorf("unit panicked: %v", p)).
				Component("dispatch").
				Category(errors.CategoryWorker).
				Priority(errors.PriorityHigh).
				Context("pool", opts.Pool).
				Context("label", label(opts, item)).
				Build()

			GetLogger().WithContext(ctx).Error("Unit panicked, no result recorded",
				logger.String("pool", opts.Pool),
				logger.String("label", label(opts, item)),
				logger.Error(err),
				logger.String("stack", string(debug.Stack())))
			opts.Recorder.RecordUnitFailure(opts.Pool, metrics.FailurePanic)
		}
	}()

	r, err := work(ctx, item)
	if err != nil {
		GetLogger().WithContext(ctx).Warn("Unit failed, no result recorded",
			logger.String("pool", opts.Pool),
			logger.String("label", label(opts, item)),
			logger.Error(err))
		opts.Recorder.RecordUnitFailure(opts.Pool, metrics.FailureError)

		var zero R
		return zero, metrics.FailureError
	}
	return r, ""
}

func label[T any](opts Options[T], item T) string {
	if opts.Label == nil {
		return fmt.Sprintf("%v", item)
	}
	return opts.Label(item)
}

// GetLogger returns the dispatch module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("dispatch")
}

// Package resolver runs the resolution waves for a catalog and merges their
// outcomes into one image URL per identifier.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/dispatch"
	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/imageprovider"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

// Dispatcher pool names
const (
	PoolPrimary  = "primary"
	PoolFallback = "fallback"
)

// SummaryRecorder receives the totals of a finished run
type SummaryRecorder interface {
	SetRunSummary(bySource map[string]int, durationSeconds float64, finishedUnix int64)
}

// Options configure an Engine. Zero values take the conf defaults.
type Options struct {
	PrimaryWorkers  int
	FallbackWorkers int
	FallbackMode    string // conf.FallbackModeParallel or conf.FallbackModeSequential
	Recorder        metrics.Recorder
	Summary         SummaryRecorder // optional
}

// Engine resolves image URLs for catalog records in two waves: supplier
// probes, then media searches for whatever the supplier does not have.
type Engine struct {
	normalizer *imageprovider.Normalizer
	primary    imageprovider.Resolver
	fallback   imageprovider.Resolver
	opts       Options
}

// NewEngine creates an engine from its collaborators.
func NewEngine(normalizer *imageprovider.Normalizer, primary, fallback imageprovider.Resolver, opts Options) *Engine {
	if opts.PrimaryWorkers <= 0 {
		opts.PrimaryWorkers = conf.DefaultPrimaryWorkers
	}
	if opts.FallbackWorkers <= 0 {
		opts.FallbackWorkers = conf.DefaultFallbackWorkers
	}
	if opts.FallbackMode == "" {
		opts.FallbackMode = conf.FallbackModeParallel
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NopRecorder{}
	}
	return &Engine{normalizer: normalizer, primary: primary, fallback: fallback, opts: opts}
}

// NewEngineFromSettings wires the supplier prober and media search resolver
// over client. When the cache is enabled both are wrapped in a per-run
// outcome cache.
func NewEngineFromSettings(settings *conf.Settings, client *httpclient.Client, recorder metrics.Recorder, summary SummaryRecorder) (*Engine, error) {
	strategies, err := imageprovider.StrategiesByName(settings.MediaSearch.Strategies)
	if err != nil {
		return nil, err
	}

	var primary imageprovider.Resolver = imageprovider.NewSupplierProber(client, recorder)
	var fallback imageprovider.Resolver = imageprovider.NewMediaSearchResolver(client, imageprovider.MediaSearchConfig{
		Strategies: strategies,
		Extensions: settings.MediaSearch.Extensions,
	}, recorder)

	if settings.Resolver.Cache.Enabled {
		primary = imageprovider.NewCachingResolver(primary, settings.Resolver.Cache.TTL, recorder)
		fallback = imageprovider.NewCachingResolver(fallback, settings.Resolver.Cache.TTL, recorder)
	}

	return NewEngine(
		imageprovider.NewNormalizer(imageprovider.NormalizerConfigFromSettings(settings)),
		primary, fallback,
		Options{
			PrimaryWorkers:  settings.Resolver.PrimaryWorkers,
			FallbackWorkers: settings.Resolver.FallbackWorkers,
			FallbackMode:    settings.Resolver.FallbackMode,
			Recorder:        recorder,
			Summary:         summary,
		}), nil
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Map      *ResolutionMap
	Outcomes []imageprovider.ProbeOutcome // every outcome, in wave then completion order
	Primary  dispatch.Report
	Fallback dispatch.Report // summed over fallback waves
	Errors   int             // outcomes classified as ResultError
	Duration time.Duration
}

// Failures counts targets that yielded neither an image nor a clean absence
func (r *Result) Failures() int {
	return r.Errors + r.Primary.Failed() + r.Fallback.Failed()
}

// Resolve runs every wave for records and returns one resolution per
// identifier. Only precondition failures return an error; individual probe
// failures never do.
func (e *Engine) Resolve(ctx context.Context, records []catalog.Record) (*Result, error) {
	if err := checkRecords(records); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString()}
	ctx = logger.WithTraceID(ctx, res.RunID)
	log := GetLogger().WithContext(ctx)
	start := time.Now()

	log.Info("Resolution run started",
		logger.Int("records", len(records)),
		logger.Int("primary_workers", e.opts.PrimaryWorkers),
		logger.Int("fallback_workers", e.opts.FallbackWorkers),
		logger.String("fallback_mode", e.opts.FallbackMode))

	m := NewResolutionMap(records)
	res.Map = m

	// Wave 1: supplier site
	targets := make([]imageprovider.ProbeTarget, 0, len(records))
	for _, rec := range records {
		targets = append(targets, e.normalizer.PrimaryTarget(rec))
	}
	outcomes, report := e.wave(ctx, PoolPrimary, e.opts.PrimaryWorkers, e.primary, targets)
	res.Primary = report
	res.record(outcomes)
	m.ApplyPrimary(outcomes)

	// Wave 2: media search for what the supplier lacks
	pending := e.unresolved(m, records)
	log.Info("Primary wave merged",
		logger.Int("confirmed", len(records)-len(pending)),
		logger.Int("pending", len(pending)))

	if len(pending) > 0 {
		if e.opts.FallbackMode == conf.FallbackModeSequential {
			e.resolveSequential(ctx, m, pending, res)
		} else {
			e.resolveParallel(ctx, m, pending, res)
		}
	}

	res.Duration = time.Since(start)
	counts := m.CountBySource()

	if e.opts.Summary != nil {
		e.opts.Summary.SetRunSummary(counts, res.Duration.Seconds(), time.Now().Unix())
	}

	log.Info("Resolution run complete",
		logger.Int("records", m.Len()),
		logger.Int(imageprovider.KindPrimarySite.String(), counts[imageprovider.KindPrimarySite.String()]),
		logger.Int(imageprovider.KindFallbackScientific.String(), counts[imageprovider.KindFallbackScientific.String()]),
		logger.Int(imageprovider.KindFallbackCommon.String(), counts[imageprovider.KindFallbackCommon.String()]),
		logger.Int("not_found", counts[SourceNone]),
		logger.Int("failures", res.Failures()),
		logger.Duration("elapsed", res.Duration))

	return res, nil
}

// resolveParallel searches by scientific and common name in one wave.
func (e *Engine) resolveParallel(ctx context.Context, m *ResolutionMap, pending []catalog.Record, res *Result) {
	targets := make([]imageprovider.ProbeTarget, 0, 2*len(pending))
	for _, rec := range pending {
		targets = append(targets, e.normalizer.FallbackScientificTarget(rec))
		if t, ok := e.normalizer.FallbackCommonTarget(rec); ok {
			targets = append(targets, t)
		}
	}

	outcomes, report := e.wave(ctx, PoolFallback, e.opts.FallbackWorkers, e.fallback, targets)
	res.addFallback(report)
	res.record(outcomes)
	m.ApplyFallback(outcomes)
}

// resolveSequential searches by common name only for records the
// scientific name search did not resolve.
func (e *Engine) resolveSequential(ctx context.Context, m *ResolutionMap, pending []catalog.Record, res *Result) {
	targets := make([]imageprovider.ProbeTarget, 0, len(pending))
	for _, rec := range pending {
		targets = append(targets, e.normalizer.FallbackScientificTarget(rec))
	}
	outcomes, report := e.wave(ctx, PoolFallback, e.opts.FallbackWorkers, e.fallback, targets)
	res.addFallback(report)
	res.record(outcomes)
	m.ApplyFallback(outcomes)

	targets = targets[:0]
	for _, rec := range e.unresolved(m, pending) {
		if t, ok := e.normalizer.FallbackCommonTarget(rec); ok {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return
	}
	outcomes, report = e.wave(ctx, PoolFallback, e.opts.FallbackWorkers, e.fallback, targets)
	res.addFallback(report)
	res.record(outcomes)
	m.ApplyFallback(outcomes)
}

// wave dispatches one resolver call per target
func (e *Engine) wave(ctx context.Context, pool string, workers int, r imageprovider.Resolver, targets []imageprovider.ProbeTarget) ([]imageprovider.ProbeOutcome, dispatch.Report) {
	return dispatch.RunReport(ctx, targets, dispatch.Options[imageprovider.ProbeTarget]{
		Workers:  workers,
		Pool:     pool,
		Label:    func(t imageprovider.ProbeTarget) string { return t.URL },
		Recorder: e.opts.Recorder,
	}, func(ctx context.Context, t imageprovider.ProbeTarget) (imageprovider.ProbeOutcome, error) {
		return r.Resolve(ctx, t), nil
	})
}

func (e *Engine) unresolved(m *ResolutionMap, records []catalog.Record) []catalog.Record {
	var pending []catalog.Record
	for _, rec := range records {
		if !m.Found(rec.Identifier) {
			pending = append(pending, rec)
		}
	}
	return pending
}

func (r *Result) record(outcomes []imageprovider.ProbeOutcome) {
	for i := range outcomes {
		if outcomes[i].Result == imageprovider.ResultError {
			r.Errors++
		}
	}
	r.Outcomes = append(r.Outcomes, outcomes...)
}

func (r *Result) addFallback(report dispatch.Report) {
	r.Fallback.Units += report.Units
	r.Fallback.Results += report.Results
	r.Fallback.Errors += report.Errors
	r.Fallback.Panics += report.Panics
	r.Fallback.Duration += report.Duration
}

// checkRecords rejects input the map cannot represent: empty or duplicate
// identifiers.
func checkRecords(records []catalog.Record) error {
	seen := make(map[string]string, len(records))
	for _, rec := range records {
		key := rec.Key()
		if key == "" {
			return errors.New(fmt.Errorf("%w (row %d)", catalog.ErrEmptyIdentifier, rec.Row)).
				Component("resolver").
				Category(errors.CategoryValidation).
				Build()
		}
		if prev, dup := seen[key]; dup {
			return errors.New(fmt.Errorf("%w: %q and %q", catalog.ErrDuplicateIdentifier, prev, rec.Identifier)).
				Component("resolver").
				Category(errors.CategoryConflict).
				Build()
		}
		seen[key] = rec.Identifier
	}
	return nil
}

// GetLogger returns the resolver module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("resolver")
}

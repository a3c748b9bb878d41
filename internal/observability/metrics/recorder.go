package metrics

// Recorder defines the metrics the resolution pipeline records.
// Components depend on this interface rather than on ResolverMetrics so
// tests can pass NopRecorder.
type Recorder interface {
	// RecordOutcome counts a probe outcome, e.g. ("primary_site", "absent").
	RecordOutcome(kind, result string)

	// RecordProbeDuration records the duration of a probe in seconds.
	RecordProbeDuration(kind string, seconds float64)

	// RecordCacheLookup counts an outcome cache lookup: CacheHit, CacheMiss or CacheShared.
	RecordCacheLookup(result string)

	// RecordUnitFailure counts a dispatcher unit that produced no outcome.
	RecordUnitFailure(pool, reason string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(string, string) {}
func (NopRecorder) RecordProbeDuration(string, float64) {}
func (NopRecorder) RecordCacheLookup(string) {}
func (NopRecorder) RecordUnitFailure(string, string) {}

var _ Recorder = NopRecorder{}

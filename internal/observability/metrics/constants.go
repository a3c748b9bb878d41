// Package metrics provides constants used across metric definitions.
package metrics

// namespace prefixes every metric name
const namespace = "imagefinder"

// Cache lookup results
const (
	// CacheHit is a lookup answered from a stored outcome.
	CacheHit = "hit"
	// CacheMiss is a lookup that performed the probe.
	CacheMiss = "miss"
	// CacheShared is a lookup that waited on an identical in-flight probe.
	CacheShared = "shared"
)

// Dispatcher unit failure reasons
const (
	// FailureError is a unit that returned an error.
	FailureError = "error"
	// FailurePanic is a unit that panicked.
	FailurePanic = "panic"
)

// StatusClassError labels HTTP exchanges that produced no response.
const StatusClassError = "error"

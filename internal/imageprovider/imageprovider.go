// imageprovider.go: Package imageprovider builds probe targets for catalog
// records and resolves them against the supplier site and the media search
// service.
package imageprovider

import (
	"context"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
)

// ProbeKind tells where a target points. The order of the constants is the
// merge priority, highest first.
type ProbeKind int

const (
	KindPrimarySite ProbeKind = iota
	KindFallbackScientific
	KindFallbackCommon
)

// String returns the label used in logs and metrics
func (k ProbeKind) String() string {
	switch k {
	case KindPrimarySite:
		return "primary_site"
	case KindFallbackScientific:
		return "fallback_scientific"
	case KindFallbackCommon:
		return "fallback_common"
	default:
		return "unknown"
	}
}

// Outranks reports whether a result of kind k takes precedence over one of
// kind other.
func (k ProbeKind) Outranks(other ProbeKind) bool {
	return k < other
}

// Result classifies a single resolution attempt
type Result int

const (
	ResultAbsent Result = iota
	ResultConfirmed
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultConfirmed:
		return "confirmed"
	case ResultError:
		return "error"
	default:
		return "absent"
	}
}

// ProbeTarget is one URL to check for one identifier
type ProbeTarget struct {
	Identifier string
	URL        string
	Kind       ProbeKind
}

// ProbeOutcome is the result of resolving a ProbeTarget.
type ProbeOutcome struct {
	Identifier string
	Kind       ProbeKind
	URL        string // the probed target URL
	Result     Result
	ImageURL   string // set only when Result is ResultConfirmed
	Err        error  // set only when Result is ResultError
}

// Confirmed reports whether the outcome carries an image URL
func (o ProbeOutcome) Confirmed() bool {
	return o.Result == ResultConfirmed && o.ImageURL != ""
}

// Confirm returns a confirmed outcome for t pointing at imageURL.
func Confirm(t ProbeTarget, imageURL string) ProbeOutcome {
	return ProbeOutcome{Identifier: t.Identifier, Kind: t.Kind, URL: t.URL, Result: ResultConfirmed, ImageURL: imageURL}
}

// Absent returns an outcome recording that t has no usable image.
func Absent(t ProbeTarget) ProbeOutcome {
	return ProbeOutcome{Identifier: t.Identifier, Kind: t.Kind, URL: t.URL, Result: ResultAbsent}
}

// Failed returns an error outcome for t.
func Failed(t ProbeTarget, err error) ProbeOutcome {
	return ProbeOutcome{Identifier: t.Identifier, Kind: t.Kind, URL: t.URL, Result: ResultError, Err: err}
}

// Resolver resolves a single target. Implementations must be safe for
// concurrent use and must not return outcomes for other identifiers.
type Resolver interface {
	Resolve(ctx context.Context, target ProbeTarget) ProbeOutcome
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, target ProbeTarget) ProbeOutcome

func (f ResolverFunc) Resolve(ctx context.Context, target ProbeTarget) ProbeOutcome {
	return f(ctx, target)
}

// ErrNoCandidate is returned when no extraction strategy matches a search page
var ErrNoCandidate = errors.NewStd("no image candidate on search page")

// GetLogger returns the imageprovider module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("imageprovider")
}

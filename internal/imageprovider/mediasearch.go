package imageprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"
	"golang.org/x/net/html"

	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

const (
	// maxPageBytes caps how much of a search page is read
	maxPageBytes = 8 << 20
	// excerptRunes is the length of the page text logged when nothing matches
	excerptRunes = 200
)

// MediaSearchConfig configures a MediaSearchResolver. Zero fields take
// defaults.
type MediaSearchConfig struct {
	Strategies []ExtractionStrategy // tried in order
	Extensions []string             // accepted path suffixes, lowercase with dot
}

// MediaSearchResolver fetches a media search results page and extracts the
// first candidate image URL.
//
// A page that cannot be fetched is an error outcome, logged at warn. A page
// where no strategy matches is an error outcome wrapping ErrNoCandidate. A
// candidate whose path does not end in an accepted extension is absent.
type MediaSearchResolver struct {
	client     *httpclient.Client
	strategies []ExtractionStrategy
	extensions []string
	metrics    metrics.Recorder
}

// NewMediaSearchResolver creates a resolver. A nil recorder discards
// metrics.
func NewMediaSearchResolver(client *httpclient.Client, cfg MediaSearchConfig, recorder metrics.Recorder) *MediaSearchResolver {
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = conf.DefaultExtensions
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}

	exts := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		exts[i] = strings.ToLower(ext)
	}

	return &MediaSearchResolver{
		client:     client,
		strategies: cfg.Strategies,
		extensions: exts,
		metrics:    recorder,
	}
}

// Resolve fetches target.URL and extracts a candidate image URL from it.
func (r *MediaSearchResolver) Resolve(ctx context.Context, target ProbeTarget) ProbeOutcome {
	start := time.Now()
	outcome := r.resolve(ctx, target)

	r.metrics.RecordProbeDuration(target.Kind.String(), time.Since(start).Seconds())
	r.metrics.RecordOutcome(target.Kind.String(), outcome.Result.String())
	return outcome
}

func (r *MediaSearchResolver) resolve(ctx context.Context, target ProbeTarget) ProbeOutcome {
	start := time.Now()
	log := GetLogger().WithContext(ctx).With(
		logger.String("identifier", target.Identifier),
		logger.String("kind", target.Kind.String()),
		logger.String("url", target.URL))

	pageURL, err := url.Parse(target.URL)
	if err != nil || pageURL.Host == "" {
		if err == nil {
			err = errors.NewStd("missing host")
		}
		ferr := r.fetchError(target, fmt.Errorf("invalid search URL: %w", err), "parse_url", start)
		log.Warn("Media search failed", logger.Error(ferr))
		return Failed(target, ferr)
	}

	body, err := r.fetch(ctx, target)
	if err != nil {
		log.Warn("Media search failed", logger.Error(err))
		return Failed(target, err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		perr := errors.New(fmt.Errorf("failed to parse search page: %w", err)).
			Component("imageprovider").
			Category(errors.CategoryImageProvider).
			Context("identifier", target.Identifier).
			Context("url", target.URL).
			Build()
		log.Warn("Media search page unparseable", logger.Error(perr))
		return Failed(target, perr)
	}
	doc := goquery.NewDocumentFromNode(root)

	candidate, strategy := r.extract(doc)
	if candidate == "" {
		log.Debug("No extraction strategy matched",
			logger.String("page_excerpt", pageExcerpt(body)))
		return Failed(target, errors.New(ErrNoCandidate).
			Component("imageprovider").
			Category(errors.CategoryImageProvider).
			Context("identifier", target.Identifier).
			Context("url", target.URL).
			Build())
	}

	ref, err := url.Parse(candidate)
	if err != nil {
		log.Debug("Candidate is not a valid URL",
			logger.String("candidate", candidate),
			logger.Error(err))
		return Absent(target)
	}

	if !r.acceptedExtension(ref.Path) {
		log.Debug("Candidate rejected by extension filter",
			logger.String("strategy", strategy),
			logger.String("candidate", candidate))
		return Absent(target)
	}

	imageURL := ResolveCandidate(pageURL, ref)
	log.Debug("Media search candidate accepted",
		logger.String("strategy", strategy),
		logger.String("image_url", imageURL))
	return Confirm(target, imageURL)
}

// fetch returns the body of a 200 response. Every failure is an
// image-fetch error.
func (r *MediaSearchResolver) fetch(ctx context.Context, target ProbeTarget) ([]byte, error) {
	start := time.Now()
	resp, err := r.client.Get(ctx, target.URL)
	if err != nil {
		return nil, r.fetchError(target, fmt.Errorf("search request failed: %w", err), "request", start)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, r.fetchError(target,
			fmt.Errorf("search page returned status %d", resp.StatusCode), "status", start)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, r.fetchError(target, fmt.Errorf("failed to read search page: %w", err), "read_body", start)
	}
	return body, nil
}

func (r *MediaSearchResolver) fetchError(target ProbeTarget, err error, stage string, start time.Time) error {
	return errors.New(err).
		Component("imageprovider").
		Category(errors.CategoryImageFetch).
		NetworkContext(target.URL, r.client.Timeout()).
		Timing("fetch-search-page", time.Since(start)).
		Context("identifier", target.Identifier).
		Context("stage", stage).
		Build()
}

// extract runs the strategies in order and returns the first candidate with
// the name of the strategy that found it.
func (r *MediaSearchResolver) extract(doc *goquery.Document) (candidate, strategy string) {
	for _, s := range r.strategies {
		if c, ok := s.Extract(doc); ok {
			return c, s.Name()
		}
	}
	return "", ""
}

// acceptedExtension matches the decoded path, query excluded, case-insensitively
func (r *MediaSearchResolver) acceptedExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range r.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ResolveCandidate resolves ref against the origin of the search page, so
// relative and protocol-relative candidates become absolute.
func ResolveCandidate(page, ref *url.URL) string {
	origin := &url.URL{Scheme: page.Scheme, Host: page.Host, Path: "/"}
	return origin.ResolveReference(ref).String()
}

// pageExcerpt returns the start of the page as plain text
func pageExcerpt(body []byte) string {
	text := strings.Join(strings.Fields(html2text.HTML2Text(string(body))), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	return string([]rune(text)[:excerptRunes]) + "..."
}

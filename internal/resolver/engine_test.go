package resolver

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imagefinder/internal/catalog"
	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/imageprovider"
)

const (
	searchEndpoint = "https://commons.wikimedia.org/w/index.php"

	emptySearchPage = `<html><body><p class="mw-search-nonefound">There were no results matching the query.</p></body></html>`

	coneflowerGallery = `<html><body><ul class="gallery mw-gallery-traditional">
<li class="gallerybox"><img src="//upload.wikimedia.org/wikipedia/commons/9/9d/Purple_Coneflower_(Echinacea_purpurea).jpg"></li>
</ul></body></html>`
)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Supplier.BaseURL = conf.DefaultSupplierBaseURL
	s.Supplier.PathTemplate = conf.DefaultSupplierPathTemplate
	s.MediaSearch.BaseURL = conf.DefaultMediaSearchBaseURL
	s.MediaSearch.SearchPath = conf.DefaultMediaSearchPath
	s.MediaSearch.Strategies = conf.DefaultStrategies
	s.MediaSearch.Extensions = conf.DefaultExtensions
	s.Resolver.PrimaryWorkers = conf.DefaultPrimaryWorkers
	s.Resolver.FallbackWorkers = conf.DefaultFallbackWorkers
	s.Resolver.FallbackMode = conf.FallbackModeParallel
	s.Resolver.Cache.Enabled = true
	s.Resolver.Cache.TTL = time.Hour
	return s
}

func newMockEngine(t *testing.T, settings *conf.Settings) (*Engine, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: transport})
	t.Cleanup(client.Close)

	engine, err := NewEngineFromSettings(settings, client, nil, nil)
	require.NoError(t, err)
	return engine, transport
}

func echinaceaRecord() catalog.Record {
	return catalog.Record{
		Identifier:  "X123",
		Genus:       "Echinacea",
		Species:     "purpurea",
		CommonNames: []string{"Purple Coneflower", "Eastern Purple Coneflower"},
		Row:         2,
	}
}

func TestEngine_EchinaceaFallsBackToCommonName(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{conf.FallbackModeParallel, conf.FallbackModeSequential} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()

			settings := testSettings()
			settings.Resolver.FallbackMode = mode
			engine, transport := newMockEngine(t, settings)

			transport.RegisterResponder(http.MethodGet, primaryURL,
				httpmock.NewStringResponder(http.StatusNotFound, "Not Found"))
			transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
				map[string]string{"search": "echinacea purpurea"},
				httpmock.NewStringResponder(http.StatusOK, emptySearchPage))
			transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
				map[string]string{"search": "Purple Coneflower"},
				httpmock.NewStringResponder(http.StatusOK, coneflowerGallery))

			res, err := engine.Resolve(t.Context(), []catalog.Record{echinaceaRecord()})
			require.NoError(t, err)

			r, ok := res.Map.Get("X123")
			require.True(t, ok)
			assert.Equal(t, "https://upload.wikimedia.org/wikipedia/commons/9/9d/Purple_Coneflower_(Echinacea_purpurea).jpg", r.URL)
			assert.Equal(t, imageprovider.KindFallbackCommon, r.Source)

			assert.Equal(t, 3, transport.GetTotalCallCount())
			assert.Equal(t, 1, res.Errors, "scientific search page without candidates")
			assert.Len(t, res.Outcomes, 3)
			assert.NotEmpty(t, res.RunID)
		})
	}
}

func TestEngine_PrimaryConfirmedSkipsFallback(t *testing.T) {
	t.Parallel()

	engine, transport := newMockEngine(t, testSettings())
	transport.RegisterResponder(http.MethodGet, primaryURL, httpmock.NewStringResponder(http.StatusOK, "jpeg"))

	res, err := engine.Resolve(t.Context(), []catalog.Record{echinaceaRecord()})
	require.NoError(t, err)

	r, _ := res.Map.Get("x123")
	assert.Equal(t, primaryURL, r.URL)
	assert.Equal(t, imageprovider.KindPrimarySite, r.Source)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "no media search for confirmed identifiers")
	assert.Zero(t, res.Fallback.Units)
}

func TestEngine_SequentialSkipsCommonWhenScientificResolves(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Resolver.FallbackMode = conf.FallbackModeSequential
	engine, transport := newMockEngine(t, settings)

	transport.RegisterResponder(http.MethodGet, primaryURL, httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
		map[string]string{"search": "echinacea purpurea"},
		httpmock.NewStringResponder(http.StatusOK, `<ul><li class="mw-search-result"><a href="/wiki/File:E_purpurea.jpg">e</a></li></ul>`))

	res, err := engine.Resolve(t.Context(), []catalog.Record{echinaceaRecord()})
	require.NoError(t, err)

	r, _ := res.Map.Get("X123")
	assert.Equal(t, "https://commons.wikimedia.org/wiki/File:E_purpurea.jpg", r.URL)
	assert.Equal(t, imageprovider.KindFallbackScientific, r.Source)
	assert.Equal(t, 2, transport.GetTotalCallCount(), "common name search not needed")
}

func TestEngine_ParallelScientificWinsOverCommon(t *testing.T) {
	t.Parallel()

	engine, transport := newMockEngine(t, testSettings())
	transport.RegisterResponder(http.MethodGet, primaryURL, httpmock.NewErrorResponder(context.DeadlineExceeded))
	transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
		map[string]string{"search": "echinacea purpurea"},
		httpmock.NewStringResponder(http.StatusOK, `<ul><li class="mw-search-result"><a href="/wiki/File:E_purpurea.jpg">e</a></li></ul>`))
	transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
		map[string]string{"search": "Purple Coneflower"},
		httpmock.NewStringResponder(http.StatusOK, coneflowerGallery))

	res, err := engine.Resolve(t.Context(), []catalog.Record{echinaceaRecord()})
	require.NoError(t, err)

	r, _ := res.Map.Get("X123")
	assert.Equal(t, imageprovider.KindFallbackScientific, r.Source)
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestEngine_NoCommonNamesEndsWithoutURL(t *testing.T) {
	t.Parallel()

	engine, transport := newMockEngine(t, testSettings())
	// every request fails: primary absent, search errors
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	rec := echinaceaRecord()
	rec.CommonNames = nil
	res, err := engine.Resolve(t.Context(), []catalog.Record{rec})
	require.NoError(t, err)

	r, ok := res.Map.Get("X123")
	require.True(t, ok)
	assert.False(t, r.Found)
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.Equal(t, 1, res.Failures())
}

func TestEngine_SharedSearchesAreFetchedOnce(t *testing.T) {
	t.Parallel()

	engine, transport := newMockEngine(t, testSettings())
	var searches atomic.Int32
	transport.RegisterResponderWithQuery(http.MethodGet, searchEndpoint,
		map[string]string{"search": "echinacea purpurea"},
		func(*http.Request) (*http.Response, error) {
			searches.Add(1)
			return httpmock.NewStringResponse(http.StatusOK, coneflowerGallery), nil
		})
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusNotFound, ""))

	recs := make([]catalog.Record, 0, 3)
	for _, id := range []string{"X123", "X124", "X125"} {
		rec := echinaceaRecord()
		rec.Identifier = id
		rec.CommonNames = nil
		recs = append(recs, rec)
	}

	res, err := engine.Resolve(t.Context(), recs)
	require.NoError(t, err)

	for _, id := range []string{"X123", "X124", "X125"} {
		r, _ := res.Map.Get(id)
		assert.True(t, r.Found, id)
		assert.Equal(t, imageprovider.KindFallbackScientific, r.Source, id)
	}
	assert.Equal(t, int32(1), searches.Load(), "identical searches share one request")
}

// panickingResolver panics for one identifier and confirms the rest
type panickingResolver struct {
	panicFor string
}

func (p panickingResolver) Resolve(_ context.Context, t imageprovider.ProbeTarget) imageprovider.ProbeOutcome {
	if t.Identifier == p.panicFor {
		panic("malformed response")
	}
	return imageprovider.Confirm(t, t.URL)
}

func TestEngine_UnitPanicLeavesEntryUnresolved(t *testing.T) {
	t.Parallel()

	n := imageprovider.NewNormalizer(imageprovider.NormalizerConfig{})
	fallback := imageprovider.ResolverFunc(func(_ context.Context, t imageprovider.ProbeTarget) imageprovider.ProbeOutcome {
		return imageprovider.Absent(t)
	})
	engine := NewEngine(n, panickingResolver{panicFor: "B"}, fallback, Options{PrimaryWorkers: 4, FallbackWorkers: 4})

	res, err := engine.Resolve(t.Context(), records("A", "B", "C", "D"))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Map.Len(), "every identifier keeps an entry")
	for _, id := range []string{"A", "C", "D"} {
		assert.True(t, res.Map.Found(id), id)
	}
	assert.False(t, res.Map.Found("B"))
	assert.Equal(t, 1, res.Primary.Panics)
	assert.Equal(t, 1, res.Fallback.Units, "only B goes to the fallback wave")
}

// summarySpy captures SetRunSummary
type summarySpy struct {
	mu       sync.Mutex
	bySource map[string]int
	calls    int
}

func (s *summarySpy) SetRunSummary(bySource map[string]int, _ float64, _ int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySource = bySource
	s.calls++
}

func TestEngine_ReportsRunSummary(t *testing.T) {
	t.Parallel()

	spy := &summarySpy{}
	n := imageprovider.NewNormalizer(imageprovider.NormalizerConfig{})
	primary := imageprovider.ResolverFunc(func(_ context.Context, t imageprovider.ProbeTarget) imageprovider.ProbeOutcome {
		if t.Identifier == "A" {
			return imageprovider.Confirm(t, t.URL)
		}
		return imageprovider.Absent(t)
	})
	fallback := imageprovider.ResolverFunc(func(_ context.Context, t imageprovider.ProbeTarget) imageprovider.ProbeOutcome {
		return imageprovider.Absent(t)
	})
	engine := NewEngine(n, primary, fallback, Options{Summary: spy})

	_, err := engine.Resolve(t.Context(), records("A", "B"))
	require.NoError(t, err)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, 1, spy.bySource["primary_site"])
	assert.Equal(t, 1, spy.bySource[SourceNone])
}

func TestEngine_RejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	n := imageprovider.NewNormalizer(imageprovider.NormalizerConfig{})
	never := imageprovider.ResolverFunc(func(context.Context, imageprovider.ProbeTarget) imageprovider.ProbeOutcome {
		panic("no probe expected before validation")
	})
	engine := NewEngine(n, never, never, Options{})

	_, err := engine.Resolve(t.Context(), records("X123", "x123"))
	require.ErrorIs(t, err, catalog.ErrDuplicateIdentifier)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	_, err = engine.Resolve(t.Context(), records("A", " "))
	require.ErrorIs(t, err, catalog.ErrEmptyIdentifier)
}

func TestNewEngineFromSettings_UnknownStrategy(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.MediaSearch.Strategies = []string{"xpath"}

	_, err := NewEngineFromSettings(settings, httpclient.New(nil), nil, nil)
	require.Error(t, err)
}

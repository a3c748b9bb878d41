package lookup

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imagefinder/internal/buildinfo"
	"github.com/tphakala/imagefinder/internal/conf"
	"github.com/tphakala/imagefinder/internal/httpclient"
	"github.com/tphakala/imagefinder/internal/observability"
	runtimectx "github.com/tphakala/imagefinder/internal/runtime"
)

func newTestRuntime(t *testing.T) (*runtimectx.Context, *httpmock.MockTransport) {
	t.Helper()

	s := &conf.Settings{}
	s.Supplier.BaseURL = conf.DefaultSupplierBaseURL
	s.Supplier.PathTemplate = conf.DefaultSupplierPathTemplate
	s.MediaSearch.BaseURL = conf.DefaultMediaSearchBaseURL
	s.MediaSearch.SearchPath = conf.DefaultMediaSearchPath
	s.MediaSearch.Strategies = conf.DefaultStrategies
	s.MediaSearch.Extensions = conf.DefaultExtensions
	s.Resolver.Cache.Enabled = true
	s.Resolver.Cache.TTL = time.Hour

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: transport})
	t.Cleanup(client.Close)

	rt := runtimectx.New(buildinfo.NewContext("test", ""))
	rt.Settings = s
	rt.Client = client
	rt.Metrics = m
	return rt, transport
}

func TestRecordFromArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  []string
		names []string
	}{
		{"no common names", []string{"X123", "Echinacea", "purpurea"}, nil},
		{"one comma separated argument", []string{"X123", "Echinacea", "purpurea", "Purple Coneflower, Eastern Purple Coneflower"}, []string{"Purple Coneflower", "Eastern Purple Coneflower"}},
		{"several arguments", []string{"X123", "Echinacea", "purpurea", "Purple Coneflower", "Eastern Purple Coneflower"}, []string{"Purple Coneflower", "Eastern Purple Coneflower"}},
		{"blank names dropped", []string{" X123 ", "Echinacea", "purpurea", " , "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := RecordFromArgs(tt.args)
			assert.Equal(t, "X123", rec.Identifier)
			assert.Equal(t, "Echinacea", rec.Genus)
			assert.Equal(t, "purpurea", rec.Species)
			assert.Equal(t, tt.names, rec.CommonNames)
		})
	}
}

func TestRun_PrintsChosenURLAndOutcomes(t *testing.T) {
	t.Parallel()

	rt, transport := newTestRuntime(t)
	transport.RegisterResponder(http.MethodGet, "https://www.jelitto.com/out/pictures/master/product/1/x123.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "Not Found"))
	transport.RegisterResponderWithQuery(http.MethodGet, "https://commons.wikimedia.org/w/index.php",
		map[string]string{"search": "echinacea purpurea"},
		httpmock.NewStringResponder(http.StatusOK, `<html><body><ul class="mw-search-results"><li class="mw-search-result"><a href="/wiki/File:Echinacea_purpurea.jpg">Echinacea</a></li></ul></body></html>`))
	transport.RegisterResponderWithQuery(http.MethodGet, "https://commons.wikimedia.org/w/index.php",
		map[string]string{"search": "Purple Coneflower"},
		httpmock.NewStringResponder(http.StatusOK, `<html><body></body></html>`))

	var out bytes.Buffer
	require.NoError(t, Run(t.Context(), rt, RecordFromArgs([]string{"X123", "Echinacea", "purpurea", "Purple Coneflower"}), &out))

	first, rest, _ := strings.Cut(out.String(), "\n")
	assert.Equal(t, "X123: https://commons.wikimedia.org/wiki/File:Echinacea_purpurea.jpg (fallback_scientific)", first)
	assert.Contains(t, rest, "primary_site")
	assert.Contains(t, rest, "fallback_common")
	assert.Contains(t, rest, "absent")
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestRun_NothingFound(t *testing.T) {
	t.Parallel()

	rt, transport := newTestRuntime(t)
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusNotFound, "Not Found"))

	var out bytes.Buffer
	require.NoError(t, Run(t.Context(), rt, RecordFromArgs([]string{"Z999", "Nonexistia", "fabricata"}), &out))
	assert.True(t, strings.HasPrefix(out.String(), "Z999: no image found\n"))
}

func TestRun_RejectsEmptyIdentifier(t *testing.T) {
	t.Parallel()

	rt, transport := newTestRuntime(t)
	err := Run(t.Context(), rt, RecordFromArgs([]string{"  ", "Echinacea", "purpurea"}), &bytes.Buffer{})
	require.Error(t, err)
	assert.Zero(t, transport.GetTotalCallCount())
}

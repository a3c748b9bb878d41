package runtime

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imagefinder/internal/buildinfo"
	"github.com/tphakala/imagefinder/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Setup replaces process-wide logger and error hooks, so these tests do not
// run in parallel.

func TestSetup_BuildsClientFromSettings(t *testing.T) {
	var (
		mu        sync.Mutex
		userAgent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		userAgent = r.Header.Get("User-Agent")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	rt := New(buildinfo.NewContext("v1.2.3", "2026-01-01"))
	require.NoError(t, rt.Setup(viper.New(), writeConfig(t, "resolver:\n  timeout: 7s\n")))
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.Settings)
	require.NotNil(t, rt.Metrics)
	assert.Equal(t, 7*time.Second, rt.Client.Timeout())

	resp, err := rt.Client.Get(t.Context(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasPrefix(userAgent, "imagefinder/v1.2.3 ("), userAgent)
}

func TestSetup_ConfiguredUserAgentWins(t *testing.T) {
	var (
		mu        sync.Mutex
		userAgent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		userAgent = r.Header.Get("User-Agent")
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	rt := New(buildinfo.NewContext("", ""))
	require.NoError(t, rt.Setup(viper.New(), writeConfig(t, "resolver:\n  useragent: catalog-bot/2.0 (ops@example.com)\n")))
	t.Cleanup(func() { _ = rt.Close() })

	resp, err := rt.Client.Get(t.Context(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "catalog-bot/2.0 (ops@example.com)", userAgent)
}

func TestSetup_DebugLowersLogLevels(t *testing.T) {
	rt := New(buildinfo.NewContext("", ""))
	require.NoError(t, rt.Setup(viper.New(), writeConfig(t, "debug: true\n")))
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, "debug", rt.Settings.Logging.DefaultLevel)
	require.NotNil(t, rt.Settings.Logging.Console)
	assert.Equal(t, "debug", rt.Settings.Logging.Console.Level)
}

func TestSetup_InvalidConfig(t *testing.T) {
	rt := New(buildinfo.NewContext("", ""))
	err := rt.Setup(viper.New(), writeConfig(t, "resolver:\n  fallbackmode: sideways\n"))
	require.Error(t, err)
	assert.Nil(t, rt.Client)
	assert.NoError(t, rt.Close(), "closing a context that never initialized")
}

func TestClose_RemovesErrorHooks(t *testing.T) {
	rt := New(buildinfo.NewContext("", ""))
	require.NoError(t, rt.Setup(viper.New(), writeConfig(t, "debug: false\n")))

	_ = errors.Newf("probe failed").Component("imageprovider").Category(errors.CategoryImageFetch).Build()
	families, err := rt.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.True(t, hasFamily(families, "imagefinder_errors_total"), "error hook feeds the metrics")

	require.NoError(t, rt.Close())

	before := countErrors(t, rt)
	_ = errors.Newf("probe failed").Component("imageprovider").Category(errors.CategoryImageFetch).Build()
	assert.Equal(t, before, countErrors(t, rt), "no hook after Close")
}

func hasFamily(families []*dto.MetricFamily, name string) bool {
	for _, f := range families {
		if f.GetName() == name {
			return true
		}
	}
	return false
}

func countErrors(t *testing.T, rt *Context) float64 {
	t.Helper()
	families, err := rt.Metrics.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != "imagefinder_errors_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

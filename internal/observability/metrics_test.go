package observability

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imagefinder/internal/errors"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called
// concurrently; every call owns a private registry.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			assert.NoError(t, err)
			if assert.NotNil(t, m) {
				assert.NotNil(t, m.Registry())
				assert.NotNil(t, m.Resolver)
			}
		})
	}
	wg.Wait()
}

func TestHTTPResponseHook(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	hook := m.HTTPResponseHook()

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "commons.wikimedia.org", Path: "/w/index.php"}}
	hook(req, &http.Response{StatusCode: http.StatusOK}, nil)
	hook(req, &http.Response{StatusCode: http.StatusNotFound}, nil)
	hook(req, nil, errors.NewStd("connection refused"))

	expected := `
# HELP imagefinder_http_responses_total HTTP responses by host and status class; transport failures use class "error".
# TYPE imagefinder_http_responses_total counter
imagefinder_http_responses_total{host="commons.wikimedia.org",status_class="2xx"} 1
imagefinder_http_responses_total{host="commons.wikimedia.org",status_class="4xx"} 1
imagefinder_http_responses_total{host="commons.wikimedia.org",status_class="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "imagefinder_http_responses_total"))
}

func TestErrorHook(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	// Invoke the hook directly; registering it globally would leak into
	// parallel tests of other packages sharing the process.
	hook := m.ErrorHook()
	hook(errors.Newf("search page unavailable").
		Component("imageprovider").
		Category(errors.CategoryImageFetch).
		Build())

	count, err := testutil.GatherAndCount(m.Registry(), "imagefinder_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Resolver.RecordOutcome("primary_site", "confirmed")

	path := filepath.Join(t.TempDir(), "imagefinder.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), `imagefinder_probe_outcomes_total{kind="primary_site",result="confirmed"} 1`)
	assert.Contains(t, string(data), "go_goroutines")

	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

package imageprovider_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/tphakala/imagefinder/internal/httpclient"
)

const (
	supplierBase = "https://www.jelitto.com"
	mediaBase    = "https://commons.wikimedia.org"
	searchPath   = mediaBase + "/w/index.php"
)

// newMockClient returns a client whose requests are served by a fresh
// httpmock transport.
func newMockClient(t *testing.T) (*httpclient.Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: transport})
	t.Cleanup(client.Close)
	return client, transport
}

// newServerClient returns a client for talking to httptest servers.
func newServerClient(t *testing.T) *httpclient.Client {
	t.Helper()
	client := httpclient.New(&httpclient.Config{Transport: http.DefaultTransport})
	t.Cleanup(client.Close)
	return client
}

// fakeRecorder captures metrics calls
type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int // "kind/result" -> count
	lookups  map[string]int
	probes   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[string]int{}, lookups: map[string]int{}}
}

func (f *fakeRecorder) RecordOutcome(kind, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[kind+"/"+result]++
}

func (f *fakeRecorder) RecordProbeDuration(string, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
}

func (f *fakeRecorder) RecordCacheLookup(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[result]++
}

func (f *fakeRecorder) RecordUnitFailure(string, string) {}

func (f *fakeRecorder) outcome(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[key]
}

func (f *fakeRecorder) lookup(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups[key]
}

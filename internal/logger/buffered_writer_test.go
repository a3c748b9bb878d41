package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedFileWriter_WriteAndFlush(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	w, err := NewBufferedFileWriter(path, WithFlushInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	n, err := w.Write([]byte("resolved X123\n"))
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, 14, w.Buffered())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Empty(t, data, "nothing reaches the file before Flush")

	require.NoError(t, w.Flush())
	assert.Zero(t, w.Buffered())

	data, err = os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "resolved X123\n", string(data))
}

func TestBufferedFileWriter_AutoFlush(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auto.log")
	w, err := NewBufferedFileWriter(path, WithFlushInterval(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.Write([]byte("tick\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path) //nolint:gosec // test path
		return err == nil && string(data) == "tick\n"
	}, time.Second, 10*time.Millisecond)
}

func TestBufferedFileWriter_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "close.log")
	w, err := NewBufferedFileWriter(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("last line\n"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "last line\n", string(data))

	_, err = w.Write([]byte("after close"))
	require.Error(t, err)
	assert.NoError(t, w.Flush())
	assert.Zero(t, w.Buffered())
}

func TestBufferedFileWriter_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewBufferedFileWriter(path, WithBufferSize(256), WithFlushInterval(0))
	require.NoError(t, err)

	const writers, lines = 10, 50
	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			for j := range lines {
				_, _ = fmt.Fprintf(w, "worker=%d line=%d\n", i, j)
			}
		})
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, got, writers*lines)
	for _, line := range got {
		assert.True(t, strings.HasPrefix(line, "worker="), "interleaved write: %q", line)
	}
}

func TestBufferedFileWriter_Appends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "append.log")
	require.NoError(t, os.WriteFile(path, []byte("first run\n"), LogFilePermissions))

	w, err := NewBufferedFileWriter(path, WithFlushInterval(0))
	require.NoError(t, err)
	_, err = w.Write([]byte("second run\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Equal(t, "first run\nsecond run\n", string(data))
}

func TestNewBufferedFileWriter_InvalidPath(t *testing.T) {
	t.Parallel()

	_, err := NewBufferedFileWriter(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	require.Error(t, err)
}

func BenchmarkBufferedFileWriter_Write(b *testing.B) {
	w, err := NewBufferedFileWriter(filepath.Join(b.TempDir(), "bench.log"), WithFlushInterval(0))
	require.NoError(b, err)
	b.Cleanup(func() { _ = w.Close() })

	line := []byte(`{"level":"INFO","module":"dispatch","msg":"Unit completed"}` + "\n")
	b.ReportAllocs()
	for b.Loop() {
		_, _ = w.Write(line)
	}
}

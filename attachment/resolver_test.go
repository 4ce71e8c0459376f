package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipm/logger"
)

const pngB64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(pngB64)
	require.NoError(t, err)
	return data
}

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ref1.png"), pngBytes(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("just some text"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	return dir
}

func newTestResolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger(t)
	}
	return NewResolver(opts)
}

func TestResolver_Resolve(t *testing.T) {
	dir := setupDir(t)
	r := newTestResolver(t, Options{BaseDir: dir, Concurrency: 2})
	ctx := context.Background()

	uri, err := r.Resolve(ctx, "ref1.png")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+pngB64, uri)

	uri, err = r.Resolve(ctx, filepath.Join(dir, "ref1.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	dataURI := "data:image/jpeg;base64,AAAA"
	uri, err = r.Resolve(ctx, dataURI)
	require.NoError(t, err)
	assert.Equal(t, dataURI, uri)

	uri, err = r.Resolve(ctx, " https://example.com/a.png ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", uri)
}

func TestResolver_ResolveErrors(t *testing.T) {
	dir := setupDir(t)
	r := newTestResolver(t, Options{BaseDir: dir, MaxBytes: 1 << 20})
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		want error
	}{
		{"empty", "   ", ErrNotFound},
		{"missing", "ref2.png", ErrNotFound},
		{"directory", "sub", ErrNotFound},
		{"escape", "../secret.png", ErrForbidden},
		{"absolute outside", "/etc/passwd", ErrForbidden},
		{"not an image", "notes.txt", ErrNotImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(ctx, tt.ref)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.True(t, Unavailable(err))
		})
	}
}

func TestResolver_TooLarge(t *testing.T) {
	dir := setupDir(t)
	r := newTestResolver(t, Options{BaseDir: dir, MaxBytes: 10})

	_, err := r.Resolve(context.Background(), "ref1.png")
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestResolver_ResolveAllLeavesEmptySlots(t *testing.T) {
	dir := setupDir(t)
	r := newTestResolver(t, Options{BaseDir: dir, Concurrency: 2})

	out, err := r.ResolveAll(context.Background(), []string{"ref1.png", "missing.png", "notes.txt", "https://example.com/x.png"})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.True(t, strings.HasPrefix(out[0], "data:image/png;base64,"))
	assert.Empty(t, out[1])
	assert.Empty(t, out[2])
	assert.Equal(t, "https://example.com/x.png", out[3])
}

type failingFetcher struct{ err error }

func (f failingFetcher) Fetch(context.Context, string) ([]byte, error) { return nil, f.err }

func TestResolver_ResolveAllAbortsOnIOError(t *testing.T) {
	boom := errors.New("disk on fire")
	r := newTestResolver(t, Options{}).WithFetchers(failingFetcher{err: boom}, nil)

	_, err := r.ResolveAll(context.Background(), []string{"a.png", "b.png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, Unavailable(err))
}

func TestResolver_InlineRemote(t *testing.T) {
	png := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ref.png":
			_, _ = w.Write(png)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>hi</body></html>"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	r := newTestResolver(t, Options{InlineRemote: true, Concurrency: 3})

	out, err := r.ResolveAll(context.Background(), []string{srv.URL + "/ref.png", srv.URL + "/gone.png", srv.URL + "/page.html"})
	require.NoError(t, err)
	assert.Equal(t, []string{"data:image/png;base64," + pngB64, "", ""}, out)
	assert.Equal(t, int32(3), hits.Load())

	_, err = r.Resolve(context.Background(), srv.URL+"/broken")
	require.Error(t, err)
	assert.False(t, Unavailable(err))
}

func TestHTTPFetcher_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(0, 16)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("attachment not found")
	ErrForbidden = errors.New("attachment path escapes base directory")
	ErrNotImage  = errors.New("attachment is not an image")
	ErrTooLarge  = errors.New("attachment exceeds size limit")
)

// Fetcher loads the raw bytes behind an attachment reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// LocalFetcher reads files below BaseDir. Relative refs are joined to
// BaseDir; absolute refs must already lie inside it.
type LocalFetcher struct {
	BaseDir  string
	MaxBytes int64
}

func (f LocalFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	base, err := filepath.Abs(f.BaseDir)
	if err != nil {
		return nil, err
	}
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, ref)
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, ref)
	}
	if f.MaxBytes > 0 && info.Size() > f.MaxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, ref)
	}
	return os.ReadFile(p)
}

// HTTPFetcher downloads remote images.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, MaxBytes: maxBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, ref)
	}
	return data, nil
}

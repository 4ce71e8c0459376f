package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"aipm/logger"
)

// Options configure a Resolver.
type Options struct {
	BaseDir      string
	InlineRemote bool
	FetchTimeout time.Duration
	MaxBytes     int64
	Concurrency  int
	Logger       logger.Logger
}

// Resolver 把请求中的图片引用转换为模型可以直接使用的形式：
// data URI 原样保留；http(s) 地址默认直接转发，开启 InlineRemote 时下载后内联；
// 本地路径读取后编码为 base64 data URI。
type Resolver struct {
	local        Fetcher
	remote       Fetcher
	inlineRemote bool
	concurrency  int
	log          logger.Logger
}

func NewResolver(opts Options) *Resolver {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Resolver{
		local:        LocalFetcher{BaseDir: opts.BaseDir, MaxBytes: opts.MaxBytes},
		remote:       NewHTTPFetcher(opts.FetchTimeout, opts.MaxBytes),
		inlineRemote: opts.InlineRemote,
		concurrency:  opts.Concurrency,
		log:          opts.Logger,
	}
}

// WithFetchers swaps the underlying fetchers, mainly for tests.
func (r *Resolver) WithFetchers(local, remote Fetcher) *Resolver {
	cp := *r
	if local != nil {
		cp.local = local
	}
	if remote != nil {
		cp.remote = remote
	}
	return &cp
}

// Resolve turns one reference into a data URI or remote URL.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	case strings.HasPrefix(ref, "data:"):
		return ref, nil
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		if !r.inlineRemote {
			return ref, nil
		}
		data, err := r.remote.Fetch(ctx, ref)
		if err != nil {
			return "", err
		}
		return encodeDataURI(ref, data)
	default:
		data, err := r.local.Fetch(ctx, ref)
		if err != nil {
			return "", err
		}
		return encodeDataURI(ref, data)
	}
}

// ResolveAll resolves refs concurrently, preserving order. Unavailable
// images leave an empty slot instead of failing the batch; any other error
// aborts.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) ([]string, error) {
	out := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			uri, err := r.Resolve(gctx, ref)
			if err != nil {
				if Unavailable(err) {
					r.log.Warn("attachment unavailable, slot left empty", logger.Fields{
						"slot":  fmt.Sprintf("image%d", i+1),
						"ref":   ref,
						"error": err.Error(),
					})
					return nil
				}
				return fmt.Errorf("image%d: %w", i+1, err)
			}
			out[i] = uri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Unavailable reports whether err means the image simply cannot be used,
// as opposed to an I/O or transport failure.
func Unavailable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotImage) || errors.Is(err, ErrTooLarge)
}

func encodeDataURI(ref string, data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s (%s)", ErrNotImage, ref, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

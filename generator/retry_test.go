package generator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipm/logger"
)

// flakyLLM fails the first `failures` calls with err, then succeeds.
type flakyLLM struct {
	failures    int32
	err         error
	calls       atomic.Int32
	sawDeadline atomic.Bool
}

func (f *flakyLLM) Complete(ctx context.Context, _ Prompt) (string, error) {
	n := f.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		f.sawDeadline.Store(true)
	}
	if n <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyLLM) GenerateImage(ctx context.Context, _ ImagePrompt) (ImageResult, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return ImageResult{}, f.err
	}
	return ImageResult{Format: ImageFormatURL, ImageData: "https://example.com/a.png"}, nil
}

// slowLLM blocks until the per-call context ends.
type slowLLM struct {
	calls atomic.Int32
}

func (s *slowLLM) Complete(ctx context.Context, _ Prompt) (string, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return "", upstreamError(ctx.Err(), true)
}

func (s *slowLLM) GenerateImage(ctx context.Context, _ ImagePrompt) (ImageResult, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return ImageResult{}, upstreamError(ctx.Err(), true)
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		CallTimeout:    time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetryingLLM_RetriesTransientFailures(t *testing.T) {
	next := &flakyLLM{failures: 2, err: upstreamError(errors.New("503"), true)}
	r, err := NewRetryingLLM(next, fastPolicy(3), logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := r.Complete(context.Background(), Prompt{Stage: StageClassify})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), next.calls.Load())
	assert.True(t, next.sawDeadline.Load(), "each attempt runs under a call timeout")
}

func TestRetryingLLM_GiveUpAfterMaxRetries(t *testing.T) {
	next := &flakyLLM{failures: 100, err: upstreamError(errors.New("429"), true)}
	r, err := NewRetryingLLM(next, fastPolicy(2), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = r.GenerateImage(context.Background(), ImagePrompt{Stage: StageDraftImage})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestRetryingLLM_NoRetryOnPermanentError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "non retryable upstream", err: upstreamError(errors.New("401"), false), wantErr: ErrUpstreamFailure},
		{name: "malformed reply", err: malformedError("no choices", nil), wantErr: ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &flakyLLM{failures: 100, err: tt.err}
			r, err := NewRetryingLLM(next, fastPolicy(3), logger.NewTestLogger(t))
			require.NoError(t, err)

			_, err = r.Complete(context.Background(), Prompt{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, int32(1), next.calls.Load())
		})
	}
}

func TestRetryingLLM_CallTimeout(t *testing.T) {
	next := &slowLLM{}
	policy := fastPolicy(1)
	policy.CallTimeout = 20 * time.Millisecond
	r, err := NewRetryingLLM(next, policy, logger.NewTestLogger(t))
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Complete(context.Background(), Prompt{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryingLLM_CancelledContext(t *testing.T) {
	next := &flakyLLM{}
	r, err := NewRetryingLLM(next, fastPolicy(3), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Complete(ctx, Prompt{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestNewRetryingLLM_Validation(t *testing.T) {
	_, err := NewRetryingLLM(nil, fastPolicy(1), nil)
	assert.Error(t, err)

	_, err = NewRetryingLLM(&flakyLLM{}, RetryPolicy{}, nil)
	assert.Error(t, err)
}

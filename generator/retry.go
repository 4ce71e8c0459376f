package generator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"aipm/logger"
	"aipm/metrics"
)

// RetryPolicy bounds every outbound model call.
type RetryPolicy struct {
	CallTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RatePerSecond <= 0 disables client-side rate limiting.
	RatePerSecond float64
	Burst         int
}

// RetryingLLM 为任意 LLMClient 增加单次超时、指数退避重试与限流。
// 只有标记为可重试的上游错误才会重试。
type RetryingLLM struct {
	next    LLMClient
	policy  RetryPolicy
	limiter *rate.Limiter
	log     logger.Logger
}

func NewRetryingLLM(next LLMClient, policy RetryPolicy, log logger.Logger) (*RetryingLLM, error) {
	if next == nil {
		return nil, errors.New("llm client is required")
	}
	if policy.CallTimeout <= 0 {
		return nil, errors.New("call timeout must be positive")
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = 500 * time.Millisecond
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if log == nil {
		log = logger.NewNop()
	}

	limit := rate.Inf
	if policy.RatePerSecond > 0 {
		limit = rate.Limit(policy.RatePerSecond)
	}
	burst := policy.Burst
	if burst < 1 {
		burst = 1
	}

	return &RetryingLLM{
		next:    next,
		policy:  policy,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}, nil
}

func (r *RetryingLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var out string
	err := r.do(ctx, "complete", func(callCtx context.Context) error {
		s, err := r.next.Complete(callCtx, prompt)
		out = s
		return err
	})
	return out, err
}

func (r *RetryingLLM) GenerateImage(ctx context.Context, prompt ImagePrompt) (ImageResult, error) {
	var out ImageResult
	err := r.do(ctx, "generate_image", func(callCtx context.Context) error {
		res, err := r.next.GenerateImage(callCtx, prompt)
		out = res
		return err
	})
	return out, err
}

func (r *RetryingLLM) do(ctx context.Context, op string, call func(context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialBackoff
	exp.MaxInterval = r.policy.MaxBackoff
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(upstreamError(err, false))
		}
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.ModelRetries.WithLabelValues(op).Inc()
		r.log.Warn("model call failed, retrying", logger.Fields{
			"operation": op,
			"attempt":   attempt,
			"wait":      wait.String(),
			"error":     err.Error(),
		})
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if !errors.As(err, &pe) {
		// 请求上下文已取消或超时
		return upstreamError(err, false)
	}
	return err
}

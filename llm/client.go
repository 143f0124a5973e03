package llm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/firmretr/firmretr/llm/retry"
)

const tracerName = "github.com/firmretr/firmretr/llm"

// ClientConfig configures the resilient invocation client.
type ClientConfig struct {
	// Policy is the attempt budget and backoff shape.
	Policy retry.Policy
	// DefaultTimeout applies to a request whose Timeout is zero.
	DefaultTimeout time.Duration
	// MaxInputTokens rejects oversized prompts before calling the oracle; 0 disables it.
	MaxInputTokens int
	// Seed feeds the jitter source; 0 seeds from the clock.
	Seed int64
}

// DefaultClientConfig returns the defaults used by the pipeline.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Policy:         retry.DefaultPolicy(),
		DefaultTimeout: 360 * time.Second,
	}
}

// Client wraps a Provider with failure classification and bounded
// exponential backoff. It holds no per-call state and is safe for
// concurrent use by many workers.
type Client struct {
	provider       Provider
	policy         retry.Policy
	defaultTimeout time.Duration
	maxInputTokens int

	counter  TokenCounter
	recorder Recorder
	sleep    retry.SleepFunc
	logger   *zap.Logger
	tracer   trace.Tracer

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTokenCounter enables the prompt-size preflight check.
func WithTokenCounter(counter TokenCounter) ClientOption {
	return func(c *Client) { c.counter = counter }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn retry.SleepFunc) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates an invocation client around provider.
func NewClient(provider Provider, cfg ClientConfig, opts ...ClientOption) *Client {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := &Client{
		provider:       provider,
		policy:         cfg.Policy.Normalize(),
		defaultTimeout: cfg.DefaultTimeout,
		maxInputTokens: cfg.MaxInputTokens,
		sleep:          retry.Sleep,
		logger:         zap.NewNop(),
		tracer:         otel.Tracer(tracerName),
		rnd:            rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "llm_client"), zap.String("provider", provider.Name()))
	return c
}

// Policy returns the effective retry policy.
func (c *Client) Policy() retry.Policy { return c.policy }

// Invoke sends req to the oracle. On failure the returned error is always
// an *Error: terminal kinds return at once, retryable kinds are retried until
// the attempt budget runs out and the last error is returned.
func (c *Client) Invoke(ctx context.Context, req *ChatRequest) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "llm.invoke", trace.WithAttributes(
		attribute.String("llm.provider", c.provider.Name()),
		attribute.String("llm.model", modelOf(req)),
	))
	defer span.End()

	res, err := c.invoke(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.attempts", res.Attempts),
		attribute.Int("llm.tokens.total", res.Usage.TotalTokens),
	)
	return res, nil
}

func (c *Client) invoke(ctx context.Context, req *ChatRequest) (*Result, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, NewError(KindBadRequest, "request has no messages").WithProvider(c.provider.Name())
	}
	if err := c.preflight(req); err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr *Error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.delay(attempt - 1)
			c.logger.Debug("retrying oracle call",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Stringer("kind", lastErr.Kind),
			)
			if c.recorder != nil {
				c.recorder.RecordRetry(c.provider.Name(), lastErr.Kind)
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, NewError(KindUnknown, "retry canceled").WithCause(err).WithProvider(c.provider.Name())
			}
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			if resp.FinishReason == FinishReasonLength {
				c.logger.Warn("oracle output truncated at length limit",
					zap.Int("completion_tokens", resp.Usage.CompletionTokens))
				return nil, NewError(KindTruncated, "oracle output reached the max output length").
					WithProvider(c.provider.Name())
			}
			return &Result{
				Content:      resp.Content,
				FinishReason: resp.FinishReason,
				Usage:        resp.Usage,
				Provider:     c.provider.Name(),
				Model:        resp.Model,
				Attempts:     attempt + 1,
				Latency:      time.Since(start),
			}, nil
		}

		lastErr = err
		if !lastErr.Retryable {
			c.logger.Debug("oracle error is terminal", zap.Error(lastErr))
			return nil, lastErr
		}
	}

	c.logger.Warn("oracle attempts exhausted",
		zap.Int("attempts", c.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// attempt performs one call under its own timeout.
func (c *Client) attempt(ctx context.Context, req *ChatRequest) (*ChatResponse, *Error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Completion(callCtx, req)
	latency := time.Since(start).Seconds()

	if err == nil && resp == nil {
		err = NewError(KindDecode, "provider returned an empty response")
	}
	if err != nil {
		var e *Error
		switch {
		case ctx.Err() != nil:
			// The caller gave up; retrying would only fail again.
			e = NewError(KindUnknown, "invocation canceled").WithCause(ctx.Err()).WithProvider(c.provider.Name())
		case callCtx.Err() == context.DeadlineExceeded:
			e = NewError(KindTimeout, fmt.Sprintf("request timed out (%s)", timeout)).WithCause(err).WithProvider(c.provider.Name())
		default:
			e = Classify(err, c.provider.Name())
		}
		c.record(req.Model, e.Kind.String(), latency)
		return nil, e
	}

	c.record(req.Model, "success", latency)
	if c.recorder != nil {
		c.recorder.RecordTokens(c.provider.Name(), req.Model, resp.Usage)
	}
	return resp, nil
}

func (c *Client) preflight(req *ChatRequest) *Error {
	if c.maxInputTokens <= 0 || c.counter == nil {
		return nil
	}
	n, err := c.counter.CountMessages(req.Messages)
	if err != nil {
		c.logger.Debug("token estimate unavailable", zap.Error(err))
		return nil
	}
	if n > c.maxInputTokens {
		return NewError(KindBadRequest,
			fmt.Sprintf("estimated prompt tokens %d exceed limit %d", n, c.maxInputTokens)).
			WithProvider(c.provider.Name())
	}
	return nil
}

func (c *Client) delay(attempt int) time.Duration {
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.policy.Delay(attempt, c.rnd)
}

func (c *Client) record(model, outcome string, latency float64) {
	if c.recorder != nil {
		c.recorder.RecordInvocation(c.provider.Name(), model, outcome, latency)
	}
}

func modelOf(req *ChatRequest) string {
	if req == nil {
		return ""
	}
	return req.Model
}

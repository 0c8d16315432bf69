package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/extractor"
)

const (
	DefaultAttempts       = 3
	DefaultRetryDelay     = 60 * time.Second
	DefaultParseRetryWait = time.Second
)

// Policy is a fixed-delay retry budget with a predicate deciding which
// failures spend it. Anything else fails immediately.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// TransportPolicy covers a single remote call: network failures and every
// non-200 status.
func TransportPolicy(delay time.Duration) Policy {
	return Policy{MaxAttempts: DefaultAttempts, Delay: delay, Retryable: IsTransportRetryable}
}

// ContentPolicy covers replies that arrived but were empty or undecodable.
func ContentPolicy(delay time.Duration) Policy {
	return Policy{MaxAttempts: DefaultAttempts, Delay: delay, Retryable: IsContentRetryable}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	return p.Retryable != nil && p.Retryable(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.attempts()-1))
	return backoff.WithContext(b, ctx)
}

// Retry runs op under p. A spent budget yields *ExhaustedError wrapping the
// last failure. notify sees each failure that will be retried, before the wait.
func Retry[T any](ctx context.Context, p Policy, timer backoff.Timer, op func(context.Context) (T, error), notify func(attempt int, err error, wait time.Duration)) (T, error) {
	attempt := 0
	res, err := backoff.RetryNotifyWithTimerAndData(func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && (ctx.Err() != nil || !p.retryable(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		if notify != nil {
			notify(attempt, err, wait)
		}
	}, timer)
	if err != nil && ctx.Err() == nil && attempt >= p.attempts() && p.retryable(err) {
		return res, &ExhaustedError{Attempts: attempt, Last: err}
	}
	return res, err
}

// Reply is a decoded model answer.
type Reply struct {
	Data map[string]any
	// TokensUsed sums every completed exchange, discarded samples included.
	TokensUsed int
	Attempts   int
}

type RetrierConfig struct {
	Transport Policy
	Content   Policy
	// NewTimer lets tests skip the waits. nil uses real time.
	NewTimer func() backoff.Timer
	Observer Observer
}

// Retrier layers the content loop over the transport loop: a reply that cannot
// be decoded causes the whole remote call, with its own budget, to be re-issued.
type Retrier struct {
	client    ModelClient
	transport Policy
	content   Policy
	newTimer  func() backoff.Timer
	obs       Observer
	log       *logrus.Entry
}

func NewRetrier(client ModelClient, cfg RetrierConfig, log *logrus.Entry) *Retrier {
	if cfg.Transport.Retryable == nil {
		cfg.Transport = TransportPolicy(DefaultRetryDelay)
	}
	if cfg.Content.Retryable == nil {
		cfg.Content = ContentPolicy(DefaultParseRetryWait)
	}
	if cfg.NewTimer == nil {
		cfg.NewTimer = func() backoff.Timer { return nil }
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	return &Retrier{
		client:    client,
		transport: cfg.Transport,
		content:   cfg.Content,
		newTimer:  cfg.NewTimer,
		obs:       cfg.Observer,
		log:       log.WithField("component", "retry-controller"),
	}
}

// Complete sends the prompt and returns the decoded JSON object.
func (r *Retrier) Complete(ctx context.Context, callID, prompt string) (Reply, error) {
	log := r.log.WithField("call_id", callID)
	reply := Reply{}

	data, err := Retry(ctx, r.content, r.newTimer(), func(ctx context.Context) (map[string]any, error) {
		comp, err := r.call(ctx, log, prompt, &reply)
		if err != nil {
			return nil, err
		}
		reply.TokensUsed += comp.TokensUsed
		return extractor.ParseResponse(comp.Content)
	}, func(attempt int, err error, wait time.Duration) {
		kind, _ := KindOf(err)
		r.obs.ObserveRetry(string(kind))
		log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": r.content.attempts(),
			"kind":         kind,
			"wait":         wait.String(),
			"error":        err.Error(),
		}).Warn("model reply unusable, requesting a new one")
	})
	if err != nil {
		return reply, err
	}
	reply.Data = data
	return reply, nil
}

func (r *Retrier) call(ctx context.Context, log *logrus.Entry, prompt string, reply *Reply) (Completion, error) {
	return Retry(ctx, r.transport, r.newTimer(), func(ctx context.Context) (Completion, error) {
		reply.Attempts++
		return r.client.Evaluate(ctx, prompt)
	}, func(attempt int, err error, wait time.Duration) {
		kind, _ := KindOf(err)
		r.obs.ObserveRetry(string(kind))
		entry := log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": r.transport.attempts(),
			"kind":         kind,
			"wait":         wait.String(),
		})
		var ce *CallError
		if errors.As(err, &ce) && ce.StatusCode != 0 {
			entry = entry.WithField("status", ce.StatusCode)
		}
		entry.WithField("error", err.Error()).Warn("llm call failed, retrying")
	})
}

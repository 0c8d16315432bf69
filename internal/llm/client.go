package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Completion is a successful model reply.
type Completion struct {
	Content    string
	TokensUsed int
}

// ModelClient sends one prompt and returns one reply. Errors are *CallError.
type ModelClient interface {
	Evaluate(ctx context.Context, prompt string) (Completion, error)
}

// Observer receives per-request and per-retry events.
type Observer interface {
	ObserveRequest(outcome string, d time.Duration)
	ObserveRetry(kind string)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, time.Duration) {}
func (noopObserver) ObserveRetry(string)                  {}

type ClientConfig struct {
	BaseURL string
	Token   string
	Model   string
	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration
	// RequestsPerSecond of 0 disables client-side limiting.
	RequestsPerSecond float64
}

// OpenAIClient talks to any OpenAI-compatible chat completions gateway.
// Safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	obs     Observer
	log     *logrus.Entry
}

func NewOpenAIClient(cfg ClientConfig, obs Observer, log *logrus.Entry) (*OpenAIClient, error) {
	if cfg.Token == "" {
		return nil, errors.New("llm token is empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is empty")
	}
	oc := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid llm base url %q", cfg.BaseURL)
		}
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	oc.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: recordingTransport{base: http.DefaultTransport},
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		obs:    obs,
		log:    log.WithField("component", "llm-client"),
	}
	if c.obs == nil {
		c.obs = noopObserver{}
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

func (c *OpenAIClient) Evaluate(ctx context.Context, prompt string) (Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, &CallError{Kind: KindTransport, Err: err}
		}
	}

	out := &httpOutcome{}
	ctx = context.WithValue(ctx, outcomeKey{}, out)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	elapsed := time.Since(start)
	if err != nil {
		ce := classify(err, out)
		c.obs.ObserveRequest(string(ce.Kind), elapsed)
		c.log.WithFields(logrus.Fields{
			"kind":        ce.Kind,
			"status":      ce.StatusCode,
			"duration_ms": elapsed.Milliseconds(),
		}).Debug("llm request failed")
		return Completion{}, ce
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		c.obs.ObserveRequest(string(KindValidation), elapsed)
		return Completion{}, &CallError{Kind: KindValidation, StatusCode: http.StatusOK, Err: ErrEmptyContent}
	}

	c.obs.ObserveRequest("ok", elapsed)
	c.log.WithFields(logrus.Fields{
		"tokens":      resp.Usage.TotalTokens,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("llm request completed")
	return Completion{Content: content, TokensUsed: resp.Usage.TotalTokens}, nil
}

// classify maps go-openai errors onto the error taxonomy. Non-JSON error
// bodies come back from go-openai as plain errors, so the recorded status
// is the fallback.
func classify(err error, out *httpOutcome) *CallError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{
			Kind:       kindForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CallError{
			Kind:       kindForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Body:       string(reqErr.Body),
			Err:        err,
		}
	}
	if out != nil && out.status != 0 {
		return &CallError{
			Kind:       kindForStatus(out.status),
			StatusCode: out.status,
			Body:       string(out.body),
			Err:        err,
		}
	}
	return &CallError{Kind: KindTransport, Err: err}
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

type outcomeKey struct{}

type httpOutcome struct {
	status int
	body   []byte
}

// recordingTransport captures status and body of failed exchanges for the
// httpOutcome carried in the request context.
type recordingTransport struct {
	base http.RoundTripper
}

func (t recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	out, ok := req.Context().Value(outcomeKey{}).(*httpOutcome)
	if !ok {
		return resp, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	out.status = resp.StatusCode
	out.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

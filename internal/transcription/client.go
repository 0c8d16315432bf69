package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/types"
)

const (
	pathAuth          = "v2/bff-core-app/auth/session-start"
	pathAutocomplete  = "v2/bff-core-app/organizational-structures/autocomplete-search"
	pathCallSessions  = "v2/bff-communication-search/callsessions"
	pathTranscription = "v2/bff-core-app/transcription/segment"

	pageSize        = 1000
	requestAttempts = 3
	maxErrorBody    = 2048
)

var (
	ErrNotAuthenticated = errors.New("telephony: not authenticated")
	ErrGroupNotFound    = errors.New("telephony: group not found")
)

// StatusError is a non-200 reply from the vendor.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telephony: status %d: %s", e.StatusCode, e.Body)
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client talks to the call-recording vendor. Authenticate must succeed before
// any other call.
type Client struct {
	base       *url.URL
	http       *http.Client
	retryDelay time.Duration
	token      string
	log        *logrus.Entry
}

func NewClient(cfg ClientConfig, log *logrus.Entry) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("telephony: invalid base url %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Client{
		base:       base,
		http:       hc,
		retryDelay: delay,
		log:        log.WithField("component", "telephony"),
	}, nil
}

type Session struct {
	UserID       string `json:"userId"`
	UserLogin    string `json:"userLogin"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"accessTokenExpiredDate"`
}

func (c *Client) Authenticate(ctx context.Context, login, password string) (Session, error) {
	body := map[string]string{
		"login":                login,
		"password":             password,
		"authentificationType": "tqm",
		"authSystem":           "tqm",
	}
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, pathAuth, nil, body, &s, false); err != nil {
		return Session{}, fmt.Errorf("authenticate: %w", err)
	}
	if s.AccessToken == "" {
		return Session{}, errors.New("authenticate: empty access token")
	}
	c.token = s.AccessToken
	return s, nil
}

// Group is an organizational unit used to filter call sessions.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// FindGroup returns the first autocomplete hit for term.
func (c *Client) FindGroup(ctx context.Context, term string) (Group, error) {
	var items []Group
	q := url.Values{"term": {term}}
	if err := c.doJSON(ctx, http.MethodGet, pathAutocomplete, q, nil, &items, true); err != nil {
		return Group{}, fmt.Errorf("find group: %w", err)
	}
	if len(items) == 0 {
		return Group{}, fmt.Errorf("%w: %q", ErrGroupNotFound, term)
	}
	g := items[0]
	if g.Type == "" {
		g.Type = "workGroup"
	}
	return g, nil
}

// CallFilter narrows a call-session search. A zero filter matches every call
// of the day.
type CallFilter struct {
	Groups []Group
}

type agentFilter struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type callsRequest struct {
	Filters map[string]any `json:"filters"`
	Paging  struct {
		Page         int `json:"page"`
		ItemsPerPage int `json:"itemsPerPage"`
		ItemsCount   int `json:"itemsCount"`
	} `json:"paging"`
}

type callsPage struct {
	Items    []json.RawMessage `json:"items"`
	NextPage *int              `json:"nextPage"`
}

type callItem struct {
	SegmentID    json.Number `json:"segmentId"`
	ID           json.Number `json:"id"`
	StartDate    string      `json:"startDate"`
	EndDate      string      `json:"endDate"`
	Duration     json.Number `json:"duration"`
	OperatorID   json.Number `json:"operatorUserId"`
	OperatorLog  string      `json:"operatorUserLogin"`
	OperatorName string      `json:"operatorUserFullName"`
	Direction    string      `json:"callDirection"`
	Phone        string      `json:"clientPhoneNumber"`
}

// CallsForDay lists every call session of the given calendar day, following
// pagination until the vendor stops returning nextPage.
func (c *Client) CallsForDay(ctx context.Context, day time.Time, filter CallFilter) ([]types.CallRecord, error) {
	date := day.Format("2006-01-02")
	filters := map[string]any{
		"date": map[string]string{
			"min": date + " 00:00:00",
			"max": date + " 23:59:59",
		},
	}
	if len(filter.Groups) > 0 {
		agents := make([]agentFilter, 0, len(filter.Groups))
		for _, g := range filter.Groups {
			agents = append(agents, agentFilter{ID: g.ID, Type: g.Type, Title: g.Name})
		}
		filters["agent"] = agents
		filters["isNGramSearch"] = false
	}

	var out []types.CallRecord
	page := 1
	for {
		req := callsRequest{Filters: filters}
		req.Paging.Page = page
		req.Paging.ItemsPerPage = pageSize

		var resp callsPage
		if err := c.doJSON(ctx, http.MethodPost, pathCallSessions, nil, req, &resp, true); err != nil {
			return nil, fmt.Errorf("calls for %s page %d: %w", date, page, err)
		}
		for _, raw := range resp.Items {
			rec, err := decodeCall(raw)
			if err != nil {
				c.log.WithError(err).Warn("skipping undecodable call session")
				continue
			}
			out = append(out, rec)
		}
		if resp.NextPage == nil || *resp.NextPage <= page {
			return out, nil
		}
		page = *resp.NextPage
	}
}

func decodeCall(raw json.RawMessage) (types.CallRecord, error) {
	var it callItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return types.CallRecord{}, err
	}
	id := it.SegmentID.String()
	if id == "" || id == "0" {
		id = it.ID.String()
	}
	if id == "" || id == "0" {
		return types.CallRecord{}, errors.New("call session without id")
	}
	dur, _ := it.Duration.Float64()
	return types.CallRecord{
		SegmentID:     id,
		StartDate:     parseTime(it.StartDate),
		EndDate:       parseTime(it.EndDate),
		Duration:      dur,
		OperatorID:    it.OperatorID.String(),
		OperatorLogin: it.OperatorLog,
		OperatorName:  strings.TrimSpace(it.OperatorName),
		PhoneNumber:   it.Phone,
		Direction:     it.Direction,
	}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type transcriptReply struct {
	FirstOperatorID json.Number `json:"firstOperatorId"`
	Parts           []struct {
		Phrases []struct {
			ContactID json.Number `json:"contactId"`
			Text      string      `json:"phraseText"`
			StartMs   json.Number `json:"startTimeInMs"`
		} `json:"phrases"`
	} `json:"transcriptionParts"`
}

// Transcription returns the phrases of one segment in vendor order. A phrase
// is the operator's when its contact is the segment's first operator.
func (c *Client) Transcription(ctx context.Context, segmentID string) ([]types.Phrase, error) {
	id, err := strconv.ParseInt(segmentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("transcription: segment id %q: %w", segmentID, err)
	}
	var reply transcriptReply
	body := map[string]int64{"segmentId": id}
	if err := c.doJSON(ctx, http.MethodPost, pathTranscription, nil, body, &reply, true); err != nil {
		return nil, fmt.Errorf("transcription %s: %w", segmentID, err)
	}
	operator := toInt(reply.FirstOperatorID)
	var out []types.Phrase
	for _, part := range reply.Parts {
		for _, p := range part.Phrases {
			ch := types.ChannelClient
			if p.ContactID != "" && toInt(p.ContactID) == operator {
				ch = types.ChannelOperator
			}
			out = append(out, types.Phrase{Text: p.Text, StartMs: toInt(p.StartMs), Channel: ch})
		}
	}
	return out, nil
}

func toInt(n json.Number) int64 {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return int64(f)
}

// doJSON sends one JSON request with a constant-delay retry. Transport
// failures, 429, 5xx and undecodable bodies are retried; other statuses are
// permanent.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, target any, auth bool) error {
	if auth && c.token == "" {
		return ErrNotAuthenticated
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	log := c.log.WithFields(logrus.Fields{"method": method, "path": path})

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if auth {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			serr := &StatusError{StatusCode: resp.StatusCode, Body: snippet(raw)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return errors.New("empty body")
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode response: %w body=%s", err, snippet(raw))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), requestAttempts-1), ctx)
	return backoff.RetryNotify(op, bo, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait.String()).Warn("telephony request failed, retrying")
	})
}

func snippet(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}

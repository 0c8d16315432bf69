package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/logger"
	"call-analysis-go/internal/types"
)

func newVendor(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	mux.HandleFunc("POST /v2/bff-core-app/auth/session-start", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tqm", body["authSystem"])
		assert.Equal(t, "tqm", body["authentificationType"])
		_, _ = w.Write([]byte(`{"userId":"u1","userLogin":"` + body["login"] + `","accessToken":"tok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, RetryDelay: time.Millisecond}, logger.Discard().Entry)
	require.NoError(t, err)
	return c
}

func authed(t *testing.T, c *Client) {
	t.Helper()
	s, err := c.Authenticate(context.Background(), "bot", "secret")
	require.NoError(t, err)
	require.Equal(t, "bot", s.UserLogin)
}

func requireBearer(t *testing.T, r *http.Request) {
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
}

func TestClient_RequiresAuthentication(t *testing.T) {
	c := newVendor(t, http.NewServeMux())

	_, err := c.FindGroup(context.Background(), "sales")

	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestClient_FindGroup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/bff-core-app/organizational-structures/autocomplete-search", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, "Продажи", r.URL.Query().Get("term"))
		_, _ = w.Write([]byte(`[{"id": 42, "name": "Продажи B2B"}, {"id": 7, "name": "Продажи B2C", "type": "user"}]`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	g, err := c.FindGroup(context.Background(), "Продажи")

	require.NoError(t, err)
	assert.Equal(t, Group{ID: 42, Name: "Продажи B2B", Type: "workGroup"}, g)
}

func TestClient_FindGroup_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/bff-core-app/organizational-structures/autocomplete-search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	_, err := c.FindGroup(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestClient_CallsForDay_FollowsPages(t *testing.T) {
	// Given two pages of call sessions
	var pages []int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bff-communication-search/callsessions", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		var req struct {
			Filters struct {
				Date struct {
					Min string `json:"min"`
					Max string `json:"max"`
				} `json:"date"`
				Agent []agentFilter `json:"agent"`
			} `json:"filters"`
			Paging struct {
				Page         int `json:"page"`
				ItemsPerPage int `json:"itemsPerPage"`
			} `json:"paging"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2025-08-07 00:00:00", req.Filters.Date.Min)
		assert.Equal(t, "2025-08-07 23:59:59", req.Filters.Date.Max)
		assert.Equal(t, []agentFilter{{ID: 42, Type: "workGroup", Title: "Продажи"}}, req.Filters.Agent)
		assert.Equal(t, 1000, req.Paging.ItemsPerPage)
		pages = append(pages, req.Paging.Page)
		if req.Paging.Page == 1 {
			_, _ = w.Write([]byte(`{"items": [
				{"segmentId": 101, "startDate": "2025-08-07T10:00:00", "duration": 95, "operatorUserId": 5,
				 "operatorUserFullName": " Иванов Иван ", "clientPhoneNumber": "+79990000000", "callDirection": "out"},
				{"segmentId": "oops"}
			], "nextPage": 2}`))
			return
		}
		_, _ = w.Write([]byte(`{"items": [{"id": 102, "startDate": "2025-08-07 11:00:00", "duration": 12.5}], "nextPage": null}`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	// When listed
	calls, err := c.CallsForDay(context.Background(), time.Date(2025, 8, 7, 15, 0, 0, 0, time.UTC),
		CallFilter{Groups: []Group{{ID: 42, Name: "Продажи", Type: "workGroup"}}})

	// Then both pages are merged and the broken item skipped
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)
	require.Len(t, calls, 2)
	assert.Equal(t, "101", calls[0].SegmentID)
	assert.Equal(t, 95.0, calls[0].Duration)
	assert.Equal(t, "5", calls[0].OperatorID)
	assert.Equal(t, "Иванов Иван", calls[0].OperatorName)
	assert.Equal(t, time.Date(2025, 8, 7, 10, 0, 0, 0, time.UTC), calls[0].StartDate)
	assert.Equal(t, "102", calls[1].SegmentID)
	assert.Equal(t, 12.5, calls[1].Duration)
	assert.Equal(t, 11, calls[1].StartDate.Hour())
}

func TestClient_Transcription(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bff-core-app/transcription/segment", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(101), body["segmentId"])
		_, _ = w.Write([]byte(`{"firstOperatorId": 5, "transcriptionParts": [
			{"phrases": [{"contactId": 5, "phraseText": "Добрый день", "startTimeInMs": 0},
			             {"contactId": 9, "phraseText": "Здравствуйте", "startTimeInMs": 1500}]},
			{"phrases": [{"phraseText": "...", "startTimeInMs": 3000.0}]}
		]}`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	phrases, err := c.Transcription(context.Background(), "101")

	require.NoError(t, err)
	assert.Equal(t, []types.Phrase{
		{Text: "Добрый день", StartMs: 0, Channel: types.ChannelOperator},
		{Text: "Здравствуйте", StartMs: 1500, Channel: types.ChannelClient},
		{Text: "...", StartMs: 3000, Channel: types.ChannelClient},
	}, phrases)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bff-core-app/transcription/segment", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"firstOperatorId": 1, "transcriptionParts": []}`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	_, err := c.Transcription(context.Background(), "1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_ClientErrorsArePermanent(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bff-core-app/transcription/segment", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "no such segment", http.StatusNotFound)
	})
	c := newVendor(t, mux)
	authed(t, c)

	_, err := c.Transcription(context.Background(), "1")

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.Equal(t, "no such segment", serr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_ExhaustsRetries(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bff-core-app/transcription/segment", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`not json`))
	})
	c := newVendor(t, mux)
	authed(t, c)

	_, err := c.Transcription(context.Background(), "1")

	assert.ErrorContains(t, err, "decode response")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "not a url"}, logger.Discard().Entry)

	assert.Error(t, err)
}

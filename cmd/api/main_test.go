package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/logger"
	"call-analysis-go/internal/metrics"
	"call-analysis-go/internal/pipeline"
	"call-analysis-go/internal/types"
)

type fakeRunner struct {
	got []types.CallRecord
	err error
}

func (f *fakeRunner) Run(_ context.Context, calls []types.CallRecord) ([]types.AnalysisReport, pipeline.Stats, error) {
	f.got = calls
	if f.err != nil {
		return nil, pipeline.Stats{}, f.err
	}
	score, maxScore := 1, 2
	report := types.AnalysisReport{
		Call: calls[0],
		Result: &types.Result{
			IsSalesCall:           true,
			TotalScore:            1,
			MaxPossibleScore:      2,
			PerformancePercentage: 50,
			Evaluations: []types.Evaluation{
				{Category: "Приветствие", Criterion: "Поздоровался", Score: &score, MaxScore: &maxScore},
			},
		},
	}
	stats := pipeline.Stats{Submitted: len(calls), Succeeded: 1, Filtered: len(calls) - 1}
	return []types.AnalysisReport{report}, stats, nil
}

func TestAnalyze(t *testing.T) {
	// Given a server with a canned orchestrator
	runner := &fakeRunner{}
	mux := newMux(logger.Discard(), runner, metrics.New())
	body := `{"calls": [
		{"segment_id": "1", "phrases": [{"text": "Добрый день", "channel": "operator"}]},
		{"segment_id": "2", "phrases": [{"text": "Алло", "channel": "client"}]}
	]}`

	// When a batch is posted
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))

	// Then reports, stats and summary come back together
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, runner.got, 2)
	assert.Equal(t, types.ChannelOperator, runner.got[0].Phrases[0].Channel)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "1", resp.Reports[0].Call.SegmentID)
	assert.Equal(t, 1, resp.Stats.Filtered)
	assert.Equal(t, 1, resp.Summary.Calls)
	assert.Equal(t, 50.0, resp.Summary.AveragePerformance)
	assert.NotEmpty(t, resp.Actions)
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	mux := newMux(logger.Discard(), &fakeRunner{}, metrics.New())

	for _, body := range []string{`not json`, `{"calls": []}`, `{}`} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAnalyze_Interrupted(t *testing.T) {
	mux := newMux(logger.Discard(), &fakeRunner{err: context.Canceled}, metrics.New())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"calls": [{"segment_id": "1"}]}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.ObserveOutcome("succeeded")
	mux := newMux(logger.Discard(), &fakeRunner{}, m)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `callq_calls_total{outcome="succeeded"} 1`)
}

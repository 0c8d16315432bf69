package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"call-analysis-go/internal/processor"
	"call-analysis-go/internal/types"
)

const DefaultMaxConcurrent = 3

// CallAnalyzer is satisfied by *processor.Analyzer.
type CallAnalyzer interface {
	Analyze(ctx context.Context, call types.CallRecord) (processor.Outcome, error)
}

// Recorder receives per-call outcomes. *metrics.Recorder implements it.
type Recorder interface {
	ObserveOutcome(outcome string)
	AddTokens(n int)
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFiltered  = "filtered"
	OutcomeFailed    = "failed"
)

type Stats struct {
	// Skipped calls had no transcript and were never submitted.
	Skipped    int `json:"skipped"`
	Submitted  int `json:"submitted"`
	Succeeded  int `json:"succeeded"`
	Filtered   int `json:"filtered"`
	Failed     int `json:"failed"`
	TokensUsed int `json:"tokens_used"`
}

type Config struct {
	MaxConcurrent int
	Tracer        trace.Tracer
	Recorder      Recorder
}

// Orchestrator fans calls out to the analyzer with at most MaxConcurrent in
// flight. One call failing never affects the others.
type Orchestrator struct {
	analyzer CallAnalyzer
	limit    int64
	tracer   trace.Tracer
	rec      Recorder
	log      *logrus.Entry
}

func New(analyzer CallAnalyzer, cfg Config, log *logrus.Entry) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("call-analysis-go/pipeline")
	}
	return &Orchestrator{
		analyzer: analyzer,
		limit:    int64(cfg.MaxConcurrent),
		tracer:   cfg.Tracer,
		rec:      cfg.Recorder,
		log:      log.WithField("component", "orchestrator"),
	}
}

// Run analyzes every call that has a transcript and waits for all of them.
// Reports keep input order. The error is non-nil only if ctx ended early;
// reports and stats are still valid for whatever completed.
func (o *Orchestrator) Run(ctx context.Context, calls []types.CallRecord) ([]types.AnalysisReport, Stats, error) {
	var stats Stats
	eligible := make([]types.CallRecord, 0, len(calls))
	for _, c := range calls {
		if c.HasTranscript() {
			eligible = append(eligible, c)
		}
	}
	stats.Skipped = len(calls) - len(eligible)
	stats.Submitted = len(eligible)
	o.log.WithFields(logrus.Fields{
		"eligible":       len(eligible),
		"no_transcript":  stats.Skipped,
		"max_concurrent": o.limit,
	}).Info("starting analysis")

	start := time.Now()
	sem := semaphore.NewWeighted(o.limit)
	slots := make([]*types.AnalysisReport, len(eligible))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for i, call := range eligible {
		g.Go(func() error {
			out, err := o.runOne(ctx, sem, call)

			mu.Lock()
			defer mu.Unlock()
			stats.TokensUsed += out.TokensUsed
			switch {
			case err != nil:
				stats.Failed++
				o.observe(OutcomeFailed, out.TokensUsed)
				o.log.WithField("call_id", call.SegmentID).WithError(err).Error("call analysis failed")
			case out.Filtered:
				stats.Filtered++
				o.observe(OutcomeFiltered, out.TokensUsed)
			default:
				stats.Succeeded++
				slots[i] = out.Report
				o.observe(OutcomeSucceeded, out.TokensUsed)
			}
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]types.AnalysisReport, 0, stats.Succeeded)
	for _, r := range slots {
		if r != nil {
			reports = append(reports, *r)
		}
	}

	o.log.WithFields(logrus.Fields{
		"eligible":    stats.Submitted,
		"succeeded":   stats.Succeeded,
		"filtered":    stats.Filtered,
		"failed":      stats.Failed,
		"tokens":      stats.TokensUsed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("analysis finished")
	return reports, stats, ctx.Err()
}

func (o *Orchestrator) runOne(ctx context.Context, sem *semaphore.Weighted, call types.CallRecord) (out processor.Outcome, err error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return processor.Outcome{}, fmt.Errorf("waiting for a slot: %w", err)
	}
	defer sem.Release(1)

	ctx, span := o.tracer.Start(ctx, "analyze_call", trace.WithAttributes(
		attribute.String("call.segment_id", call.SegmentID),
		attribute.Int("call.phrases", len(call.Phrases)),
	))
	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("call_id", call.SegmentID).WithField("stack", string(debug.Stack())).Error("panic during analysis")
			out, err = processor.Outcome{}, fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.Bool("call.filtered", out.Filtered),
			attribute.Int("llm.tokens", out.TokensUsed),
		)
		span.End()
	}()

	return o.analyzer.Analyze(ctx, call)
}

func (o *Orchestrator) observe(outcome string, tokens int) {
	if o.rec == nil {
		return
	}
	o.rec.ObserveOutcome(outcome)
	o.rec.AddTokens(tokens)
}

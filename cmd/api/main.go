package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/actionable"
	"call-analysis-go/internal/aggregator"
	"call-analysis-go/internal/app"
	"call-analysis-go/internal/config"
	"call-analysis-go/internal/logger"
	"call-analysis-go/internal/metrics"
	"call-analysis-go/internal/pipeline"
	"call-analysis-go/internal/types"
)

const maxBody = 16 << 20

type analyzeRequest struct {
	Calls []types.CallRecord `json:"calls"`
}

type analyzeResponse struct {
	Reports []types.AnalysisReport  `json:"reports"`
	Stats   pipeline.Stats          `json:"stats"`
	Summary aggregator.Summary      `json:"summary"`
	Actions []actionable.ActionCard `json:"actions"`
}

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	l, err := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Dir:         cfg.LogDir,
		ToFile:      cfg.LogToFile,
	})
	if err != nil {
		logrus.WithError(err).Fatal("logger")
	}
	defer l.Close()
	log := l.WithField("service", "call-analysis-api")
	log.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := app.TaxonomyProvider(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("taxonomy provider")
	}
	tax, err := provider.Load(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load taxonomy")
	}
	log.WithField("criteria", len(tax.Criteria)).Info("taxonomy loaded")

	rec := metrics.New().WithRuntime()
	analyzer, err := app.NewAnalyzer(cfg, tax, rec, log)
	if err != nil {
		log.WithError(err).Fatal("analyzer")
	}
	orch := pipeline.New(analyzer, pipeline.Config{MaxConcurrent: cfg.MaxConcurrent, Recorder: rec}, log)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     newMux(l, orch, rec),
		ReadTimeout: 15 * time.Second,
		// Analysis waits on the model, retries included.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
}

// runner is satisfied by *pipeline.Orchestrator.
type runner interface {
	Run(ctx context.Context, calls []types.CallRecord) ([]types.AnalysisReport, pipeline.Stats, error)
}

func newMux(l *logger.Logger, orch runner, rec *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /metrics", rec.Handler())

	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		reqLog := l.WithRequest(r).WithField("handler", "analyze")

		var req analyzeRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		if err := dec.Decode(&req); err != nil {
			reqLog.WithError(err).Warn("bad request body")
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if len(req.Calls) == 0 {
			http.Error(w, "calls must not be empty", http.StatusBadRequest)
			return
		}
		reqLog = reqLog.WithField("calls", len(req.Calls))
		reqLog.Info("analysis request received")

		start := time.Now()
		reports, stats, err := orch.Run(r.Context(), req.Calls)
		if err != nil {
			reqLog.WithError(err).Warn("analysis interrupted")
			http.Error(w, "analysis interrupted", http.StatusServiceUnavailable)
			return
		}
		if reports == nil {
			reports = []types.AnalysisReport{}
		}
		summary := aggregator.Summarize(reports)
		reqLog.WithFields(logrus.Fields{
			"succeeded":   stats.Succeeded,
			"failed":      stats.Failed,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("analysis finished")

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analyzeResponse{
			Reports: reports,
			Stats:   stats,
			Summary: summary,
			Actions: actionable.Generate(summary),
		}); err != nil {
			reqLog.WithError(err).Error("failed to write response")
		}
	})
	return mux
}

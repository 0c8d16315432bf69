package main

import (
	"context"
	"flag"
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
	"call-analysis-go/internal/normalizer"
	"call-analysis-go/internal/pipeline"
	"call-analysis-go/internal/store"
	"call-analysis-go/internal/transcription"
)

func main() {
	date := flag.String("date", "", "day to analyze (YYYY-MM-DD); defaults to today minus CHECK_DAY_AGO")
	dryRun := flag.Bool("dry-run", false, "analyze without writing to the database")
	flag.Parse()

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
	log := l.WithRun("")

	day := cfg.Day(time.Now())
	if *date != "" {
		if day, err = time.ParseInLocation("2006-01-02", *date, time.Local); err != nil {
			log.WithError(err).Fatal("invalid -date")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, day, *dryRun, log); err != nil {
		log.WithError(err).Error("run failed")
		stop()
		l.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, day time.Time, dryRun bool, log *logrus.Entry) error {
	start := time.Now()
	log.WithFields(logrus.Fields{"day": day.Format("2006-01-02"), "dry_run": dryRun}).Info("daily run started")
	rec := metrics.New()

	provider, err := app.TaxonomyProvider(cfg, log)
	if err != nil {
		return err
	}
	tax, err := provider.Load(ctx)
	if err != nil {
		return err
	}

	var db *store.Store
	if cfg.DatabaseURL != "" {
		if db, err = store.New(ctx, store.Config{DSN: cfg.DatabaseURL, MaxConns: int32(cfg.DBMaxConns)}, log); err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	} else if !dryRun {
		log.Warn("DATABASE_URL not set, running without persistence")
		dryRun = true
	}

	client, err := transcription.NewClient(transcription.ClientConfig{BaseURL: cfg.TBankBaseURL}, log)
	if err != nil {
		return err
	}
	ingestor := transcription.NewIngestor(client, transcription.IngestorConfig{
		Login:       cfg.TBankLogin,
		Password:    cfg.TBankPassword,
		GroupName:   cfg.AgentGroupName,
		MinDuration: cfg.MinCallDuration,
	}, log)
	calls, err := ingestor.FetchDay(ctx, day)
	if err != nil {
		return err
	}

	if db != nil {
		ops, err := db.Operators(ctx)
		if err != nil {
			return err
		}
		cache := normalizer.NewOperatorCache(ops)
		log.WithField("operators", cache.Len()).Info("operator directory loaded")
		calls, _ = normalizer.FilterKnownOperators(calls, cache, log)
	}

	analyzer, err := app.NewAnalyzer(cfg, tax, rec, log)
	if err != nil {
		return err
	}
	orch := pipeline.New(analyzer, pipeline.Config{MaxConcurrent: cfg.MaxConcurrent, Recorder: rec}, log)
	reports, stats, runErr := orch.Run(ctx, calls)

	var saveErr error
	if !dryRun && len(reports) > 0 {
		var saved int
		// Persist whatever finished, even after cancellation.
		saved, saveErr = db.SaveReports(context.WithoutCancel(ctx), reports, cfg.DepartmentID)
		rec.AddSaved(saved)
	}

	summary := aggregator.Summarize(reports)
	log.WithFields(logrus.Fields{
		"calls":               summary.Calls,
		"average_performance": summary.AveragePerformance,
		"succeeded":           stats.Succeeded,
		"filtered":            stats.Filtered,
		"failed":              stats.Failed,
		"skipped":             stats.Skipped,
		"tokens":              stats.TokensUsed,
		"duration_ms":         time.Since(start).Milliseconds(),
	}).Info("daily run finished")
	for _, c := range summary.Categories {
		log.WithFields(logrus.Fields{
			"category":   c.Category,
			"score":      c.Score,
			"max_score":  c.MaxScore,
			"percentage": c.Percentage,
		}).Info("category summary")
	}
	for _, card := range actionable.Generate(summary) {
		log.WithFields(logrus.Fields{"action": card.Action, "impact": card.Impact}).Info(card.Insight)
	}

	if cfg.PushgatewayURL != "" {
		if err := rec.Push(context.WithoutCancel(ctx), cfg.PushgatewayURL, "callq"); err != nil {
			log.WithError(err).Warn("metrics push failed")
		}
	}

	if runErr != nil {
		return runErr
	}
	return saveErr
}

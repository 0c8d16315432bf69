// Package transcription pulls a day's recorded calls and their transcripts
// from the telephony vendor.
package transcription

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/types"
)

const progressEvery = 50

// Source is the subset of the vendor API the ingestor needs. *Client
// implements it.
type Source interface {
	Authenticate(ctx context.Context, login, password string) (Session, error)
	FindGroup(ctx context.Context, term string) (Group, error)
	CallsForDay(ctx context.Context, day time.Time, filter CallFilter) ([]types.CallRecord, error)
	Transcription(ctx context.Context, segmentID string) ([]types.Phrase, error)
}

type IngestorConfig struct {
	Login    string
	Password string
	// GroupName limits calls to one work group. Empty means every call.
	GroupName string
	// MinDuration drops calls shorter than this many seconds.
	MinDuration float64
}

type Ingestor struct {
	src Source
	cfg IngestorConfig
	log *logrus.Entry
}

func NewIngestor(src Source, cfg IngestorConfig, log *logrus.Entry) *Ingestor {
	return &Ingestor{src: src, cfg: cfg, log: log.WithField("component", "ingestor")}
}

// FetchDay returns the day's calls that are long enough, each with its
// transcript attached. A failed transcript fetch leaves the record without
// phrases; the orchestrator drops it later.
func (in *Ingestor) FetchDay(ctx context.Context, day time.Time) ([]types.CallRecord, error) {
	start := time.Now()
	sess, err := in.src.Authenticate(ctx, in.cfg.Login, in.cfg.Password)
	if err != nil {
		return nil, err
	}
	in.log.WithField("user", sess.UserLogin).Info("authenticated")

	var filter CallFilter
	if in.cfg.GroupName != "" {
		g, err := in.src.FindGroup(ctx, in.cfg.GroupName)
		if err != nil {
			return nil, err
		}
		in.log.WithFields(logrus.Fields{"group_id": g.ID, "group": g.Name}).Info("group resolved")
		filter.Groups = []Group{g}
	}

	calls, err := in.src.CallsForDay(ctx, day, filter)
	if err != nil {
		return nil, err
	}
	in.log.WithFields(logrus.Fields{
		"day":   day.Format("2006-01-02"),
		"calls": len(calls),
	}).Info("call sessions listed")

	out := make([]types.CallRecord, 0, len(calls))
	var short, missing int
	fetchStart := time.Now()
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetching transcripts: %w", err)
		}
		if call.Duration < in.cfg.MinDuration {
			short++
			continue
		}
		phrases, err := in.src.Transcription(ctx, call.SegmentID)
		if err != nil {
			missing++
			in.log.WithField("call_id", call.SegmentID).WithError(err).Warn("transcript unavailable")
		}
		call.Phrases = phrases
		out = append(out, call)

		if (i+1)%progressEvery == 0 {
			in.log.WithFields(logrus.Fields{
				"done":       i + 1,
				"total":      len(calls),
				"elapsed_ms": time.Since(fetchStart).Milliseconds(),
			}).Info("transcripts progress")
		}
	}

	in.log.WithFields(logrus.Fields{
		"records":          len(out),
		"too_short":        short,
		"min_duration_sec": in.cfg.MinDuration,
		"no_transcript":    missing,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("ingestion finished")
	return out, nil
}

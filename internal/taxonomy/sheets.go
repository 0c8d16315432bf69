package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"call-analysis-go/internal/types"
)

const (
	sheetsAttempts   = 3
	sheetsRetryDelay = time.Second
)

// SheetsProvider reads the check-list (columns A:D) and the instructions
// (columns A:B) from a Google spreadsheet.
type SheetsProvider struct {
	SpreadsheetID    string
	ChecklistSheet   string
	InstructionSheet string
	// Credentials is a service-account key file path or the key JSON itself.
	Credentials string
	// Options replace the credential options when set.
	Options    []option.ClientOption
	RetryDelay time.Duration
	Log        *logrus.Entry
}

func (p SheetsProvider) Load(ctx context.Context) (types.Taxonomy, error) {
	svc, err := sheets.NewService(ctx, p.clientOptions()...)
	if err != nil {
		return types.Taxonomy{}, fmt.Errorf("sheets client: %w", err)
	}
	criteria, err := p.readRange(ctx, svc, quoteSheet(p.ChecklistSheet)+"!A:D")
	if err != nil {
		return types.Taxonomy{}, err
	}
	instructions, err := p.readRange(ctx, svc, quoteSheet(p.InstructionSheet)+"!A:B")
	if err != nil {
		return types.Taxonomy{}, err
	}
	tax, err := build(criteria, instructions)
	if err != nil {
		return types.Taxonomy{}, err
	}
	p.logger().WithFields(logrus.Fields{
		"criteria":     len(tax.Criteria),
		"instructions": len(tax.Instructions),
	}).Info("taxonomy loaded from spreadsheet")
	return tax, nil
}

func (p SheetsProvider) clientOptions() []option.ClientOption {
	if len(p.Options) > 0 {
		return p.Options
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if strings.HasPrefix(strings.TrimSpace(p.Credentials), "{") {
		return append(opts, option.WithCredentialsJSON([]byte(p.Credentials)))
	}
	return append(opts, option.WithCredentialsFile(p.Credentials))
}

func (p SheetsProvider) readRange(ctx context.Context, svc *sheets.Service, rng string) ([][]string, error) {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = sheetsRetryDelay
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), sheetsAttempts-1), ctx)
	log := p.logger().WithField("range", rng)

	vr, err := backoff.RetryNotifyWithData(func() (*sheets.ValueRange, error) {
		vr, err := svc.Spreadsheets.Values.Get(p.SpreadsheetID, rng).Context(ctx).Do()
		if err != nil && !retryableSheetsError(err) {
			return nil, backoff.Permanent(err)
		}
		return vr, err
	}, bo, func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait.String()).Warn("sheets read failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return stringRows(vr.Values), nil
}

func (p SheetsProvider) logger() *logrus.Entry {
	if p.Log != nil {
		return p.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func retryableSheetsError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return true
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func stringRows(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out
}

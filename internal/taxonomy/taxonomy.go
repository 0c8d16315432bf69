// Package taxonomy loads the scoring check-list and free-text instructions
// from a spreadsheet, a workbook or a YAML file.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"call-analysis-go/internal/types"
)

var ErrNoCriteria = errors.New("taxonomy has no criteria")

// Provider is fetched once per run, before any call is analyzed.
type Provider interface {
	Load(ctx context.Context) (types.Taxonomy, error)
}

// ParseCriteria reads check-list rows. The first row is a header. A row with
// a single cell opens a category, a row with two or more cells is a criterion
// (indicator, comment, max score, rule) and an empty row ends the list.
func ParseCriteria(rows [][]string) ([]types.Criterion, error) {
	var (
		out      []types.Criterion
		category string
	)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		row = trimTrailing(row)
		switch len(row) {
		case 0:
			return out, nil
		case 1:
			category = strings.TrimSpace(row[0])
			continue
		}
		c := types.Criterion{
			Category:  category,
			Indicator: strings.TrimSpace(row[0]),
			Comment:   strings.TrimSpace(cell(row, 1)),
			Rule:      strings.TrimSpace(cell(row, 3)),
		}
		if raw := strings.TrimSpace(cell(row, 2)); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: max score %q: %w", i+1, raw, err)
			}
			c.MaxScore = n
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseInstructions keeps the first cell of every non-empty row.
func ParseInstructions(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if s := strings.TrimSpace(row[0]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func build(criteriaRows, instructionRows [][]string) (types.Taxonomy, error) {
	criteria, err := ParseCriteria(criteriaRows)
	if err != nil {
		return types.Taxonomy{}, fmt.Errorf("parse check-list: %w", err)
	}
	if len(criteria) == 0 {
		return types.Taxonomy{}, ErrNoCriteria
	}
	return types.Taxonomy{Criteria: criteria, Instructions: ParseInstructions(instructionRows)}, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// trimTrailing drops blank cells at the end so a row of only whitespace
// counts as empty.
func trimTrailing(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

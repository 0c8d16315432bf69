package taxonomy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"call-analysis-go/internal/types"
)

// XLSXProvider reads both sheets from a local workbook.
type XLSXProvider struct {
	Path             string
	ChecklistSheet   string
	InstructionSheet string
	Log              *logrus.Entry
}

func (p XLSXProvider) Load(_ context.Context) (types.Taxonomy, error) {
	f, err := excelize.OpenFile(p.Path)
	if err != nil {
		return types.Taxonomy{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	criteria, err := f.GetRows(p.ChecklistSheet)
	if err != nil {
		return types.Taxonomy{}, fmt.Errorf("read sheet %q: %w", p.ChecklistSheet, err)
	}
	// The instructions sheet is optional in a workbook.
	var instructions [][]string
	if idx, _ := f.GetSheetIndex(p.InstructionSheet); idx >= 0 {
		if instructions, err = f.GetRows(p.InstructionSheet); err != nil {
			return types.Taxonomy{}, fmt.Errorf("read sheet %q: %w", p.InstructionSheet, err)
		}
	}

	tax, err := build(criteria, instructions)
	if err != nil {
		return types.Taxonomy{}, err
	}
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{
			"path":         p.Path,
			"criteria":     len(tax.Criteria),
			"instructions": len(tax.Instructions),
		}).Info("taxonomy loaded from workbook")
	}
	return tax, nil
}

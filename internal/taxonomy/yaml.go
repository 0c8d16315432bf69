package taxonomy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"call-analysis-go/internal/types"
)

// YAMLProvider reads a document of the form
//
//	criteria:
//	  - {category: ..., indicator: ..., comment: ..., max_score: 1, rule: ...}
//	instructions:
//	  - ...
type YAMLProvider struct {
	Path string
	Log  *logrus.Entry
}

func (p YAMLProvider) Load(_ context.Context) (types.Taxonomy, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return types.Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	tax, err := ParseYAML(raw)
	if err != nil {
		return types.Taxonomy{}, err
	}
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{
			"path":         p.Path,
			"criteria":     len(tax.Criteria),
			"instructions": len(tax.Instructions),
		}).Info("taxonomy loaded from yaml")
	}
	return tax, nil
}

func ParseYAML(raw []byte) (types.Taxonomy, error) {
	var tax types.Taxonomy
	if err := yaml.Unmarshal(raw, &tax); err != nil {
		return types.Taxonomy{}, fmt.Errorf("decode taxonomy: %w", err)
	}
	for i := range tax.Criteria {
		c := &tax.Criteria[i]
		c.Category = strings.TrimSpace(c.Category)
		c.Indicator = strings.TrimSpace(c.Indicator)
		if c.Indicator == "" {
			return types.Taxonomy{}, fmt.Errorf("criterion %d: indicator is empty", i+1)
		}
	}
	if len(tax.Criteria) == 0 {
		return types.Taxonomy{}, ErrNoCriteria
	}
	instructions := tax.Instructions[:0]
	for _, s := range tax.Instructions {
		if s = strings.TrimSpace(s); s != "" {
			instructions = append(instructions, s)
		}
	}
	tax.Instructions = instructions
	return tax, nil
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/config"
	"call-analysis-go/internal/logger"
	"call-analysis-go/internal/metrics"
	"call-analysis-go/internal/taxonomy"
	"call-analysis-go/internal/types"
)

func testConfig(t *testing.T, prompt string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte(prompt), 0o600))
	return &config.Config{
		TaxonomySource:      config.TaxonomyYAML,
		TaxonomyPath:        "taxonomy.yaml",
		LLMBaseURL:          "http://localhost:4000/v1",
		LLMToken:            "sk-test",
		LLMModel:            "gpt-4o-mini",
		LLMTimeout:          time.Minute,
		RetryDelay:          time.Second,
		ParseRetryDelay:     time.Second,
		SimilarityThreshold: 0.85,
		SimilarityAlgorithm: "ratio",
		DepartmentID:        2,
		PromptFile:          path,
	}
}

func TestTaxonomyProvider(t *testing.T) {
	cfg := testConfig(t, "{transcription}")
	log := logger.Discard().Entry

	for source, want := range map[string]any{
		config.TaxonomySheets: taxonomy.SheetsProvider{},
		config.TaxonomyXLSX:   taxonomy.XLSXProvider{},
		config.TaxonomyYAML:   taxonomy.YAMLProvider{},
	} {
		cfg.TaxonomySource = source
		p, err := TaxonomyProvider(cfg, log)
		require.NoError(t, err, source)
		assert.IsType(t, want, p, source)
	}

	cfg.TaxonomySource = "csv"
	_, err := TaxonomyProvider(cfg, log)
	assert.Error(t, err)
}

func TestNewAnalyzer(t *testing.T) {
	cfg := testConfig(t, "Критерии:\n{criteria_list}\nДиалог:\n{transcription}")
	tax := types.Taxonomy{Criteria: []types.Criterion{{Category: "Приветствие", Indicator: "Поздоровался", MaxScore: 1}}}

	a, err := NewAnalyzer(cfg, tax, metrics.New(), logger.Discard().Entry)

	require.NoError(t, err)
	prompt := a.Prompt(types.CallRecord{Phrases: []types.Phrase{{Text: "Алло", Channel: types.ChannelClient}}})
	assert.Contains(t, prompt, "КАТЕГОРИЯ: Приветствие")
	assert.Contains(t, prompt, "client: Алло")
}

func TestNewAnalyzer_BadTemplate(t *testing.T) {
	cfg := testConfig(t, "{unknown_slot}")

	_, err := NewAnalyzer(cfg, types.Taxonomy{}, metrics.New(), logger.Discard().Entry)

	assert.Error(t, err)
}

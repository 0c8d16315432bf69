// Package app wires configuration into the components shared by the batch
// job and the HTTP server.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/config"
	"call-analysis-go/internal/extractor"
	"call-analysis-go/internal/llm"
	"call-analysis-go/internal/normalizer"
	"call-analysis-go/internal/processor"
	"call-analysis-go/internal/taxonomy"
	"call-analysis-go/internal/types"
)

func TaxonomyProvider(cfg *config.Config, log *logrus.Entry) (taxonomy.Provider, error) {
	log = log.WithField("component", "taxonomy")
	switch cfg.TaxonomySource {
	case config.TaxonomySheets:
		return taxonomy.SheetsProvider{
			SpreadsheetID:    cfg.RequirementsSheetID,
			ChecklistSheet:   cfg.ChecklistSheet,
			InstructionSheet: cfg.PromptSheet,
			Credentials:      cfg.GoogleCredentialsFile,
			Log:              log,
		}, nil
	case config.TaxonomyXLSX:
		return taxonomy.XLSXProvider{
			Path:             cfg.TaxonomyPath,
			ChecklistSheet:   cfg.ChecklistSheet,
			InstructionSheet: cfg.PromptSheet,
			Log:              log,
		}, nil
	case config.TaxonomyYAML:
		return taxonomy.YAMLProvider{Path: cfg.TaxonomyPath, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown taxonomy source %q", cfg.TaxonomySource)
	}
}

// NewAnalyzer builds the per-call analysis chain: prompt template, label
// normalizer, model client and retry controller.
func NewAnalyzer(cfg *config.Config, tax types.Taxonomy, obs llm.Observer, log *logrus.Entry) (*processor.Analyzer, error) {
	tpl, err := extractor.LoadTemplate(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	sim, err := normalizer.SimilarityByName(cfg.SimilarityAlgorithm)
	if err != nil {
		return nil, err
	}
	labels := normalizer.NewLabelNormalizer(normalizer.BuildMapping(tax.Criteria), normalizer.LabelConfig{
		Threshold:  cfg.SimilarityThreshold,
		Similarity: sim,
	}, log)

	client, err := llm.NewOpenAIClient(llm.ClientConfig{
		BaseURL:           cfg.LLMBaseURL,
		Token:             cfg.LLMToken,
		Model:             cfg.LLMModel,
		Timeout:           cfg.LLMTimeout,
		RequestsPerSecond: cfg.LLMRPS,
	}, obs, log)
	if err != nil {
		return nil, err
	}
	retrier := llm.NewRetrier(client, llm.RetrierConfig{
		Transport: llm.TransportPolicy(cfg.RetryDelay),
		Content:   llm.ContentPolicy(cfg.ParseRetryDelay),
		Observer:  obs,
	}, log)

	return processor.NewAnalyzer(retrier, processor.NewBuilder(labels, log), processor.AnalyzerConfig{
		Template:     tpl,
		Taxonomy:     tax,
		DepartmentID: cfg.DepartmentID,
	}, log)
}

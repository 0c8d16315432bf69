package processor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/extractor"
	"call-analysis-go/internal/llm"
	"call-analysis-go/internal/types"
)

// Completer returns a decoded model reply for a prompt.
// *llm.Retrier is the production implementation.
type Completer interface {
	Complete(ctx context.Context, callID, prompt string) (llm.Reply, error)
}

type AnalyzerConfig struct {
	Template     *extractor.Template
	Taxonomy     types.Taxonomy
	DepartmentID int
}

// Analyzer evaluates a single call end to end: prompt, model, result.
type Analyzer struct {
	completer    Completer
	builder      *Builder
	template     *extractor.Template
	criteria     string
	instructions string
	departmentID int
	log          *logrus.Entry
}

func NewAnalyzer(completer Completer, builder *Builder, cfg AnalyzerConfig, log *logrus.Entry) (*Analyzer, error) {
	if cfg.Template == nil {
		return nil, errors.New("prompt template is required")
	}
	return &Analyzer{
		completer:    completer,
		builder:      builder,
		template:     cfg.Template,
		criteria:     extractor.FormatCriteria(cfg.Taxonomy.Criteria),
		instructions: extractor.FormatInstructions(cfg.Taxonomy.Instructions),
		departmentID: cfg.DepartmentID,
		log:          log.WithField("component", "analyzer"),
	}, nil
}

// Outcome of one analyzed call. Report is nil when Filtered.
type Outcome struct {
	Report     *types.AnalysisReport
	Filtered   bool
	TokensUsed int
}

func (a *Analyzer) Prompt(call types.CallRecord) string {
	return a.template.Render(extractor.PromptInput{
		Criteria:     a.criteria,
		Instructions: a.instructions,
		Transcript:   extractor.FormatTranscript(call.Phrases),
	})
}

// Analyze returns an error only when the model could not produce a usable
// reply within the retry budgets.
func (a *Analyzer) Analyze(ctx context.Context, call types.CallRecord) (Outcome, error) {
	log := a.log.WithField("call_id", call.SegmentID)
	start := time.Now()

	reply, err := a.completer.Complete(ctx, call.SegmentID, a.Prompt(call))
	if err != nil {
		return Outcome{TokensUsed: reply.TokensUsed}, err
	}

	res := a.builder.Build(call.SegmentID, reply.Data)
	if !res.IsSalesCall {
		log.WithField("tokens", reply.TokensUsed).Info("not a sales call, skipped")
		return Outcome{Filtered: true, TokensUsed: reply.TokensUsed}, nil
	}

	log.WithFields(logrus.Fields{
		"performance":     res.PerformancePercentage,
		"tokens":          reply.TokensUsed,
		"recommendations": len(res.Recommendations),
		"agreements":      len(res.Agreements),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("call analyzed")
	return Outcome{
		Report:     &types.AnalysisReport{Call: call, Result: res, DepartmentID: a.departmentID},
		TokensUsed: reply.TokensUsed,
	}, nil
}

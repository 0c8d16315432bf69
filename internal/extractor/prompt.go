package extractor

import (
	"fmt"
	"os"
	"strings"

	"call-analysis-go/internal/types"
)

const (
	SlotCriteria     = "criteria_list"
	SlotInstructions = "custom_instructions"
	SlotTranscript   = "transcription"
)

// FormatCriteria renders the taxonomy block the model scores against.
func FormatCriteria(criteria []types.Criterion) string {
	var b strings.Builder
	for _, c := range criteria {
		fmt.Fprintf(&b, "КАТЕГОРИЯ: %s\nКРИТЕРИЙ: %s\nКОММЕНТАРИЙ: %s\nМАКСИМАЛЬНЫЙ БАЛЛ: %d\nУСЛОВИЯ ОЦЕНКИ: %s\n\n",
			c.Category, c.Indicator, c.Comment, c.MaxScore, c.Rule)
	}
	return b.String()
}

func FormatInstructions(instructions []string) string {
	return strings.Join(instructions, "\n\n")
}

// FormatTranscript renders one "channel: text" line per phrase.
func FormatTranscript(phrases []types.Phrase) string {
	var b strings.Builder
	for _, p := range phrases {
		b.WriteString(string(p.Channel))
		b.WriteString(": ")
		b.WriteString(p.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

type segment struct {
	text string
	slot string
}

// Template is a prompt with {criteria_list}, {custom_instructions} and
// {transcription} insertion points. "{{" and "}}" render as literal braces.
type Template struct {
	segments []segment
}

func LoadTemplate(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return ParseTemplate(string(raw))
}

// ParseTemplate rejects unknown placeholders and unbalanced braces.
func ParseTemplate(src string) (*Template, error) {
	t := &Template{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '{':
			if i+1 < len(src) && src[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("prompt template: unclosed '{' at offset %d", i)
			}
			name := src[i+1 : i+1+end]
			switch name {
			case SlotCriteria, SlotInstructions, SlotTranscript:
			default:
				return nil, fmt.Errorf("prompt template: unknown placeholder {%s}", name)
			}
			flush()
			t.segments = append(t.segments, segment{slot: name})
			i += end + 1
		case '}':
			if i+1 < len(src) && src[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("prompt template: single '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// PromptInput holds the per-run blocks and the per-call transcript.
type PromptInput struct {
	Criteria     string
	Instructions string
	Transcript   string
}

func (t *Template) Render(in PromptInput) string {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.slot {
		case "":
			b.WriteString(s.text)
		case SlotCriteria:
			b.WriteString(in.Criteria)
		case SlotInstructions:
			b.WriteString(in.Instructions)
		case SlotTranscript:
			b.WriteString(in.Transcript)
		}
	}
	return b.String()
}

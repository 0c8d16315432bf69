package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// snippetLimit bounds how much raw model output a ParseError carries.
const snippetLimit = 500

// ParseError means the model reply held no decodable JSON object.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v (content: %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractJSON isolates the JSON candidate in a model reply. A ```json fence
// wins over a bare ``` fence; the result is trimmed and cut to the span from
// the first '{' to the last '}'.
func ExtractJSON(content string) string {
	if _, after, ok := strings.Cut(content, "```json"); ok {
		content, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(content, "```"); ok {
		content, _, _ = strings.Cut(after, "```")
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		content = content[start : end+1]
	}
	return content
}

// ParseResponse decodes the reply into a JSON object. Nothing is repaired.
func ParseResponse(content string) (map[string]any, error) {
	candidate := ExtractJSON(content)
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &ParseError{Snippet: truncate(candidate, snippetLimit), Err: err}
	}
	if out == nil {
		return nil, &ParseError{Snippet: truncate(candidate, snippetLimit), Err: fmt.Errorf("not a JSON object")}
	}
	return out, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

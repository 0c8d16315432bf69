package taxonomy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taxonomyYAML = `
criteria:
  - category: " Приветствие "
    indicator: Поздоровался
    comment: Назвал имя
    max_score: 1
    rule: 1 если поздоровался
  - category: Завершение
    indicator: Попрощался
    max_score: 1
instructions:
  - Будь строг
  - "  "
`

func TestYAMLProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(taxonomyYAML), 0o600))

	tax, err := YAMLProvider{Path: path}.Load(context.Background())

	require.NoError(t, err)
	require.Len(t, tax.Criteria, 2)
	assert.Equal(t, "Приветствие", tax.Criteria[0].Category)
	assert.Equal(t, "1 если поздоровался", tax.Criteria[0].Rule)
	assert.Equal(t, []string{"Будь строг"}, tax.Instructions)
}

func TestParseYAML_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":             "instructions: [a]",
		"blank indicator":   "criteria: [{category: A, indicator: ' ', max_score: 1}]",
		"malformed":         "criteria: {",
		"non-numeric score": "criteria: [{category: A, indicator: B, max_score: many}]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

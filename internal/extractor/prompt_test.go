package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/types"
)

func TestFormatCriteria(t *testing.T) {
	got := FormatCriteria([]types.Criterion{
		{Category: "Приветствие", Indicator: "Поздоровался", Comment: "в начале", MaxScore: 1, Rule: "1 если да"},
		{Category: "Завершение", Indicator: "Попрощался", MaxScore: 2},
	})

	want := "КАТЕГОРИЯ: Приветствие\nКРИТЕРИЙ: Поздоровался\nКОММЕНТАРИЙ: в начале\nМАКСИМАЛЬНЫЙ БАЛЛ: 1\nУСЛОВИЯ ОЦЕНКИ: 1 если да\n\n" +
		"КАТЕГОРИЯ: Завершение\nКРИТЕРИЙ: Попрощался\nКОММЕНТАРИЙ: \nМАКСИМАЛЬНЫЙ БАЛЛ: 2\nУСЛОВИЯ ОЦЕНКИ: \n\n"
	assert.Equal(t, want, got)
}

func TestFormatInstructionsAndTranscript(t *testing.T) {
	assert.Equal(t, "a\n\nb", FormatInstructions([]string{"a", "b"}))
	assert.Equal(t, "", FormatInstructions(nil))

	got := FormatTranscript([]types.Phrase{
		{Text: "Здравствуйте", Channel: types.ChannelOperator},
		{Text: "Добрый день", Channel: types.ChannelClient},
	})
	assert.Equal(t, "operator: Здравствуйте\nclient: Добрый день\n", got)
}

func TestTemplate_RenderWithEscapedBraces(t *testing.T) {
	// Given a template with a literal JSON example
	tpl, err := ParseTemplate("Критерии:\n{criteria_list}\n{custom_instructions}\nОтвет: {{\"is_sales_call\": true}}\n{transcription}")
	require.NoError(t, err)

	// When rendered
	out := tpl.Render(PromptInput{Criteria: "C", Instructions: "I", Transcript: "T {x}"})

	// Then slots are filled and doubled braces collapse
	assert.Equal(t, "Критерии:\nC\nI\nОтвет: {\"is_sales_call\": true}\nT {x}", out)
}

func TestTemplate_SlotMayRepeat(t *testing.T) {
	tpl, err := ParseTemplate("{transcription}|{transcription}")
	require.NoError(t, err)
	assert.Equal(t, "x|x", tpl.Render(PromptInput{Transcript: "x"}))
}

func TestParseTemplate_Rejects(t *testing.T) {
	for _, src := range []string{"{unknown}", "{transcription", "a } b", "{ transcription }"} {
		_, err := ParseTemplate(src)
		assert.Error(t, err, src)
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Звонок:\n{transcription}"), 0o644))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "Звонок:\nhi\n", tpl.Render(PromptInput{Transcript: "hi\n"}))

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

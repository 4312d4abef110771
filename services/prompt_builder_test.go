package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIsDeterministic(t *testing.T) {
	b := NewPromptBuilder(10)
	question := []byte("q-image")
	answer := []byte("a-image")
	excerpts := []string{"قانون نيوتن الأول", "قانون نيوتن الثاني"}

	first := b.Build(question, answer, excerpts)
	second := b.Build(question, answer, excerpts)

	assert.Equal(t, first.Instructions, second.Instructions, "identical inputs must yield byte-identical instructions")
	assert.Equal(t, first, second)
}

func TestBuildCarriesInputsThrough(t *testing.T) {
	b := NewPromptBuilder(10)
	excerpts := []string{"مقتطف للاختبار"}

	req := b.Build([]byte("q"), []byte("a"), excerpts)

	assert.Equal(t, []byte("q"), req.QuestionImage)
	assert.Equal(t, []byte("a"), req.AnswerImage)
	assert.Equal(t, excerpts, req.CurriculumContext)
	assert.Contains(t, req.Instructions, "مقتطف للاختبار")
}

func TestInstructionsDeclareTheScale(t *testing.T) {
	req := NewPromptBuilder(10).Build(nil, nil, nil)

	require.Contains(t, req.Instructions, `"max_score": 10`)
	assert.Contains(t, req.Instructions, "correct|mistake|partial|unclear")
	assert.Contains(t, req.Instructions, "[x_min, y_min, x_max, y_max]")
}

func TestInstructionsWithoutExcerpts(t *testing.T) {
	req := NewPromptBuilder(10).Build(nil, nil, nil)

	assert.NotContains(t, req.Instructions, "### مقتطف")
	assert.Contains(t, req.Instructions, "لا يتوفر مقتطف")
}

func TestInstructionsNumberExcerpts(t *testing.T) {
	req := NewPromptBuilder(10).Build(nil, nil, []string{"أ", "ب", "ج"})

	for _, marker := range []string{"### مقتطف 1", "### مقتطف 2", "### مقتطف 3"} {
		assert.Contains(t, req.Instructions, marker)
	}
	assert.Equal(t, 3, strings.Count(req.Instructions, "### مقتطف"))
}

func TestCorrectiveInstructionNamesTheViolation(t *testing.T) {
	msg := correctiveInstruction(errSchemaViolation)
	assert.Contains(t, msg, errSchemaViolation.Error())
}

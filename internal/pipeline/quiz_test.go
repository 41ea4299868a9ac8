package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
)

const quizDoc = "```json\n" + `{"questions":[
  {"id":"q1","text":"Have you written Rust before?","options":[{"value":"no","label":"Never"},{"value":"some","label":"A little"}]},
  {"id":"q2","text":"Do you know what a borrow checker does?","options":[{"value":"yes","label":"Yes"},{"value":"no","label":"No"},]},
]}` + "\n```"

func TestGenerateQuiz(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(quizDoc))

	quiz, err := h.orch.GenerateQuiz(context.Background(), []byte(`{"skillName":"Rust"}`), "")
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "q2", quiz.Questions[1].ID)
	assert.Len(t, quiz.Questions[1].Options, 2)

	req := h.provider.LastRequest
	assert.Equal(t, ai.TaskQuizQuestions, req.Task)
	assert.False(t, req.SearchGrounding, "grounding is only used for curricula")
	assert.Contains(t, lastPrompt(t, h.provider), "Rust")
	assert.Equal(t, []string{pipeline.EventQuizGenerated}, h.events.Types())
}

func TestGenerateQuiz_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *ai.MockProvider
		body     string
		want     pipeline.Kind
	}{
		{"missing skill", ai.NewMockProvider(quizDoc), `{}`, pipeline.BadRequest},
		{"blank skill", ai.NewMockProvider(quizDoc), `{"skillName":" "}`, pipeline.BadRequest},
		{"blocked", ai.NewBlockedMockProvider("DANGEROUS_CONTENT"), `{"skillName":"Rust"}`, pipeline.ContentBlocked},
		{"no questions", ai.NewMockProvider(`{"questions":[]}`), `{"skillName":"Rust"}`, pipeline.SchemaViolation},
		{"prose", ai.NewMockProvider(`Sure! Question 1...`), `{"skillName":"Rust"}`, pipeline.MalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.provider)
			_, err := h.orch.GenerateQuiz(context.Background(), []byte(tt.body), "")
			assert.Equal(t, tt.want, pipeline.KindOf(err))
		})
	}
}

func TestAssessQuiz(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(`{"level":"intermediate","rationale":"Comfortable with C, new to ownership."}`))

	a, err := h.orch.AssessQuiz(context.Background(), []byte(`{"skillName":"Rust","answers":{"q2":"no","q1":"some"}}`), "")
	require.NoError(t, err)
	assert.Equal(t, curriculum.LevelIntermediate, a.Level)
	assert.Equal(t, "Assessed level: intermediate. Comfortable with C, new to ownership.", a.Summary())

	prompt := lastPrompt(t, h.provider)
	assert.Contains(t, prompt, "- q1: some")
	assert.Contains(t, prompt, "- q2: no")
	assert.Equal(t, ai.TaskQuizAssessment, h.provider.LastRequest.Task)
}

func TestAssessQuiz_Errors(t *testing.T) {
	tests := []struct {
		name   string
		output string
		body   string
		want   pipeline.Kind
	}{
		{"no answers", `{"level":"beginner"}`, `{"skillName":"Rust","answers":{}}`, pipeline.BadRequest},
		{"non-string answer", `{"level":"beginner"}`, `{"skillName":"Rust","answers":{"q1":3}}`, pipeline.BadRequest},
		{"custom is not an assessed level", `{"level":"custom"}`, `{"skillName":"Rust","answers":{"q1":"a"}}`, pipeline.SchemaViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(tt.output))
			_, err := h.orch.AssessQuiz(context.Background(), []byte(tt.body), "")
			assert.Equal(t, tt.want, pipeline.KindOf(err))
		})
	}
}

// The assessment summary feeds a custom-level generation.
func TestAssessThenGenerateCustom(t *testing.T) {
	ctx := context.Background()
	assessor := newHarness(t, ai.NewMockProvider(`{"level":"advanced","rationale":"Ships Rust daily."}`))
	a, err := assessor.orch.AssessQuiz(ctx, []byte(`{"skillName":"Rust","answers":{"q1":"daily"}}`), "")
	require.NoError(t, err)

	h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
	body := mustJSON(t, curriculum.GenerationRequest{
		Skill:             "Rust",
		ExperienceLevel:   curriculum.LevelCustom,
		AssessmentContext: a.Summary(),
	})
	_, err = h.orch.Generate(ctx, []byte(body), "", nil)
	require.NoError(t, err)
	assert.Contains(t, lastPrompt(t, h.provider), "Ships Rust daily.")
}

package pipeline

import (
	"context"
	"log/slog"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

type quizGenerateRequest struct {
	SkillName string `json:"skillName"`
}

type quizAssessRequest struct {
	SkillName string            `json:"skillName"`
	Answers   map[string]string `json:"answers"`
}

// GenerateQuiz asks the model for multiple-choice questions that gauge a
// learner's familiarity with a skill.
func (o *Orchestrator) GenerateQuiz(ctx context.Context, body []byte, caller string) (curriculum.Quiz, error) {
	var req quizGenerateRequest
	if err := curriculum.ValidateDocument(curriculum.SchemaQuizGenerateRequest, body, &req); err != nil {
		return curriculum.Quiz{}, badRequest(err)
	}

	var quiz curriculum.Quiz
	err := o.runTask(ctx, ai.TaskQuizQuestions, curriculum.BuildQuizPrompt(req.SkillName), caller, func(cleaned string) error {
		var err error
		quiz, err = curriculum.ValidateQuiz(cleaned)
		return err
	})
	if err != nil {
		return curriculum.Quiz{}, err
	}

	o.logEvent(Event{UserID: caller, EventType: EventQuizGenerated, Data: map[string]any{
		"skill":     req.SkillName,
		"questions": len(quiz.Questions),
	}})
	return quiz, nil
}

// AssessQuiz asks the model to place quiz answers at an experience level.
// The assessment summary is what a client sends back as assessmentContext
// for a custom-level generation.
func (o *Orchestrator) AssessQuiz(ctx context.Context, body []byte, caller string) (curriculum.Assessment, error) {
	var req quizAssessRequest
	if err := curriculum.ValidateDocument(curriculum.SchemaQuizAssessRequest, body, &req); err != nil {
		return curriculum.Assessment{}, badRequest(err)
	}

	var assessment curriculum.Assessment
	err := o.runTask(ctx, ai.TaskQuizAssessment, curriculum.BuildAssessmentPrompt(req.SkillName, req.Answers), caller, func(cleaned string) error {
		var err error
		assessment, err = curriculum.ValidateAssessment(cleaned)
		return err
	})
	if err != nil {
		return curriculum.Assessment{}, err
	}

	o.logEvent(Event{UserID: caller, EventType: EventQuizAssessed, Data: map[string]any{
		"skill": req.SkillName,
		"level": string(assessment.Level),
	}})
	return assessment, nil
}

// runTask runs the quota check, model call, sanitization and the given
// validation for a non-curriculum task.
func (o *Orchestrator) runTask(ctx context.Context, task ai.TaskType, prompt, caller string, validate func(cleaned string) error) error {
	err := func() error {
		if perr := o.checkQuota(ctx, caller); perr != nil {
			return perr
		}
		text, perr := o.complete(ctx, task, prompt, caller)
		if perr != nil {
			return perr
		}
		cleaned := curriculum.Sanitize(text)
		if err := validate(cleaned); err != nil {
			perr := outputError(err)
			slog.Warn("model output rejected",
				"task", task.String(),
				"kind", perr.Kind.Code(),
				"fields", perr.Fields,
				"output", truncate(cleaned, maxLoggedOutput),
				"error", err,
			)
			return perr
		}
		return nil
	}()
	GenerationsTotal.WithLabelValues(task.String(), outcome(err)).Inc()
	if err != nil {
		o.logEvent(Event{UserID: caller, EventType: EventGenerationFailed, Data: map[string]any{
			"task": task.String(),
			"kind": KindOf(err).Code(),
		}})
	}
	return err
}

// Package curriculum holds the generated learning-path document and the pure
// stages of the generation pipeline: prompt construction, sanitization of
// model output, and schema validation.
package curriculum

import (
	"encoding/json"
	"strings"
)

// ExperienceLevel is the learner's self-reported or assessed level.
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
	LevelCustom       ExperienceLevel = "custom"
)

// Valid reports whether l is one of the four accepted levels.
func (l ExperienceLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelCustom:
		return true
	}
	return false
}

// GenerationRequest is the inbound body of a Generate call.
type GenerationRequest struct {
	Skill             string          `json:"skill"`
	ExperienceLevel   ExperienceLevel `json:"experienceLevel"`
	AssessmentContext string          `json:"quizResults,omitempty"`
}

// UnmarshalJSON accepts assessmentContext as an alias for quizResults and
// trims the skill name.
func (r *GenerationRequest) UnmarshalJSON(data []byte) error {
	type plain GenerationRequest
	var aux struct {
		plain
		Alias string `json:"assessmentContext"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = GenerationRequest(aux.plain)
	if r.AssessmentContext == "" {
		r.AssessmentContext = aux.Alias
	}
	r.Skill = strings.TrimSpace(r.Skill)
	return nil
}

// Resource is a free learning resource attached to a step.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Step is a single learning action within a module.
type Step struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	EstimatedTime string     `json:"estimated_time,omitempty"`
	Resources     []Resource `json:"resources,omitempty"`
}

// Assignment is a practical task that reinforces a module.
type Assignment struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimated_time,omitempty"`
}

// Module groups ordered steps with an optional assignment.
type Module struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Steps       []Step      `json:"steps"`
	Assignment  *Assignment `json:"assignment,omitempty"`
}

// Curriculum is the generated learning path.
type Curriculum struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules"`
}

// TotalSteps returns the number of steps across all modules.
func (c Curriculum) TotalSteps() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Steps)
	}
	return n
}

// GenerationResponse wraps a curriculum with the request it answers.
type GenerationResponse struct {
	Skill           string     `json:"skill"`
	ExperienceLevel string     `json:"experienceLevel"`
	Curriculum      Curriculum `json:"curriculum"`
}

// QuizOption is one answer choice of a quiz question.
type QuizOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// QuizQuestion is a multiple-choice question probing familiarity with a skill.
type QuizQuestion struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Options []QuizOption `json:"options"`
}

// Quiz is the generated experience quiz.
type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

// Assessment is the level inferred from quiz answers.
type Assessment struct {
	Level     ExperienceLevel `json:"level"`
	Rationale string          `json:"rationale,omitempty"`
}

// Summary renders the assessment as the context handed to BuildPrompt.
func (a Assessment) Summary() string {
	if a.Rationale == "" {
		return "Assessed level: " + string(a.Level) + "."
	}
	return "Assessed level: " + string(a.Level) + ". " + a.Rationale
}

package pipeline

import (
	"math"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

// StepProgress is a step annotated with its completion.
type StepProgress struct {
	curriculum.Step
	Completed bool `json:"completed"`
}

// ModuleProgress is a module whose steps carry completion.
type ModuleProgress struct {
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Steps          []StepProgress         `json:"steps"`
	Assignment     *curriculum.Assignment `json:"assignment,omitempty"`
	CompletedSteps int                    `json:"completedSteps"`
}

// CurriculumProgress is a stored curriculum with the learner's completion
// overlaid.
type CurriculumProgress struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	ExperienceLevel string           `json:"experienceLevel"`
	Modules         []ModuleProgress `json:"modules"`
	CompletedSteps  int              `json:"completedSteps"`
	TotalSteps      int              `json:"totalSteps"`
	Percent         int              `json:"percent"`
}

// Overlay marks steps complete from completed assignment rows. A
// step-level row completes its step; a module-level row completes the
// module's last step.
func Overlay(c store.StoredCurriculum, assignments []store.StoredAssignment) CurriculumProgress {
	out := CurriculumProgress{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		ExperienceLevel: c.ExperienceLevel,
		Modules:         make([]ModuleProgress, len(c.Modules)),
	}

	for mi, m := range c.Modules {
		mp := ModuleProgress{
			Title:       m.Title,
			Description: m.Description,
			Steps:       make([]StepProgress, len(m.Steps)),
			Assignment:  m.Assignment,
		}
		for si, s := range m.Steps {
			done := stepDone(assignments, mi, si, len(m.Steps))
			mp.Steps[si] = StepProgress{Step: s, Completed: done}
			if done {
				mp.CompletedSteps++
			}
		}
		out.Modules[mi] = mp
		out.CompletedSteps += mp.CompletedSteps
		out.TotalSteps += len(m.Steps)
	}

	out.Percent = percent(out.CompletedSteps, out.TotalSteps)
	return out
}

func stepDone(as []store.StoredAssignment, module, step, steps int) bool {
	for _, a := range as {
		if !a.Completed || a.ModuleIndex != module {
			continue
		}
		if a.StepIndex == step || (a.StepIndex == store.ModuleLevel && step == steps-1) {
			return true
		}
	}
	return false
}

// Stats summarizes a learner's skills.
type Stats struct {
	TotalSkills     int `json:"totalSkills"`
	CompletedSkills int `json:"completedSkills"`
	TotalSteps      int `json:"totalSteps"`
	CompletedSteps  int `json:"completedSteps"`
	CompletionRate  int `json:"completionRate"`
}

// ComputeStats aggregates progress across skills. CompletionRate is the
// rounded percentage of completed steps over all steps.
func ComputeStats(skills []store.Skill) Stats {
	st := Stats{TotalSkills: len(skills)}
	for _, sk := range skills {
		if sk.Completed {
			st.CompletedSkills++
		}
		st.TotalSteps += sk.TotalSteps
		st.CompletedSteps += sk.CurrentStep
	}
	st.CompletionRate = percent(st.CompletedSteps, st.TotalSteps)
	return st
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

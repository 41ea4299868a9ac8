// Package store persists accepted curricula and learner progress.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// ModuleLevel is the step index of an assignment that belongs to a whole
// module rather than to one of its steps.
const ModuleLevel = -1

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Skill tracks a learner's progress through one skill. (UserID, SkillName)
// is unique.
type Skill struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	SkillName       string    `json:"skillName"`
	ExperienceLevel string    `json:"experienceLevel"`
	CurrentStep     int       `json:"currentStep"`
	TotalSteps      int       `json:"totalSteps"`
	Completed       bool      `json:"completed"`
	CreatedAt       time.Time `json:"createdAt"`
}

// StoredCurriculum is an accepted curriculum. Modules are kept verbatim.
type StoredCurriculum struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	SkillID         string              `json:"skillId"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Modules         []curriculum.Module `json:"modules"`
	ExperienceLevel string              `json:"experienceLevel"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// StoredAssignment records a module assignment or a completed step of one
// curriculum. StepIndex is ModuleLevel for module assignments.
type StoredAssignment struct {
	ID           string    `json:"id"`
	SkillID      string    `json:"skillId"`
	CurriculumID string    `json:"curriculumId"`
	ModuleIndex  int       `json:"moduleIndex"`
	StepIndex    int       `json:"stepIndex"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Writer is the narrow set of writes a save needs. Each call stands alone;
// no transaction spans them.
type Writer interface {
	// UpsertSkill inserts or updates the skill keyed by (UserID, SkillName)
	// and returns its id.
	UpsertSkill(ctx context.Context, s Skill) (string, error)
	// InsertCurriculum inserts a curriculum and returns its id.
	InsertCurriculum(ctx context.Context, c StoredCurriculum) (string, error)
	// InsertAssignments inserts all rows in one batch.
	InsertAssignments(ctx context.Context, as []StoredAssignment) error
}

// ProgressStore reads curricula back and records learner progress.
type ProgressStore interface {
	GetSkill(ctx context.Context, id string) (Skill, error)
	ListSkills(ctx context.Context, userID string) ([]Skill, error)
	UpdateSkillProgress(ctx context.Context, id string, currentStep int, completed bool) error
	InsertAssignment(ctx context.Context, a StoredAssignment) (string, error)
	ListAssignments(ctx context.Context, skillID string) ([]StoredAssignment, error)
	GetCurriculum(ctx context.Context, id string) (StoredCurriculum, error)
	LatestCurriculumForSkill(ctx context.Context, skillID string) (StoredCurriculum, error)
}

// Store is implemented by MemoryStore and PostgresStore.
type Store interface {
	Writer
	ProgressStore
}

// ModuleAssignments builds one module-level row per module that carries an
// assignment.
func ModuleAssignments(skillID, curriculumID string, c curriculum.Curriculum) []StoredAssignment {
	var out []StoredAssignment
	for i, m := range c.Modules {
		if m.Assignment == nil {
			continue
		}
		out = append(out, StoredAssignment{
			SkillID:      skillID,
			CurriculumID: curriculumID,
			ModuleIndex:  i,
			StepIndex:    ModuleLevel,
			Title:        m.Assignment.Title,
			Description:  m.Assignment.Description,
		})
	}
	return out
}

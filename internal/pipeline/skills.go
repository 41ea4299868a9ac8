package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

// SkillDetail is a skill with its latest curriculum and stored assignments.
type SkillDetail struct {
	Skill       store.Skill              `json:"skill"`
	Curriculum  CurriculumProgress       `json:"curriculum"`
	Assignments []store.StoredAssignment `json:"assignments"`
}

// Dashboard lists a user's skills with aggregate stats.
type Dashboard struct {
	Skills []store.Skill `json:"skills"`
	Stats  Stats         `json:"stats"`
}

// Submission is the result of submitting an assignment.
type Submission struct {
	AssignmentID string      `json:"assignmentId"`
	Skill        store.Skill `json:"skill"`
}

type stepCompletion struct {
	ModuleIndex int `json:"moduleIndex"`
	StepIndex   int `json:"stepIndex"`
}

type assignmentSubmission struct {
	ModuleIndex int    `json:"moduleIndex"`
	StepIndex   int    `json:"stepIndex"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func requireUser(userID string) *Error {
	if userID == "" {
		return newError(AuthenticationRequired, "Sign in to continue.", nil)
	}
	return nil
}

// storeError classifies a read or write failure outside the save path.
func storeError(err error, what string) *Error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(NotFound, what+" not found.", err)
	}
	return newError(PersistFailed, "The request could not be completed.", err)
}

func (o *Orchestrator) ownedSkill(ctx context.Context, userID, skillID string) (store.Skill, *Error) {
	sk, err := o.store.GetSkill(ctx, skillID)
	if err != nil {
		return store.Skill{}, storeError(err, "Skill")
	}
	if sk.UserID != userID {
		return store.Skill{}, newError(Forbidden, "This skill belongs to another user.", nil)
	}
	return sk, nil
}

// progressOf loads the latest curriculum of a skill and the assignments
// recorded against it. Rows left by earlier saves of the skill are dropped.
func (o *Orchestrator) progressOf(ctx context.Context, skillID string) (store.StoredCurriculum, []store.StoredAssignment, *Error) {
	cur, err := o.store.LatestCurriculumForSkill(ctx, skillID)
	if err != nil {
		return store.StoredCurriculum{}, nil, storeError(err, "Curriculum")
	}
	as, perr := o.assignmentsOf(ctx, skillID, cur.ID)
	if perr != nil {
		return store.StoredCurriculum{}, nil, perr
	}
	return cur, as, nil
}

func (o *Orchestrator) assignmentsOf(ctx context.Context, skillID, curriculumID string) ([]store.StoredAssignment, *Error) {
	all, err := o.store.ListAssignments(ctx, skillID)
	if err != nil {
		return nil, storeError(err, "Assignments")
	}
	out := []store.StoredAssignment{}
	for _, a := range all {
		if a.CurriculumID == curriculumID {
			out = append(out, a)
		}
	}
	return out, nil
}

// SkillDetail returns a skill owned by userID with completion overlaid on
// its latest curriculum.
func (o *Orchestrator) SkillDetail(ctx context.Context, userID, skillID string) (SkillDetail, error) {
	if perr := requireUser(userID); perr != nil {
		return SkillDetail{}, perr
	}
	sk, perr := o.ownedSkill(ctx, userID, skillID)
	if perr != nil {
		return SkillDetail{}, perr
	}
	cur, as, perr := o.progressOf(ctx, skillID)
	if perr != nil {
		return SkillDetail{}, perr
	}
	return SkillDetail{Skill: sk, Curriculum: Overlay(cur, as), Assignments: as}, nil
}

// Dashboard lists userID's skills, newest first, with completion stats.
func (o *Orchestrator) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	if perr := requireUser(userID); perr != nil {
		return Dashboard{}, perr
	}
	skills, err := o.store.ListSkills(ctx, userID)
	if err != nil {
		return Dashboard{}, storeError(err, "Skills")
	}
	if skills == nil {
		skills = []store.Skill{}
	}
	return Dashboard{Skills: skills, Stats: ComputeStats(skills)}, nil
}

// Curriculum returns a stored curriculum owned by userID.
func (o *Orchestrator) Curriculum(ctx context.Context, userID, id string) (store.StoredCurriculum, error) {
	if perr := requireUser(userID); perr != nil {
		return store.StoredCurriculum{}, perr
	}
	c, err := o.store.GetCurriculum(ctx, id)
	if err != nil {
		return store.StoredCurriculum{}, storeError(err, "Curriculum")
	}
	if c.UserID != userID {
		return store.StoredCurriculum{}, newError(Forbidden, "This curriculum belongs to another user.", nil)
	}
	return c, nil
}

// CompleteStep marks one step of the skill's latest curriculum complete,
// records a step-level assignment and recomputes progress. Completing an
// already completed step changes nothing.
func (o *Orchestrator) CompleteStep(ctx context.Context, userID, skillID string, body []byte) (store.Skill, error) {
	if perr := requireUser(userID); perr != nil {
		return store.Skill{}, perr
	}
	var req stepCompletion
	if err := curriculum.ValidateDocument(curriculum.SchemaStepCompletion, body, &req); err != nil {
		return store.Skill{}, badRequest(err)
	}

	sk, perr := o.ownedSkill(ctx, userID, skillID)
	if perr != nil {
		return store.Skill{}, perr
	}
	cur, as, perr := o.progressOf(ctx, skillID)
	if perr != nil {
		return store.Skill{}, perr
	}
	step, perr := stepAt(cur, req.ModuleIndex, req.StepIndex)
	if perr != nil {
		return store.Skill{}, perr
	}

	progress := Overlay(cur, as)
	if progress.Modules[req.ModuleIndex].Steps[req.StepIndex].Completed {
		return sk, nil
	}

	a := store.StoredAssignment{
		SkillID:      skillID,
		CurriculumID: cur.ID,
		ModuleIndex:  req.ModuleIndex,
		StepIndex:    req.StepIndex,
		Title:        step.Title,
		Description:  step.Description,
		Completed:    true,
	}
	if _, err := o.store.InsertAssignment(ctx, a); err != nil {
		return store.Skill{}, storeError(err, "Skill")
	}

	sk, perr = o.recordProgress(ctx, sk, progress.CompletedSteps+1)
	if perr != nil {
		return store.Skill{}, perr
	}

	ProgressUpdatesTotal.WithLabelValues("step_completed").Inc()
	o.logEvent(Event{UserID: userID, EventType: EventStepCompleted, Data: map[string]any{
		"skill_id":     skillID,
		"module_index": req.ModuleIndex,
		"step_index":   req.StepIndex,
	}})
	return sk, nil
}

// SubmitAssignment records a completed assignment for a module
// (stepIndex -1) or a single step, then recomputes progress.
func (o *Orchestrator) SubmitAssignment(ctx context.Context, userID, skillID string, body []byte) (Submission, error) {
	if perr := requireUser(userID); perr != nil {
		return Submission{}, perr
	}
	var req assignmentSubmission
	if err := curriculum.ValidateDocument(curriculum.SchemaAssignmentSubmission, body, &req); err != nil {
		return Submission{}, badRequest(err)
	}

	sk, perr := o.ownedSkill(ctx, userID, skillID)
	if perr != nil {
		return Submission{}, perr
	}
	cur, _, perr := o.progressOf(ctx, skillID)
	if perr != nil {
		return Submission{}, perr
	}
	if req.StepIndex == store.ModuleLevel {
		if req.ModuleIndex >= len(cur.Modules) {
			return Submission{}, newError(BadRequest, "Module index is out of range.", nil)
		}
	} else if _, perr := stepAt(cur, req.ModuleIndex, req.StepIndex); perr != nil {
		return Submission{}, perr
	}

	id, err := o.store.InsertAssignment(ctx, store.StoredAssignment{
		SkillID:      skillID,
		CurriculumID: cur.ID,
		ModuleIndex:  req.ModuleIndex,
		StepIndex:    req.StepIndex,
		Title:        req.Title,
		Description:  req.Description,
		Completed:    true,
	})
	if err != nil {
		return Submission{}, storeError(err, "Skill")
	}

	as, perr := o.assignmentsOf(ctx, skillID, cur.ID)
	if perr != nil {
		return Submission{}, perr
	}
	sk, perr = o.recordProgress(ctx, sk, Overlay(cur, as).CompletedSteps)
	if perr != nil {
		return Submission{}, perr
	}

	ProgressUpdatesTotal.WithLabelValues("assignment_submitted").Inc()
	o.logEvent(Event{UserID: userID, EventType: EventAssignmentSubmitted, Data: map[string]any{
		"skill_id":     skillID,
		"module_index": req.ModuleIndex,
		"step_index":   req.StepIndex,
	}})
	return Submission{AssignmentID: id, Skill: sk}, nil
}

// recordProgress stores completed as the skill's current step. The skill is
// complete once every step is.
func (o *Orchestrator) recordProgress(ctx context.Context, sk store.Skill, completed int) (store.Skill, *Error) {
	sk.CurrentStep = completed
	sk.Completed = sk.TotalSteps > 0 && completed >= sk.TotalSteps
	if err := o.store.UpdateSkillProgress(ctx, sk.ID, sk.CurrentStep, sk.Completed); err != nil {
		return store.Skill{}, storeError(err, "Skill")
	}
	slog.Info("skill progress updated",
		"skill_id", sk.ID,
		"current_step", sk.CurrentStep,
		"completed", sk.Completed,
	)
	return sk, nil
}

func stepAt(c store.StoredCurriculum, module, step int) (curriculum.Step, *Error) {
	if module < 0 || module >= len(c.Modules) {
		return curriculum.Step{}, newError(BadRequest, "Module index is out of range.", nil)
	}
	steps := c.Modules[module].Steps
	if step < 0 || step >= len(steps) {
		return curriculum.Step{}, newError(BadRequest, "Step index is out of range.", nil)
	}
	return steps[step], nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// SQLSTATE raised for row-level security and privilege violations.
const insufficientPrivilege = "42501"

// Save steps that abort the whole save when they fail.
const (
	StepUpsertSkill      = "upsert_skill"
	StepInsertCurriculum = "insert_curriculum"
)

// PersistError reports a failed mandatory save step.
type PersistError struct {
	Step           string
	PolicyRejected bool
	Err            error
}

func (e *PersistError) Error() string {
	if e.PolicyRejected {
		return fmt.Sprintf("%s rejected by access policy: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func newPersistError(step string, err error) *PersistError {
	return &PersistError{Step: step, PolicyRejected: IsPolicyRejection(err), Err: err}
}

// IsPolicyRejection reports whether err is a PostgreSQL privilege or
// row-level security violation.
func IsPolicyRejection(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == insufficientPrivilege
}

// NormalizeSkillName trims the name and puts it in Unicode NFC so visually
// identical names share one skill row.
func NormalizeSkillName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithAssignmentWarning registers a callback run when the advisory
// assignment insert fails.
func WithAssignmentWarning(fn func(skillID string, err error)) GatewayOption {
	return func(g *Gateway) {
		g.onAssignmentWarning = fn
	}
}

// Gateway writes an accepted curriculum in three ordered steps: upsert the
// skill, insert the curriculum, insert module assignments. The first two
// are required; the third is best effort. Earlier steps are not rolled back
// when a later one fails.
type Gateway struct {
	w                   Writer
	onAssignmentWarning func(skillID string, err error)
}

// NewGateway creates a persistence gateway over the given writer.
func NewGateway(w Writer, opts ...GatewayOption) *Gateway {
	g := &Gateway{w: w}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save persists doc for userID and returns the new curriculum id.
// Failures of the mandatory steps are returned as *PersistError.
func (g *Gateway) Save(ctx context.Context, userID string, doc curriculum.GenerationResponse) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	skillID, err := g.w.UpsertSkill(ctx, Skill{
		UserID:          userID,
		SkillName:       NormalizeSkillName(doc.Skill),
		ExperienceLevel: doc.ExperienceLevel,
		CurrentStep:     0,
		TotalSteps:      doc.Curriculum.TotalSteps(),
		Completed:       false,
	})
	if err != nil {
		return "", newPersistError(StepUpsertSkill, err)
	}

	curriculumID, err := g.w.InsertCurriculum(ctx, StoredCurriculum{
		UserID:          userID,
		SkillID:         skillID,
		Title:           doc.Curriculum.Title,
		Description:     doc.Curriculum.Description,
		Modules:         doc.Curriculum.Modules,
		ExperienceLevel: doc.ExperienceLevel,
	})
	if err != nil {
		return "", newPersistError(StepInsertCurriculum, err)
	}

	if assignments := ModuleAssignments(skillID, curriculumID, doc.Curriculum); len(assignments) > 0 {
		if err := g.w.InsertAssignments(ctx, assignments); err != nil {
			slog.Warn("assignment insert failed, curriculum saved without assignments",
				"skill_id", skillID,
				"curriculum_id", curriculumID,
				"assignments", len(assignments),
				"error", err,
			)
			if g.onAssignmentWarning != nil {
				g.onAssignmentWarning(skillID, err)
			}
		}
	}

	slog.Info("curriculum saved",
		"user_id", userID,
		"skill_id", skillID,
		"curriculum_id", curriculumID,
	)
	return curriculumID, nil
}

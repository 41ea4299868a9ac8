package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewPostgresStore(mock)
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_UpsertSkill(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO skills .* ON CONFLICT \(user_id, skill_name\) DO UPDATE`).
		WithArgs("user-1", "Rust", "beginner", 0, 3, false).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sk-1"))

	id, err := s.UpsertSkill(context.Background(), Skill{
		UserID: "user-1", SkillName: "Rust", ExperienceLevel: "beginner", TotalSteps: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSkillPolicyRejection(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO skills`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: insufficientPrivilege})

	_, err := s.UpsertSkill(context.Background(), Skill{UserID: "user-1", SkillName: "Rust"})
	require.Error(t, err)
	assert.True(t, IsPolicyRejection(err), "SQLSTATE must survive wrapping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCurriculum(t *testing.T) {
	s, mock := newMockStore(t)

	modules := []curriculum.Module{{Title: "Basics", Description: "d", Steps: []curriculum.Step{{Title: "Install", Description: "d"}}}}
	encoded, err := json.Marshal(modules)
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT INTO curricula`).
		WithArgs("user-1", "sk-1", "Rust path", "Learn Rust", encoded, "beginner").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("cur-1"))

	id, err := s.InsertCurriculum(context.Background(), StoredCurriculum{
		UserID: "user-1", SkillID: "sk-1", Title: "Rust path", Description: "Learn Rust",
		Modules: modules, ExperienceLevel: "beginner",
	})
	require.NoError(t, err)
	assert.Equal(t, "cur-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAssignmentsSingleStatement(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO assignments \(skill_id, curriculum_id, .*\) VALUES \(\$1::uuid, \$2::uuid, \$3, \$4, \$5, \$6, \$7\), \(\$8::uuid, \$9::uuid, \$10, \$11, \$12, \$13, \$14\)`).
		WithArgs(
			"sk-1", "cur-1", 0, ModuleLevel, "Build a CLI", "d", false,
			"sk-1", "cur-1", 2, ModuleLevel, "Ship it", "d", false,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := s.InsertAssignments(context.Background(), []StoredAssignment{
		{SkillID: "sk-1", CurriculumID: "cur-1", ModuleIndex: 0, StepIndex: ModuleLevel, Title: "Build a CLI", Description: "d"},
		{SkillID: "sk-1", CurriculumID: "cur-1", ModuleIndex: 2, StepIndex: ModuleLevel, Title: "Ship it", Description: "d"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAssignmentsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	require.NoError(t, s.InsertAssignments(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSkill(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM skills WHERE id = \$1::uuid`).
					WithArgs("sk-1").
					WillReturnRows(pgxmock.NewRows([]string{
						"id", "user_id", "skill_name", "experience_level", "current_step", "total_steps", "completed", "created_at",
					}).AddRow("sk-1", "user-1", "Rust", "beginner", 2, 5, false, created))
			},
		},
		{
			name: "no rows",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM skills`).
					WithArgs("sk-1").
					WillReturnRows(pgxmock.NewRows([]string{"id"}))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "malformed id",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM skills`).
					WithArgs("sk-1").
					WillReturnError(&pgconn.PgError{Code: invalidTextRepresentation})
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)

			sk, err := s.GetSkill(context.Background(), "sk-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Rust", sk.SkillName)
				assert.Equal(t, 2, sk.CurrentStep)
				assert.Equal(t, created, sk.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_UpdateSkillProgress(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"updated", 1, nil},
		{"missing", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(`UPDATE skills SET current_step = \$2, completed = \$3`).
				WithArgs("sk-1", 4, true).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := s.UpdateSkillProgress(context.Background(), "sk-1", 4, true)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_LatestCurriculumForSkill(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM curricula\s+WHERE skill_id = \$1::uuid\s+ORDER BY created_at DESC\s+LIMIT 1`).
		WithArgs("sk-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "skill_id", "title", "description", "modules", "experience_level", "created_at",
		}).AddRow("cur-2", "user-1", "sk-1", "Rust path", "Learn Rust",
			[]byte(`[{"title":"Basics","description":"d","steps":[{"title":"Install","description":"d"}]}]`),
			"beginner", created))

	c, err := s.LatestCurriculumForSkill(context.Background(), "sk-1")
	require.NoError(t, err)
	assert.Equal(t, "cur-2", c.ID)
	require.Len(t, c.Modules, 1)
	assert.Equal(t, "Install", c.Modules[0].Steps[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssignmentsQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM assignments`).
		WithArgs("sk-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.ListAssignments(context.Background(), "sk-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query assignments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

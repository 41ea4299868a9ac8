package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const dbTimeout = 5 * time.Second

// SQLSTATE for a malformed literal, raised when an id is not a UUID.
const invalidTextRepresentation = "22P02"

// isMissing treats malformed ids like absent rows.
func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

// DBTX is the subset of *pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store over a pgx pool or connection.
func NewPostgresStore(db DBTX) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UpsertSkill(ctx context.Context, sk Skill) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO skills (user_id, skill_name, experience_level, current_step, total_steps, completed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, skill_name) DO UPDATE
		 SET experience_level = EXCLUDED.experience_level,
		     current_step = EXCLUDED.current_step,
		     total_steps = EXCLUDED.total_steps,
		     completed = EXCLUDED.completed
		 RETURNING id::text`,
		sk.UserID,
		sk.SkillName,
		sk.ExperienceLevel,
		sk.CurrentStep,
		sk.TotalSteps,
		sk.Completed,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert skill: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertCurriculum(ctx context.Context, c StoredCurriculum) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	modules, err := json.Marshal(c.Modules)
	if err != nil {
		return "", fmt.Errorf("marshal modules: %w", err)
	}

	var id string
	err = s.db.QueryRow(ctx,
		`INSERT INTO curricula (user_id, skill_id, title, description, modules, experience_level)
		 VALUES ($1, $2::uuid, $3, $4, $5, $6)
		 RETURNING id::text`,
		c.UserID,
		c.SkillID,
		c.Title,
		c.Description,
		modules,
		c.ExperienceLevel,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert curriculum: %w", err)
	}
	return id, nil
}

// InsertAssignments writes all rows with a single multi-row INSERT.
func (s *PostgresStore) InsertAssignments(ctx context.Context, as []StoredAssignment) error {
	if len(as) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`INSERT INTO assignments (skill_id, curriculum_id, module_index, step_index, title, description, completed) VALUES `)
	args := make([]any, 0, len(as)*7)
	for i, a := range as {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d::uuid, $%d::uuid, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, a.SkillID, a.CurriculumID, a.ModuleIndex, a.StepIndex, a.Title, a.Description, a.Completed)
	}

	if _, err := s.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert assignments: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAssignment(ctx context.Context, a StoredAssignment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO assignments (skill_id, curriculum_id, module_index, step_index, title, description, completed)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
		 RETURNING id::text`,
		a.SkillID,
		a.CurriculumID,
		a.ModuleIndex,
		a.StepIndex,
		a.Title,
		a.Description,
		a.Completed,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert assignment: %w", err)
	}
	return id, nil
}

const skillColumns = `id::text, user_id, skill_name, experience_level, current_step, total_steps, completed, created_at`

func scanSkill(row pgx.Row) (Skill, error) {
	var sk Skill
	err := row.Scan(
		&sk.ID,
		&sk.UserID,
		&sk.SkillName,
		&sk.ExperienceLevel,
		&sk.CurrentStep,
		&sk.TotalSteps,
		&sk.Completed,
		&sk.CreatedAt,
	)
	return sk, err
}

func (s *PostgresStore) GetSkill(ctx context.Context, id string) (Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sk, err := scanSkill(s.db.QueryRow(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE id = $1::uuid`,
		id,
	))
	if isMissing(err) {
		return Skill{}, ErrNotFound
	}
	if err != nil {
		return Skill{}, fmt.Errorf("get skill: %w", err)
	}
	return sk, nil
}

func (s *PostgresStore) ListSkills(ctx context.Context, userID string) ([]Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skills: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateSkillProgress(ctx context.Context, id string, currentStep int, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE skills SET current_step = $2, completed = $3 WHERE id = $1::uuid`,
		id,
		currentStep,
		completed,
	)
	if isMissing(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update skill progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, skillID string) ([]StoredAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT id::text, skill_id::text, COALESCE(curriculum_id::text, ''), module_index, step_index, title, description, completed, created_at
		 FROM assignments
		 WHERE skill_id = $1::uuid
		 ORDER BY created_at ASC`,
		skillID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []StoredAssignment
	for rows.Next() {
		var a StoredAssignment
		if err := rows.Scan(
			&a.ID,
			&a.SkillID,
			&a.CurriculumID,
			&a.ModuleIndex,
			&a.StepIndex,
			&a.Title,
			&a.Description,
			&a.Completed,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

const curriculumColumns = `id::text, user_id, skill_id::text, title, description, modules, experience_level, created_at`

func scanCurriculum(row pgx.Row) (StoredCurriculum, error) {
	var c StoredCurriculum
	var modules []byte
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.SkillID,
		&c.Title,
		&c.Description,
		&modules,
		&c.ExperienceLevel,
		&c.CreatedAt,
	); err != nil {
		return StoredCurriculum{}, err
	}
	if err := json.Unmarshal(modules, &c.Modules); err != nil {
		return StoredCurriculum{}, fmt.Errorf("decode modules: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCurriculum(ctx context.Context, id string) (StoredCurriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCurriculum(s.db.QueryRow(ctx,
		`SELECT `+curriculumColumns+` FROM curricula WHERE id = $1::uuid`,
		id,
	))
	if isMissing(err) {
		return StoredCurriculum{}, ErrNotFound
	}
	if err != nil {
		return StoredCurriculum{}, fmt.Errorf("get curriculum: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) LatestCurriculumForSkill(ctx context.Context, skillID string) (StoredCurriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCurriculum(s.db.QueryRow(ctx,
		`SELECT `+curriculumColumns+`
		 FROM curricula
		 WHERE skill_id = $1::uuid
		 ORDER BY created_at DESC
		 LIMIT 1`,
		skillID,
	))
	if isMissing(err) {
		return StoredCurriculum{}, ErrNotFound
	}
	if err != nil {
		return StoredCurriculum{}, fmt.Errorf("latest curriculum: %w", err)
	}
	return c, nil
}

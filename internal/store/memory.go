package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests.
// The Fail* fields, when set, are returned by the matching write instead of
// performing it.
type MemoryStore struct {
	FailUpsertSkill       error
	FailInsertCurriculum  error
	FailInsertAssignments error

	mu          sync.RWMutex
	skills      map[string]*Skill
	skillKeys   map[string]string // user_id + "\x00" + skill_name -> skill id
	skillOrder  []string
	curricula   map[string]*StoredCurriculum
	curriculaOf map[string][]string // skill id -> curriculum ids, oldest first
	assignments map[string][]StoredAssignment
	writes      int
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		skills:      make(map[string]*Skill),
		skillKeys:   make(map[string]string),
		curricula:   make(map[string]*StoredCurriculum),
		curriculaOf: make(map[string][]string),
		assignments: make(map[string][]StoredAssignment),
		now:         time.Now,
	}
}

func skillKey(userID, name string) string {
	return userID + "\x00" + name
}

func (s *MemoryStore) UpsertSkill(_ context.Context, sk Skill) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpsertSkill != nil {
		return "", s.FailUpsertSkill
	}
	s.writes++

	key := skillKey(sk.UserID, sk.SkillName)
	if id, ok := s.skillKeys[key]; ok {
		existing := s.skills[id]
		existing.ExperienceLevel = sk.ExperienceLevel
		existing.CurrentStep = sk.CurrentStep
		existing.TotalSteps = sk.TotalSteps
		existing.Completed = sk.Completed
		return id, nil
	}

	sk.ID = uuid.NewString()
	sk.CreatedAt = s.now()
	s.skills[sk.ID] = &sk
	s.skillKeys[key] = sk.ID
	s.skillOrder = append(s.skillOrder, sk.ID)
	return sk.ID, nil
}

func (s *MemoryStore) InsertCurriculum(_ context.Context, c StoredCurriculum) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsertCurriculum != nil {
		return "", s.FailInsertCurriculum
	}
	if _, ok := s.skills[c.SkillID]; !ok {
		return "", fmt.Errorf("insert curriculum: skill %s does not exist", c.SkillID)
	}
	s.writes++

	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	s.curricula[c.ID] = &c
	s.curriculaOf[c.SkillID] = append(s.curriculaOf[c.SkillID], c.ID)
	return c.ID, nil
}

func (s *MemoryStore) InsertAssignments(_ context.Context, as []StoredAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsertAssignments != nil {
		return s.FailInsertAssignments
	}
	for _, a := range as {
		if _, ok := s.skills[a.SkillID]; !ok {
			return fmt.Errorf("insert assignments: skill %s does not exist", a.SkillID)
		}
	}
	s.writes++

	for _, a := range as {
		s.appendAssignment(a)
	}
	return nil
}

func (s *MemoryStore) InsertAssignment(_ context.Context, a StoredAssignment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInsertAssignments != nil {
		return "", s.FailInsertAssignments
	}
	if _, ok := s.skills[a.SkillID]; !ok {
		return "", fmt.Errorf("insert assignment: skill %s does not exist", a.SkillID)
	}
	s.writes++
	return s.appendAssignment(a), nil
}

func (s *MemoryStore) appendAssignment(a StoredAssignment) string {
	a.ID = uuid.NewString()
	a.CreatedAt = s.now()
	s.assignments[a.SkillID] = append(s.assignments[a.SkillID], a)
	return a.ID
}

func (s *MemoryStore) GetSkill(_ context.Context, id string) (Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sk, ok := s.skills[id]
	if !ok {
		return Skill{}, ErrNotFound
	}
	return *sk, nil
}

// ListSkills returns the user's skills, newest first.
func (s *MemoryStore) ListSkills(_ context.Context, userID string) ([]Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Skill
	for i := len(s.skillOrder) - 1; i >= 0; i-- {
		sk := s.skills[s.skillOrder[i]]
		if sk.UserID == userID {
			out = append(out, *sk)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateSkillProgress(_ context.Context, id string, currentStep int, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk, ok := s.skills[id]
	if !ok {
		return ErrNotFound
	}
	s.writes++
	sk.CurrentStep = currentStep
	sk.Completed = completed
	return nil
}

func (s *MemoryStore) ListAssignments(_ context.Context, skillID string) ([]StoredAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	as := s.assignments[skillID]
	out := make([]StoredAssignment, len(as))
	copy(out, as)
	return out, nil
}

func (s *MemoryStore) GetCurriculum(_ context.Context, id string) (StoredCurriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.curricula[id]
	if !ok {
		return StoredCurriculum{}, ErrNotFound
	}
	return *c, nil
}

func (s *MemoryStore) LatestCurriculumForSkill(_ context.Context, skillID string) (StoredCurriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.curriculaOf[skillID]
	if len(ids) == 0 {
		return StoredCurriculum{}, ErrNotFound
	}
	return *s.curricula[ids[len(ids)-1]], nil
}

// CountSkills returns the number of skill rows.
func (s *MemoryStore) CountSkills() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.skills)
}

// CurriculaForSkill returns the ids of every curriculum saved for a skill,
// oldest first.
func (s *MemoryStore) CurriculaForSkill(skillID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.curriculaOf[skillID]...)
}

// Writes returns the number of successful write calls.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

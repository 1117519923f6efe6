package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

// MemoryStore is an in-memory implementation of Store. It enforces the same
// keys and references as the PostgreSQL schema.
type MemoryStore struct {
	mu           sync.RWMutex
	modules      []curriculum.Module
	nextModuleID int
	topics       map[string]curriculum.Topic
	questions    []curriculum.QuizQuestion
	progress     map[progressKey]curriculum.ProgressRecord
	now          func() time.Time
}

type progressKey struct {
	email   string
	topicID string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		topics:   make(map[string]curriculum.Topic),
		progress: make(map[progressKey]curriculum.ProgressRecord),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for created_at and updated_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) ListModules(_ context.Context) ([]curriculum.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]curriculum.Module, len(s.modules))
	copy(out, s.modules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (s *MemoryStore) InsertModule(_ context.Context, m curriculum.Module) (curriculum.Module, error) {
	if !m.Subject.Valid() {
		return curriculum.Module{}, fmt.Errorf("insert module: unknown subject %q", m.Subject)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextModuleID++
	m.ID = s.nextModuleID
	s.modules = append(s.modules, m)
	return m, nil
}

func (s *MemoryStore) ListTopics(_ context.Context) ([]curriculum.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]curriculum.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, copyTopic(t))
	}
	return out, nil
}

func (s *MemoryStore) ListTopicsByModule(_ context.Context, moduleID int) ([]curriculum.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []curriculum.Topic{}
	for _, t := range s.topics {
		if t.ModuleID == moduleID {
			out = append(out, copyTopic(t))
		}
	}
	curriculum.SortTopics(out)
	return out, nil
}

func (s *MemoryStore) InsertTopic(_ context.Context, t curriculum.Topic) (curriculum.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.topics[t.ID]; exists {
		return curriculum.Topic{}, fmt.Errorf("insert topic %s: %w", t.ID, ErrConflict)
	}
	if !s.hasModule(t.ModuleID) {
		return curriculum.Topic{}, fmt.Errorf("insert topic %s: module %d: %w", t.ID, t.ModuleID, ErrInvalidReference)
	}
	s.topics[t.ID] = copyTopic(t)
	return t, nil
}

func (s *MemoryStore) ListQuestions(_ context.Context, topicID string) ([]curriculum.QuizQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []curriculum.QuizQuestion{}
	for _, q := range s.questions {
		if q.TopicID == topicID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecentQuestions(_ context.Context, limit int) ([]curriculum.QuizQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []curriculum.QuizQuestion{}
	for i := len(s.questions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.questions[i])
	}
	return out, nil
}

func (s *MemoryStore) InsertQuestion(_ context.Context, q curriculum.QuizQuestion) (curriculum.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[q.TopicID]; !ok {
		return curriculum.QuizQuestion{}, fmt.Errorf("insert question: topic %s: %w", q.TopicID, ErrInvalidReference)
	}
	if !q.CorrectAnswer.Valid() {
		return curriculum.QuizQuestion{}, fmt.Errorf("insert question: invalid correct answer %q", q.CorrectAnswer)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	for _, existing := range s.questions {
		if existing.ID == q.ID {
			return curriculum.QuizQuestion{}, fmt.Errorf("insert question %s: %w", q.ID, ErrConflict)
		}
	}
	q.CreatedAt = s.now()
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *MemoryStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, q := range s.questions {
		if q.ID == id {
			s.questions = append(s.questions[:i:i], s.questions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("question %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListProgress(_ context.Context, studentEmail string) ([]curriculum.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []curriculum.ProgressRecord{}
	for k, rec := range s.progress {
		if k.email == studentEmail {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

func (s *MemoryStore) GetProgress(_ context.Context, studentEmail, topicID string) (curriculum.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.progress[progressKey{studentEmail, topicID}]
	if !ok {
		return curriculum.ProgressRecord{}, fmt.Errorf("progress %s/%s: %w", studentEmail, topicID, ErrNotFound)
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) UpsertProgress(_ context.Context, p curriculum.ProgressPatch) (curriculum.ProgressRecord, error) {
	if p.StudentEmail == "" || p.TopicID == "" {
		return curriculum.ProgressRecord{}, fmt.Errorf("upsert progress: student_email and topic_id are required")
	}
	if p.Status != nil && !p.Status.Valid() {
		return curriculum.ProgressRecord{}, fmt.Errorf("upsert progress: invalid status %q", *p.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[p.TopicID]; !ok {
		return curriculum.ProgressRecord{}, fmt.Errorf("upsert progress: topic %s: %w", p.TopicID, ErrInvalidReference)
	}

	key := progressKey{p.StudentEmail, p.TopicID}
	var existing *curriculum.ProgressRecord
	if rec, ok := s.progress[key]; ok {
		existing = &rec
	}
	rec := p.Apply(existing, s.now())
	s.progress[key] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) RecentResults(_ context.Context, limit int) ([]curriculum.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make(map[int]curriculum.Subject, len(s.modules))
	for _, m := range s.modules {
		subjects[m.ID] = m.Subject
	}

	out := []curriculum.Result{}
	for _, rec := range s.progress {
		t := s.topics[rec.TopicID]
		r := curriculum.Result{
			StudentEmail: rec.StudentEmail,
			TopicID:      rec.TopicID,
			TopicTitle:   t.Title,
			Subject:      subjects[t.ModuleID],
			Status:       rec.Status,
			UpdatedAt:    rec.UpdatedAt,
		}
		if rec.Score != nil {
			r.Score = *rec.Score
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		if out[i].StudentEmail != out[j].StudentEmail {
			return out[i].StudentEmail < out[j].StudentEmail
		}
		return out[i].TopicID < out[j].TopicID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListStudents(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := []string{}
	for k := range s.progress {
		if !seen[k.email] {
			seen[k.email] = true
			out = append(out, k.email)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

func (s *MemoryStore) hasModule(id int) bool {
	for _, m := range s.modules {
		if m.ID == id {
			return true
		}
	}
	return false
}

func copyTopic(t curriculum.Topic) curriculum.Topic {
	if t.LearningObjectives != nil {
		t.LearningObjectives = append([]string(nil), t.LearningObjectives...)
	}
	return t
}

func copyRecord(rec curriculum.ProgressRecord) curriculum.ProgressRecord {
	h := make(map[string]curriculum.Option, len(rec.History))
	for k, v := range rec.History {
		h[k] = v
	}
	rec.History = h
	if rec.Score != nil {
		s := *rec.Score
		rec.Score = &s
	}
	return rec
}

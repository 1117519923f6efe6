package quiz

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/identity"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

// ErrNotSaved is returned when a finished attempt could not be persisted.
// Calling Next again retries the save.
var ErrNotSaved = errors.New("quiz result not saved")

const lockShards = 64

// Store is the subset of the data store the quiz needs.
type Store interface {
	ListQuestions(ctx context.Context, topicID string) ([]curriculum.QuizQuestion, error)
	GetProgress(ctx context.Context, studentEmail, topicID string) (curriculum.ProgressRecord, error)
	UpsertProgress(ctx context.Context, p curriculum.ProgressPatch) (curriculum.ProgressRecord, error)
}

// ServiceConfig holds dependencies for the quiz service.
type ServiceConfig struct {
	Store    Store
	Sessions SessionStore
	Attempts AttemptLog // defaults to NopAttemptLog
	Shuffle  Shuffler   // defaults to rand.Shuffle
	Now      func() time.Time
	NewID    func() string
}

// Service runs quiz sessions on behalf of students.
type Service struct {
	store    Store
	sessions SessionStore
	attempts AttemptLog
	shuffle  Shuffler
	now      func() time.Time
	newID    func() string

	locks [lockShards]sync.Mutex
}

// NewService creates a quiz service.
func NewService(cfg ServiceConfig) *Service {
	attempts := cfg.Attempts
	if attempts == nil {
		attempts = NopAttemptLog{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		attempts: attempts,
		shuffle:  cfg.Shuffle,
		now:      now,
		newID:    newID,
	}
}

// Start opens a new attempt on a topic. A topic without questions yields
// ErrNoQuestions and no session is stored.
func (s *Service) Start(ctx context.Context, student, topicID string) (*Session, error) {
	questions, err := s.store.ListQuestions(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	student = identity.NormalizeEmail(student)
	sess := NewSession(s.newID(), student, topicID, s.now())
	if err := sess.Begin(questions, s.shuffle); err != nil {
		return sess, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	slog.Info("quiz started",
		"session_id", sess.ID,
		"student", student,
		"topic_id", topicID,
		"questions", sess.Total(),
	)
	return sess, nil
}

// Get returns a session owned by student.
func (s *Service) Get(ctx context.Context, student, id string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.NormalizeEmail(sess.StudentEmail) != identity.NormalizeEmail(student) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Abandon discards a session owned by student. Nothing is saved for it.
func (s *Service) Abandon(ctx context.Context, student, id string) error {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.Get(ctx, student, id)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("quiz abandoned", "session_id", id, "student", sess.StudentEmail, "topic_id", sess.TopicID)
	return nil
}

// Answer records option for the current question of a session.
func (s *Service) Answer(ctx context.Context, student, id string, option curriculum.Option) (*Session, Feedback, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.Get(ctx, student, id)
	if err != nil {
		return nil, Feedback{}, err
	}
	wasAnswered := sess.Answered
	fb, err := sess.Answer(option)
	if err != nil {
		return sess, Feedback{}, err
	}
	if !wasAnswered {
		if err := s.sessions.Put(ctx, sess); err != nil {
			return nil, Feedback{}, err
		}
	}
	return sess, fb, nil
}

// Result is what Next reports back.
type Result struct {
	Session *Session
	// Record is the stored progress row, set when this call saved the attempt.
	Record *curriculum.ProgressRecord
}

// Next advances a session. Finishing persists the outcome as a progress
// upsert and appends it to the attempt log. If the upsert fails the session
// stays finished but unsaved, and a later Next retries.
func (s *Service) Next(ctx context.Context, student, id string) (Result, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.Get(ctx, student, id)
	if err != nil {
		return Result{}, err
	}
	if err := sess.Next(s.now()); err != nil {
		return Result{Session: sess}, err
	}

	var rec *curriculum.ProgressRecord
	var saveErr error
	if sess.State == StateFinished && !sess.Saved {
		rec, saveErr = s.finalize(ctx, sess)
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Result{}, err
	}
	if saveErr != nil {
		return Result{Session: sess}, saveErr
	}
	return Result{Session: sess, Record: rec}, nil
}

func (s *Service) finalize(ctx context.Context, sess *Session) (*curriculum.ProgressRecord, error) {
	outcome := sess.Outcome()
	rec, err := s.store.UpsertProgress(ctx, outcome.Patch(sess.StudentEmail, sess.TopicID))
	if err != nil {
		slog.Error("quiz result upsert failed",
			"session_id", sess.ID,
			"student", sess.StudentEmail,
			"topic_id", sess.TopicID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrNotSaved, err)
	}
	sess.Saved = true

	if err := s.attempts.LogAttempt(ctx, Attempt{
		SessionID:    sess.ID,
		StudentEmail: sess.StudentEmail,
		TopicID:      sess.TopicID,
		Outcome:      outcome,
		FinishedAt:   sess.FinishedAt,
	}); err != nil {
		slog.Warn("quiz attempt not logged", "session_id", sess.ID, "error", err)
	}

	slog.Info("quiz finished",
		"session_id", sess.ID,
		"student", sess.StudentEmail,
		"topic_id", sess.TopicID,
		"percentage", outcome.Percentage,
		"passed", outcome.Passed,
	)
	return &rec, nil
}

// Review replays the stored attempt of a topic. A student who never took the
// quiz gets every question marked skipped.
func (s *Service) Review(ctx context.Context, student, topicID string) (Review, error) {
	questions, err := s.store.ListQuestions(ctx, topicID)
	if err != nil {
		return Review{}, fmt.Errorf("load questions: %w", err)
	}

	rec, err := s.store.GetProgress(ctx, student, topicID)
	if errors.Is(err, store.ErrNotFound) {
		rec = curriculum.ProgressRecord{
			StudentEmail: student,
			TopicID:      topicID,
			Status:       curriculum.DefaultStatus,
		}
	} else if err != nil {
		return Review{}, fmt.Errorf("load progress: %w", err)
	}
	return newReview(topicID, rec, questions), nil
}

func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%lockShards]
	mu.Lock()
	return mu.Unlock
}

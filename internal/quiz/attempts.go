package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// Attempt is one finished quiz, appended to the quiz_attempts table. The
// progress row only keeps the latest attempt.
type Attempt struct {
	SessionID    string
	StudentEmail string
	TopicID      string
	Outcome      Outcome
	FinishedAt   time.Time
}

// AttemptLog records finished attempts.
type AttemptLog interface {
	LogAttempt(ctx context.Context, a Attempt) error
}

// NopAttemptLog discards all attempts.
type NopAttemptLog struct{}

func (NopAttemptLog) LogAttempt(context.Context, Attempt) error {
	return nil
}

// MemoryAttemptLog stores attempts in memory for tests.
type MemoryAttemptLog struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewMemoryAttemptLog() *MemoryAttemptLog {
	return &MemoryAttemptLog{
		attempts: []Attempt{},
	}
}

func (l *MemoryAttemptLog) LogAttempt(_ context.Context, a Attempt) error {
	if a.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = time.Now()
	}

	l.mu.Lock()
	l.attempts = append(l.attempts, a)
	l.mu.Unlock()

	return nil
}

func (l *MemoryAttemptLog) Attempts() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Attempt{}, l.attempts...)
}

// PostgresAttemptLog inserts attempts into quiz_attempts.
type PostgresAttemptLog struct {
	pool *pgxpool.Pool
}

func NewPostgresAttemptLog(pool *pgxpool.Pool) *PostgresAttemptLog {
	return &PostgresAttemptLog{pool: pool}
}

func (l *PostgresAttemptLog) LogAttempt(ctx context.Context, a Attempt) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("attempt log pool is nil")
	}
	if a.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	history := a.Outcome.History
	if history == nil {
		history = map[string]curriculum.Option{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal attempt history: %w", err)
	}

	finishedAt := a.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (session_id, student_email, topic_id, correct, total, percentage, passed, history, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
		a.SessionID,
		a.StudentEmail,
		a.TopicID,
		a.Outcome.Correct,
		a.Outcome.Total,
		a.Outcome.Percentage,
		a.Outcome.Passed,
		string(data),
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	slog.Debug("quiz attempt logged",
		"session_id", a.SessionID,
		"student", a.StudentEmail,
		"topic_id", a.TopicID,
		"percentage", a.Outcome.Percentage,
	)
	return nil
}

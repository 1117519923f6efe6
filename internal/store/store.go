// Package store is the tabular data store adapter: modules, topics, quiz
// questions and progress records, with in-memory and PostgreSQL backends.
package store

import (
	"context"
	"errors"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

var (
	// ErrNotFound is returned when a keyed lookup or delete matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert collides with an existing key.
	ErrConflict = errors.New("already exists")
	// ErrInvalidReference is returned when a row points at a missing parent.
	ErrInvalidReference = errors.New("invalid reference")
)

// CurriculumReader reads the static curriculum tables.
type CurriculumReader interface {
	// ListModules returns every module ordered by order_index.
	ListModules(ctx context.Context) ([]curriculum.Module, error)
	// ListTopics returns every topic, unordered.
	ListTopics(ctx context.Context) ([]curriculum.Topic, error)
	// ListTopicsByModule returns the topics of one module in numeric id order.
	ListTopicsByModule(ctx context.Context, moduleID int) ([]curriculum.Topic, error)
}

// CurriculumWriter inserts curriculum rows.
type CurriculumWriter interface {
	InsertModule(ctx context.Context, m curriculum.Module) (curriculum.Module, error)
	InsertTopic(ctx context.Context, t curriculum.Topic) (curriculum.Topic, error)
}

// QuestionStore reads and writes quiz questions.
type QuestionStore interface {
	// ListQuestions returns a topic's questions in creation order.
	ListQuestions(ctx context.Context, topicID string) ([]curriculum.QuizQuestion, error)
	// RecentQuestions returns the newest questions across all topics. A limit
	// of zero returns all of them.
	RecentQuestions(ctx context.Context, limit int) ([]curriculum.QuizQuestion, error)
	InsertQuestion(ctx context.Context, q curriculum.QuizQuestion) (curriculum.QuizQuestion, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// ProgressStore reads and upserts per-student progress.
type ProgressStore interface {
	ListProgress(ctx context.Context, studentEmail string) ([]curriculum.ProgressRecord, error)
	GetProgress(ctx context.Context, studentEmail, topicID string) (curriculum.ProgressRecord, error)
	// UpsertProgress inserts or updates the row keyed by (student_email, topic_id)
	// and returns the stored row.
	UpsertProgress(ctx context.Context, p curriculum.ProgressPatch) (curriculum.ProgressRecord, error)
	// RecentResults returns the most recently updated progress rows joined
	// with topics. A limit of zero returns every row.
	RecentResults(ctx context.Context, limit int) ([]curriculum.Result, error)
	// ListStudents returns the distinct student identities present in progress.
	ListStudents(ctx context.Context) ([]string, error)
}

// Store is the full data store surface.
type Store interface {
	CurriculumReader
	CurriculumWriter
	QuestionStore
	ProgressStore
	HealthCheck(ctx context.Context) error
}

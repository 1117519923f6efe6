package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// PostgreSQL error codes mapped to store sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ListModules(ctx context.Context) ([]curriculum.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, order_index, subject
		 FROM modules
		 ORDER BY order_index ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	out := []curriculum.Module{}
	for rows.Next() {
		var m curriculum.Module
		var subject string
		if err := rows.Scan(&m.ID, &m.Title, &m.OrderIndex, &subject); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		m.Subject = curriculum.Subject(subject)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertModule(ctx context.Context, m curriculum.Module) (curriculum.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO modules (title, order_index, subject)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		m.Title,
		m.OrderIndex,
		string(m.Subject),
	).Scan(&m.ID)
	if err != nil {
		return curriculum.Module{}, fmt.Errorf("insert module: %w", classify(err))
	}
	return m, nil
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]curriculum.Topic, error) {
	return s.queryTopics(ctx,
		`SELECT id, module_id, title, has_video, has_questions, learning_objectives
		 FROM topics`,
	)
}

// ListTopicsByModule sorts in Go: ORDER BY id would put 1.10 before 1.2.
func (s *PostgresStore) ListTopicsByModule(ctx context.Context, moduleID int) ([]curriculum.Topic, error) {
	topics, err := s.queryTopics(ctx,
		`SELECT id, module_id, title, has_video, has_questions, learning_objectives
		 FROM topics
		 WHERE module_id = $1`,
		moduleID,
	)
	if err != nil {
		return nil, err
	}
	curriculum.SortTopics(topics)
	return topics, nil
}

func (s *PostgresStore) queryTopics(ctx context.Context, query string, args ...any) ([]curriculum.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	out := []curriculum.Topic{}
	for rows.Next() {
		var t curriculum.Topic
		var objectives []byte
		if err := rows.Scan(&t.ID, &t.ModuleID, &t.Title, &t.HasVideo, &t.HasQuestions, &objectives); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if len(objectives) > 0 {
			if err := json.Unmarshal(objectives, &t.LearningObjectives); err != nil {
				return nil, fmt.Errorf("decode learning objectives of %s: %w", t.ID, err)
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertTopic(ctx context.Context, t curriculum.Topic) (curriculum.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var objectives any
	if t.LearningObjectives != nil {
		b, err := json.Marshal(t.LearningObjectives)
		if err != nil {
			return curriculum.Topic{}, fmt.Errorf("encode learning objectives: %w", err)
		}
		objectives = string(b)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO topics (id, module_id, title, has_video, has_questions, learning_objectives)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		t.ID,
		t.ModuleID,
		t.Title,
		t.HasVideo,
		t.HasQuestions,
		objectives,
	)
	if err != nil {
		return curriculum.Topic{}, fmt.Errorf("insert topic %s: %w", t.ID, classify(err))
	}
	return t, nil
}

const questionColumns = `id, topic_id, question, image_url, option_a, option_b, option_c, option_d, correct_answer, explanation, created_at`

func (s *PostgresStore) ListQuestions(ctx context.Context, topicID string) ([]curriculum.QuizQuestion, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+`
		 FROM quiz_questions
		 WHERE topic_id = $1
		 ORDER BY created_at ASC, id ASC`,
		topicID,
	)
}

func (s *PostgresStore) RecentQuestions(ctx context.Context, limit int) ([]curriculum.QuizQuestion, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+`
		 FROM quiz_questions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		nullIfZero(limit),
	)
}

func (s *PostgresStore) queryQuestions(ctx context.Context, query string, args ...any) ([]curriculum.QuizQuestion, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := []curriculum.QuizQuestion{}
	for rows.Next() {
		var q curriculum.QuizQuestion
		var imageURL, explanation *string
		var correct string
		if err := rows.Scan(
			&q.ID,
			&q.TopicID,
			&q.Question,
			&imageURL,
			&q.OptionA,
			&q.OptionB,
			&q.OptionC,
			&q.OptionD,
			&correct,
			&explanation,
			&q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if imageURL != nil {
			q.ImageURL = *imageURL
		}
		if explanation != nil {
			q.Explanation = *explanation
		}
		q.CorrectAnswer = curriculum.Option(correct)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertQuestion(ctx context.Context, q curriculum.QuizQuestion) (curriculum.QuizQuestion, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_questions (id, topic_id, question, image_url, option_a, option_b, option_c, option_d, correct_answer, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		q.ID,
		q.TopicID,
		q.Question,
		nullIfEmpty(q.ImageURL),
		q.OptionA,
		q.OptionB,
		q.OptionC,
		q.OptionD,
		string(q.CorrectAnswer),
		nullIfEmpty(q.Explanation),
	).Scan(&q.CreatedAt)
	if err != nil {
		return curriculum.QuizQuestion{}, fmt.Errorf("insert question: %w", classify(err))
	}
	return q, nil
}

func (s *PostgresStore) DeleteQuestion(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

const progressColumns = `student_email, topic_id, status, confidence, is_assigned, score, history, updated_at`

func (s *PostgresStore) ListProgress(ctx context.Context, studentEmail string) ([]curriculum.ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+progressColumns+`
		 FROM progress
		 WHERE student_email = $1
		 ORDER BY topic_id ASC`,
		studentEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []curriculum.ProgressRecord{}
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, studentEmail, topicID string) (curriculum.ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+progressColumns+`
		 FROM progress
		 WHERE student_email = $1 AND topic_id = $2`,
		studentEmail,
		topicID,
	)
	rec, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return curriculum.ProgressRecord{}, fmt.Errorf("progress %s/%s: %w", studentEmail, topicID, ErrNotFound)
	}
	return rec, err
}

// UpsertProgress writes only the non-nil fields of p. On insert the column
// defaults fill the rest; on conflict the existing values are kept.
func (s *PostgresStore) UpsertProgress(ctx context.Context, p curriculum.ProgressPatch) (curriculum.ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if p.StudentEmail == "" || p.TopicID == "" {
		return curriculum.ProgressRecord{}, fmt.Errorf("upsert progress: student_email and topic_id are required")
	}

	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	var history any
	if p.History != nil {
		b, err := json.Marshal(p.History)
		if err != nil {
			return curriculum.ProgressRecord{}, fmt.Errorf("encode history: %w", err)
		}
		history = string(b)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO progress (student_email, topic_id, status, confidence, is_assigned, score, history, updated_at)
		 VALUES ($1, $2,
		         COALESCE($3::text, 'todo'),
		         COALESCE($4::int, 0),
		         COALESCE($5::boolean, FALSE),
		         $6::int,
		         COALESCE($7::jsonb, '{}'::jsonb),
		         NOW())
		 ON CONFLICT (student_email, topic_id) DO UPDATE SET
		   status      = COALESCE($3::text, progress.status),
		   confidence  = COALESCE($4::int, progress.confidence),
		   is_assigned = COALESCE($5::boolean, progress.is_assigned),
		   score       = COALESCE($6::int, progress.score),
		   history     = COALESCE($7::jsonb, progress.history),
		   updated_at  = NOW()
		 RETURNING `+progressColumns,
		p.StudentEmail,
		p.TopicID,
		status,
		p.Confidence,
		p.IsAssigned,
		p.Score,
		history,
	)
	rec, err := scanProgress(row)
	if err != nil {
		return curriculum.ProgressRecord{}, fmt.Errorf("upsert progress: %w", classify(err))
	}
	return rec, nil
}

func (s *PostgresStore) RecentResults(ctx context.Context, limit int) ([]curriculum.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT p.student_email, p.topic_id, t.title, COALESCE(m.subject, ''), p.status, COALESCE(p.score, 0), p.updated_at
		 FROM progress p
		 JOIN topics t ON t.id = p.topic_id
		 LEFT JOIN modules m ON m.id = t.module_id
		 ORDER BY p.updated_at DESC, p.student_email ASC, p.topic_id ASC
		 LIMIT $1`,
		nullIfZero(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := []curriculum.Result{}
	for rows.Next() {
		var r curriculum.Result
		var subject, status string
		if err := rows.Scan(&r.StudentEmail, &r.TopicID, &r.TopicTitle, &subject, &status, &r.Score, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Subject = curriculum.Subject(subject)
		r.Status = curriculum.Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListStudents(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT student_email FROM progress ORDER BY student_email ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanProgress(row pgx.Row) (curriculum.ProgressRecord, error) {
	var rec curriculum.ProgressRecord
	var status string
	var history []byte
	if err := row.Scan(
		&rec.StudentEmail,
		&rec.TopicID,
		&status,
		&rec.Confidence,
		&rec.IsAssigned,
		&rec.Score,
		&history,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, pgx.ErrNoRows
		}
		return rec, fmt.Errorf("scan progress: %w", err)
	}
	rec.Status = curriculum.Status(status)
	rec.History = map[string]curriculum.Option{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return rec, fmt.Errorf("decode history: %w", err)
		}
	}
	return rec, nil
}

// classify maps constraint violations onto store sentinels.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInvalidReference)
		}
	}
	return err
}

// nullIfZero turns a non-positive limit into LIMIT NULL, which is unbounded.
func nullIfZero(v int) any {
	if v <= 0 {
		return nil
	}
	return v
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

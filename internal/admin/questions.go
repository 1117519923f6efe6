package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

// questionImportSchema describes a bulk import payload: an array of questions.
const questionImportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["topic_id", "question", "option_a", "option_b", "option_c", "option_d", "correct_answer"],
    "properties": {
      "id":             {"type": "string"},
      "topic_id":       {"type": "string", "pattern": "\\S"},
      "question":       {"type": "string", "pattern": "\\S"},
      "image_url":      {"type": "string"},
      "option_a":       {"type": "string", "pattern": "\\S"},
      "option_b":       {"type": "string", "pattern": "\\S"},
      "option_c":       {"type": "string", "pattern": "\\S"},
      "option_d":       {"type": "string", "pattern": "\\S"},
      "correct_answer": {"type": "string", "enum": ["a", "b", "c", "d"]},
      "explanation":    {"type": "string"}
    },
    "additionalProperties": false
  }
}`

// Questions lists a topic's questions in creation order.
func (s *Service) Questions(ctx context.Context, topicID string) ([]curriculum.QuizQuestion, error) {
	return s.store.ListQuestions(ctx, topicID)
}

// RecentQuestions lists the newest questions across all topics.
func (s *Service) RecentQuestions(ctx context.Context) ([]curriculum.QuizQuestion, error) {
	return s.store.RecentQuestions(ctx, recentQuestionLimit)
}

// AddQuestion validates and inserts a single question.
func (s *Service) AddQuestion(ctx context.Context, q curriculum.QuizQuestion) (curriculum.QuizQuestion, error) {
	q = trimQuestion(q)
	if err := validateQuestion(q); err != nil {
		return curriculum.QuizQuestion{}, err
	}
	out, err := s.store.InsertQuestion(ctx, q)
	if err != nil {
		return curriculum.QuizQuestion{}, err
	}
	slog.Info("question added", "question_id", out.ID, "topic_id", out.TopicID)
	return out, nil
}

// DeleteQuestion removes a question by id.
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	slog.Info("question deleted", "question_id", id)
	return nil
}

// RowError is a per-row failure of a bulk import.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarises a bulk import.
type ImportReport struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
}

// ValidationError lists schema violations of an import payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ImportQuestions validates payload against the import schema and, only if
// every row is valid, inserts the rows one by one. Insert failures are
// reported per row and do not stop the import.
func (s *Service) ImportQuestions(ctx context.Context, payload []byte) (ImportReport, error) {
	result, err := s.importSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return ImportReport{}, &ValidationError{Problems: problems}
	}

	var rows []curriculum.QuizQuestion
	if err := json.Unmarshal(payload, &rows); err != nil {
		return ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	report := ImportReport{Errors: []RowError{}}
	for i, q := range rows {
		q = trimQuestion(q)
		// Unicode spaces pass the schema pattern but trim away to nothing.
		if err := validateQuestion(q); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		if _, err := s.store.InsertQuestion(ctx, q); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		report.Imported++
	}

	slog.Info("questions imported", "imported", report.Imported, "failed", report.Failed)
	return report, nil
}

func trimQuestion(q curriculum.QuizQuestion) curriculum.QuizQuestion {
	q.TopicID = strings.TrimSpace(q.TopicID)
	q.Question = strings.TrimSpace(q.Question)
	q.ImageURL = strings.TrimSpace(q.ImageURL)
	q.OptionA = strings.TrimSpace(q.OptionA)
	q.OptionB = strings.TrimSpace(q.OptionB)
	q.OptionC = strings.TrimSpace(q.OptionC)
	q.OptionD = strings.TrimSpace(q.OptionD)
	q.CorrectAnswer = curriculum.Option(strings.ToLower(strings.TrimSpace(string(q.CorrectAnswer))))
	q.Explanation = strings.TrimSpace(q.Explanation)
	return q
}

func validateQuestion(q curriculum.QuizQuestion) error {
	var missing []string
	if q.TopicID == "" {
		missing = append(missing, "topic_id")
	}
	if q.Question == "" {
		missing = append(missing, "question")
	}
	for _, o := range curriculum.Options {
		if q.OptionText(o) == "" {
			missing = append(missing, "option_"+string(o))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !q.CorrectAnswer.Valid() {
		return fmt.Errorf("%w: correct_answer must be one of a, b, c, d", ErrInvalidInput)
	}
	return nil
}

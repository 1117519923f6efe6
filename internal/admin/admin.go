// Package admin implements the admin console: curriculum editing, the
// question factory, per-student assignment management and the gradebook.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

// ErrInvalidInput is returned when a submitted record fails validation.
var ErrInvalidInput = errors.New("invalid input")

const recentQuestionLimit = 10

// Service runs admin mutations against the data store.
type Service struct {
	store        store.Store
	importSchema *gojsonschema.Schema
}

// NewService creates an admin service.
func NewService(st store.Store) (*Service, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(questionImportSchema))
	if err != nil {
		return nil, fmt.Errorf("compile question import schema: %w", err)
	}
	return &Service{store: st, importSchema: schema}, nil
}

// Curriculum returns every module with its sorted topics and no progress.
func (s *Service) Curriculum(ctx context.Context) ([]curriculum.ModuleView, error) {
	modules, err := s.store.ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return curriculum.Merge(modules, topics, nil), nil
}

// ModuleTopics lists one module's topics in numeric order.
func (s *Service) ModuleTopics(ctx context.Context, moduleID int) ([]curriculum.Topic, error) {
	if moduleID <= 0 {
		return nil, fmt.Errorf("%w: module id must be positive", ErrInvalidInput)
	}
	topics, err := s.store.ListTopicsByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list module topics: %w", err)
	}
	return topics, nil
}

// ModuleInput is a new module from the curriculum editor.
type ModuleInput struct {
	Title   string             `json:"title"`
	Subject curriculum.Subject `json:"subject"`
}

// AddModule appends a module after the existing ones.
func (s *Service) AddModule(ctx context.Context, in ModuleInput) (curriculum.Module, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return curriculum.Module{}, fmt.Errorf("%w: module title is required", ErrInvalidInput)
	}
	if !in.Subject.Valid() {
		return curriculum.Module{}, fmt.Errorf("%w: unknown subject %q", ErrInvalidInput, in.Subject)
	}

	existing, err := s.store.ListModules(ctx)
	if err != nil {
		return curriculum.Module{}, fmt.Errorf("list modules: %w", err)
	}

	m, err := s.store.InsertModule(ctx, curriculum.Module{
		Title:      title,
		OrderIndex: len(existing) + 1,
		Subject:    in.Subject,
	})
	if err != nil {
		return curriculum.Module{}, err
	}
	slog.Info("module added", "module_id", m.ID, "title", m.Title, "subject", m.Subject)
	return m, nil
}

// TopicInput is a new topic from the curriculum editor. Nil flags default to true.
type TopicInput struct {
	ID                 string   `json:"id"`
	ModuleID           int      `json:"module_id"`
	Title              string   `json:"title"`
	HasVideo           *bool    `json:"has_video"`
	HasQuestions       *bool    `json:"has_questions"`
	LearningObjectives []string `json:"learning_objectives"`
}

// AddTopic inserts a topic into an existing module.
func (s *Service) AddTopic(ctx context.Context, in TopicInput) (curriculum.Topic, error) {
	id := strings.TrimSpace(in.ID)
	title := strings.TrimSpace(in.Title)
	if id == "" || title == "" {
		return curriculum.Topic{}, fmt.Errorf("%w: topic id and title are required", ErrInvalidInput)
	}
	if in.ModuleID <= 0 {
		return curriculum.Topic{}, fmt.Errorf("%w: module_id is required", ErrInvalidInput)
	}

	t := curriculum.Topic{
		ID:                 id,
		ModuleID:           in.ModuleID,
		Title:              title,
		HasVideo:           true,
		HasQuestions:       true,
		LearningObjectives: in.LearningObjectives,
	}
	if in.HasVideo != nil {
		t.HasVideo = *in.HasVideo
	}
	if in.HasQuestions != nil {
		t.HasQuestions = *in.HasQuestions
	}

	out, err := s.store.InsertTopic(ctx, t)
	if err != nil {
		return curriculum.Topic{}, err
	}
	slog.Info("topic added", "topic_id", out.ID, "module_id", out.ModuleID)
	return out, nil
}

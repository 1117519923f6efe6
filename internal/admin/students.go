package admin

import (
	"context"
	"fmt"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/progress"
)

// Students lists every student with at least one progress record.
func (s *Service) Students(ctx context.Context) ([]string, error) {
	return s.store.ListStudents(ctx)
}

// StudentDetail is the admin view of one student. It is built from the
// same board the student sees on the dashboard.
type StudentDetail struct {
	Email      string                      `json:"email"`
	Modules    []curriculum.ModuleView     `json:"modules"`
	Homework   []curriculum.TopicView      `json:"homework"`
	Completion []curriculum.ModuleProgress `json:"completion"`
	Grades     curriculum.Grades           `json:"grades"`
}

// StudentDetail loads the board of one student.
func (s *Service) StudentDetail(ctx context.Context, email string) (StudentDetail, error) {
	b, err := progress.Load(ctx, s.store, email)
	if err != nil {
		return StudentDetail{}, fmt.Errorf("load student %s: %w", email, err)
	}
	return Detail(b), nil
}

// Detail summarises a loaded board.
func Detail(b *progress.Board) StudentDetail {
	mods := b.Modules()
	return StudentDetail{
		Email:      b.Student(),
		Modules:    mods,
		Homework:   curriculum.Homework(mods),
		Completion: curriculum.ModuleCompletion(mods),
		Grades:     curriculum.GradeReport(mods),
	}
}

// ToggleAssignment flips the homework flag of a topic for a student.
func (s *Service) ToggleAssignment(ctx context.Context, email, topicID string) (curriculum.TopicView, error) {
	b, err := progress.Load(ctx, s.store, email)
	if err != nil {
		return curriculum.TopicView{}, fmt.Errorf("load student %s: %w", email, err)
	}
	return b.ToggleAssignment(ctx, topicID)
}

// ToggleStatus flips a topic between complete and todo for a student.
func (s *Service) ToggleStatus(ctx context.Context, email, topicID string) (curriculum.TopicView, error) {
	b, err := progress.Load(ctx, s.store, email)
	if err != nil {
		return curriculum.TopicView{}, fmt.Errorf("load student %s: %w", email, err)
	}
	return b.ToggleStatus(ctx, topicID)
}

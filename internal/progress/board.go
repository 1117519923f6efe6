// Package progress loads one student's curriculum board and applies
// mutations to it: an optimistic rewrite of the view tree followed by a
// durable upsert, reverted when the upsert fails.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

var (
	// ErrUnknownTopic is returned when a mutation names a topic not on the board.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrInvalidConfidence is returned for confidence levels outside 0..3.
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 3")
	// ErrUpsertFailed wraps a store failure after the optimistic state was reverted.
	ErrUpsertFailed = errors.New("progress not saved")
)

// Store is the subset of the data store a Board needs.
type Store interface {
	store.CurriculumReader
	ListProgress(ctx context.Context, studentEmail string) ([]curriculum.ProgressRecord, error)
	UpsertProgress(ctx context.Context, p curriculum.ProgressPatch) (curriculum.ProgressRecord, error)
}

// Board is one student's merged curriculum view.
type Board struct {
	store   Store
	student string

	mu      sync.Mutex
	modules []curriculum.ModuleView
}

// Load fetches modules, topics and the student's progress concurrently and
// merges them. An empty student yields a board with default progress only.
// A failure in any fetch fails the whole load.
func Load(ctx context.Context, st Store, student string) (*Board, error) {
	modules, err := fetch(ctx, st, student)
	if err != nil {
		return nil, err
	}
	return &Board{store: st, student: student, modules: modules}, nil
}

func fetch(ctx context.Context, st Store, student string) ([]curriculum.ModuleView, error) {
	var (
		modules  []curriculum.Module
		topics   []curriculum.Topic
		progress []curriculum.ProgressRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		modules, err = st.ListModules(gctx)
		if err != nil {
			return fmt.Errorf("fetch modules: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		topics, err = st.ListTopics(gctx)
		if err != nil {
			return fmt.Errorf("fetch topics: %w", err)
		}
		return nil
	})
	if student != "" {
		g.Go(func() error {
			var err error
			progress, err = st.ListProgress(gctx, student)
			if err != nil {
				return fmt.Errorf("fetch progress: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A caller that gave up while the fetches were in flight gets nothing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return curriculum.Merge(modules, topics, progress), nil
}

// Student returns the identity the board was loaded for.
func (b *Board) Student() string { return b.student }

// Modules returns the current module views. Callers must not modify them.
func (b *Board) Modules() []curriculum.ModuleView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modules
}

// Homework returns the assigned topics not yet complete.
func (b *Board) Homework() []curriculum.TopicView {
	return curriculum.Homework(b.Modules())
}

// Topic looks up one topic view on the board.
func (b *Board) Topic(topicID string) (curriculum.TopicView, bool) {
	return curriculum.FindTopic(b.Modules(), topicID)
}

// ToggleStatus flips a topic between complete and todo.
func (b *Board) ToggleStatus(ctx context.Context, topicID string) (curriculum.TopicView, error) {
	return b.mutate(ctx, topicID, func(t curriculum.TopicView) (curriculum.TopicView, curriculum.ProgressPatch) {
		next := curriculum.StatusComplete
		if t.Status == curriculum.StatusComplete {
			next = curriculum.StatusTodo
		}
		t.Status = next
		return t, curriculum.ProgressPatch{Status: &next}
	})
}

// SetConfidence records a self-assessed confidence level. The current status
// is sent along so the upsert can never reset it.
func (b *Board) SetConfidence(ctx context.Context, topicID string, level int) (curriculum.TopicView, error) {
	if level < 0 || level > curriculum.MaxConfidence {
		return curriculum.TopicView{}, fmt.Errorf("%w: got %d", ErrInvalidConfidence, level)
	}
	return b.mutate(ctx, topicID, func(t curriculum.TopicView) (curriculum.TopicView, curriculum.ProgressPatch) {
		status := t.Status
		t.Confidence = level
		return t, curriculum.ProgressPatch{Status: &status, Confidence: &level}
	})
}

// ToggleAssignment flips the homework flag, carrying the current status.
func (b *Board) ToggleAssignment(ctx context.Context, topicID string) (curriculum.TopicView, error) {
	return b.mutate(ctx, topicID, func(t curriculum.TopicView) (curriculum.TopicView, curriculum.ProgressPatch) {
		status := t.Status
		assigned := !t.IsAssigned
		t.IsAssigned = assigned
		return t, curriculum.ProgressPatch{Status: &status, IsAssigned: &assigned}
	})
}

type change func(curriculum.TopicView) (curriculum.TopicView, curriculum.ProgressPatch)

// mutate runs the two-phase protocol. The lock is held across the upsert so
// mutations to one board apply in order.
func (b *Board) mutate(ctx context.Context, topicID string, fn change) (curriculum.TopicView, error) {
	if b.student == "" {
		return curriculum.TopicView{}, fmt.Errorf("mutate progress: no student")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.modules
	var patch curriculum.ProgressPatch
	optimistic, ok := curriculum.ReplaceTopic(before, topicID, func(t curriculum.TopicView) curriculum.TopicView {
		var next curriculum.TopicView
		next, patch = fn(t)
		return next
	})
	if !ok {
		return curriculum.TopicView{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topicID)
	}
	b.modules = optimistic

	patch.StudentEmail = b.student
	patch.TopicID = topicID
	rec, err := b.store.UpsertProgress(ctx, patch)
	if err != nil {
		b.modules = before
		slog.Warn("progress upsert failed, reverted",
			"student", b.student,
			"topic_id", topicID,
			"error", err,
		)
		return curriculum.TopicView{}, fmt.Errorf("%w: %w", ErrUpsertFailed, err)
	}

	var view curriculum.TopicView
	b.modules, _ = curriculum.ReplaceTopic(optimistic, topicID, func(t curriculum.TopicView) curriculum.TopicView {
		view = curriculum.Materialize(t.Topic, &rec)
		return view
	})
	return view, nil
}

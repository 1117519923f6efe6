package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) store.Store {
		return store.NewMemoryStore()
	})
}

func TestMemoryStore_RejectsUnknownSubject(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.InsertModule(context.Background(), curriculum.Module{Title: "Cells", Subject: "biology"})
	if err == nil {
		t.Error("InsertModule() should reject unknown subject")
	}
}

func TestMemoryStore_RejectsInvalidStatus(t *testing.T) {
	s := store.NewMemoryStore()
	seedCurriculum(t, s)

	_, err := s.UpsertProgress(context.Background(), curriculum.ProgressPatch{
		StudentEmail: "x@school.edu", TopicID: "1.2", Status: statusPtr("done"),
	})
	if err == nil {
		t.Error("UpsertProgress() should reject unknown status")
	}
}

func TestMemoryStore_RecentOrdering(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedCurriculum(t, s)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	for _, q := range []string{"first", "second", "third"} {
		if _, err := s.InsertQuestion(ctx, curriculum.QuizQuestion{TopicID: "1.2", Question: q, CorrectAnswer: curriculum.OptionA}); err != nil {
			t.Fatalf("InsertQuestion() error = %v", err)
		}
	}
	recent, _ := s.RecentQuestions(ctx, 2)
	if len(recent) != 2 || recent[0].Question != "third" || recent[1].Question != "second" {
		t.Errorf("RecentQuestions(2) = %+v, want newest first", recent)
	}

	s.UpsertProgress(ctx, curriculum.ProgressPatch{StudentEmail: "a@school.edu", TopicID: "1.2", Confidence: intPtr(1)})
	s.UpsertProgress(ctx, curriculum.ProgressPatch{StudentEmail: "b@school.edu", TopicID: "2.1", Confidence: intPtr(1)})
	results, _ := s.RecentResults(ctx, 50)
	if len(results) != 2 || results[0].StudentEmail != "b@school.edu" {
		t.Errorf("RecentResults() = %+v, want most recent first", results)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedCurriculum(t, s)

	rec, _ := s.UpsertProgress(ctx, curriculum.ProgressPatch{
		StudentEmail: "x@school.edu", TopicID: "1.2",
		History: map[string]curriculum.Option{"q1": curriculum.OptionA},
	})
	rec.History["q1"] = curriculum.OptionD

	got, _ := s.GetProgress(ctx, "x@school.edu", "1.2")
	if got.History["q1"] != curriculum.OptionA {
		t.Error("mutating a returned record should not change the store")
	}
}

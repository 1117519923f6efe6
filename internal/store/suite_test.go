package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

func boolPtr(b bool) *bool                             { return &b }
func intPtr(n int) *int                                { return &n }
func statusPtr(s curriculum.Status) *curriculum.Status { return &s }

// seedCurriculum inserts two modules and three topics and returns the modules.
func seedCurriculum(t *testing.T, s store.Store) []curriculum.Module {
	t.Helper()
	ctx := context.Background()

	chem, err := s.InsertModule(ctx, curriculum.Module{Title: "Atoms", OrderIndex: 1, Subject: curriculum.SubjectChemistry})
	if err != nil {
		t.Fatalf("InsertModule() error = %v", err)
	}
	phys, err := s.InsertModule(ctx, curriculum.Module{Title: "Forces", OrderIndex: 2, Subject: curriculum.SubjectPhysics})
	if err != nil {
		t.Fatalf("InsertModule() error = %v", err)
	}

	for _, topic := range []curriculum.Topic{
		{ID: "1.10", ModuleID: chem.ID, Title: "Ions", HasVideo: true, HasQuestions: true, LearningObjectives: []string{"Define an ion"}},
		{ID: "1.2", ModuleID: chem.ID, Title: "Isotopes", HasVideo: true, HasQuestions: true},
		{ID: "2.1", ModuleID: phys.ID, Title: "Newton's laws", HasQuestions: true},
	} {
		if _, err := s.InsertTopic(ctx, topic); err != nil {
			t.Fatalf("InsertTopic(%s) error = %v", topic.ID, err)
		}
	}
	return []curriculum.Module{chem, phys}
}

// runStoreSuite checks the behaviour every Store backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("curriculum", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mods := seedCurriculum(t, s)

		got, err := s.ListModules(ctx)
		if err != nil {
			t.Fatalf("ListModules() error = %v", err)
		}
		if len(got) != 2 || got[0].Title != "Atoms" || got[1].Subject != curriculum.SubjectPhysics {
			t.Errorf("ListModules() = %+v", got)
		}

		topics, err := s.ListTopics(ctx)
		if err != nil {
			t.Fatalf("ListTopics() error = %v", err)
		}
		if len(topics) != 3 {
			t.Errorf("ListTopics() = %d, want 3", len(topics))
		}

		byModule, err := s.ListTopicsByModule(ctx, mods[0].ID)
		if err != nil {
			t.Fatalf("ListTopicsByModule() error = %v", err)
		}
		if len(byModule) != 2 {
			t.Fatalf("ListTopicsByModule() = %d, want 2", len(byModule))
		}
		if byModule[0].ID != "1.2" || byModule[1].ID != "1.10" {
			t.Errorf("ListTopicsByModule() order = %s, %s, want 1.2, 1.10", byModule[0].ID, byModule[1].ID)
		}
		for _, topic := range byModule {
			if topic.ID == "1.10" && len(topic.LearningObjectives) != 1 {
				t.Errorf("LearningObjectives = %v, want 1 entry", topic.LearningObjectives)
			}
			if topic.ID == "1.2" && topic.LearningObjectives != nil {
				t.Errorf("LearningObjectives = %v, want nil when absent", topic.LearningObjectives)
			}
		}
	})

	t.Run("topic constraints", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mods := seedCurriculum(t, s)

		_, err := s.InsertTopic(ctx, curriculum.Topic{ID: "1.2", ModuleID: mods[0].ID, Title: "Again"})
		if !errors.Is(err, store.ErrConflict) {
			t.Errorf("duplicate InsertTopic() error = %v, want ErrConflict", err)
		}
		_, err = s.InsertTopic(ctx, curriculum.Topic{ID: "9.1", ModuleID: 9999, Title: "Orphan"})
		if !errors.Is(err, store.ErrInvalidReference) {
			t.Errorf("orphan InsertTopic() error = %v, want ErrInvalidReference", err)
		}
	})

	t.Run("questions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedCurriculum(t, s)

		first, err := s.InsertQuestion(ctx, curriculum.QuizQuestion{
			TopicID: "1.2", Question: "Isotopes differ in?", OptionA: "protons", OptionB: "neutrons",
			OptionC: "electrons", OptionD: "charge", CorrectAnswer: curriculum.OptionB,
		})
		if err != nil {
			t.Fatalf("InsertQuestion() error = %v", err)
		}
		if first.ID == "" || first.CreatedAt.IsZero() {
			t.Errorf("InsertQuestion() = %+v, want generated id and created_at", first)
		}
		if _, err := s.InsertQuestion(ctx, curriculum.QuizQuestion{
			TopicID: "1.2", Question: "Mass number counts?", OptionA: "protons", OptionB: "neutrons",
			OptionC: "both", OptionD: "electrons", CorrectAnswer: curriculum.OptionC, Explanation: "Nucleons.",
		}); err != nil {
			t.Fatalf("InsertQuestion() error = %v", err)
		}

		qs, err := s.ListQuestions(ctx, "1.2")
		if err != nil {
			t.Fatalf("ListQuestions() error = %v", err)
		}
		if len(qs) != 2 || qs[0].ID != first.ID {
			t.Fatalf("ListQuestions() = %+v, want creation order", qs)
		}
		if qs[1].Explanation != "Nucleons." || qs[0].ImageURL != "" {
			t.Errorf("optional fields = %q / %q", qs[1].Explanation, qs[0].ImageURL)
		}

		none, err := s.ListQuestions(ctx, "2.1")
		if err != nil || len(none) != 0 {
			t.Errorf("ListQuestions(2.1) = %v, %v; want empty", none, err)
		}

		if _, err := s.InsertQuestion(ctx, curriculum.QuizQuestion{TopicID: "7.7", CorrectAnswer: curriculum.OptionA}); !errors.Is(err, store.ErrInvalidReference) {
			t.Errorf("InsertQuestion(unknown topic) error = %v, want ErrInvalidReference", err)
		}

		if err := s.DeleteQuestion(ctx, first.ID); err != nil {
			t.Fatalf("DeleteQuestion() error = %v", err)
		}
		if err := s.DeleteQuestion(ctx, first.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second DeleteQuestion() error = %v, want ErrNotFound", err)
		}
		if qs, _ := s.ListQuestions(ctx, "1.2"); len(qs) != 1 {
			t.Errorf("ListQuestions() after delete = %d, want 1", len(qs))
		}
	})

	t.Run("upsert inserts defaults", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedCurriculum(t, s)

		rec, err := s.UpsertProgress(ctx, curriculum.ProgressPatch{
			StudentEmail: "x@school.edu", TopicID: "2.1", IsAssigned: boolPtr(true),
		})
		if err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
		if !rec.IsAssigned || rec.Status != curriculum.StatusTodo || rec.Confidence != 0 || rec.Score != nil {
			t.Errorf("inserted record = %+v, want assigned todo with defaults", rec)
		}
		if rec.History == nil || len(rec.History) != 0 {
			t.Errorf("History = %v, want empty map", rec.History)
		}
	})

	t.Run("upsert keeps unspecified fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedCurriculum(t, s)

		_, err := s.UpsertProgress(ctx, curriculum.ProgressPatch{
			StudentEmail: "x@school.edu", TopicID: "1.2",
			Status: statusPtr(curriculum.StatusComplete), Score: intPtr(80), IsAssigned: boolPtr(true),
			History: map[string]curriculum.Option{"q1": curriculum.OptionA},
		})
		if err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}

		rec, err := s.UpsertProgress(ctx, curriculum.ProgressPatch{
			StudentEmail: "x@school.edu", TopicID: "1.2", Confidence: intPtr(2),
		})
		if err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
		if rec.Confidence != 2 || rec.Status != curriculum.StatusComplete || !rec.IsAssigned {
			t.Errorf("updated record = %+v, want confidence 2 with prior fields kept", rec)
		}
		if rec.Score == nil || *rec.Score != 80 || rec.History["q1"] != curriculum.OptionA {
			t.Errorf("score/history = %v / %v, want kept", rec.Score, rec.History)
		}

		got, err := s.GetProgress(ctx, "x@school.edu", "1.2")
		if err != nil {
			t.Fatalf("GetProgress() error = %v", err)
		}
		if got.Confidence != 2 {
			t.Errorf("GetProgress().Confidence = %d, want 2", got.Confidence)
		}

		all, err := s.ListProgress(ctx, "x@school.edu")
		if err != nil || len(all) != 1 {
			t.Errorf("ListProgress() = %v, %v; want one record", all, err)
		}
		if other, _ := s.ListProgress(ctx, "y@school.edu"); len(other) != 0 {
			t.Errorf("ListProgress(other student) = %d, want 0", len(other))
		}
	})

	t.Run("upsert rejects unknown topic", func(t *testing.T) {
		s := newStore(t)
		seedCurriculum(t, s)

		_, err := s.UpsertProgress(context.Background(), curriculum.ProgressPatch{
			StudentEmail: "x@school.edu", TopicID: "8.8", Confidence: intPtr(1),
		})
		if !errors.Is(err, store.ErrInvalidReference) {
			t.Errorf("UpsertProgress(unknown topic) error = %v, want ErrInvalidReference", err)
		}
	})

	t.Run("get missing progress", func(t *testing.T) {
		s := newStore(t)
		seedCurriculum(t, s)

		_, err := s.GetProgress(context.Background(), "x@school.edu", "1.2")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetProgress() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("results and students", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedCurriculum(t, s)

		for _, p := range []curriculum.ProgressPatch{
			{StudentEmail: "b@school.edu", TopicID: "1.2", Score: intPtr(40), Status: statusPtr(curriculum.StatusReview)},
			{StudentEmail: "a@school.edu", TopicID: "2.1", Score: intPtr(90), Status: statusPtr(curriculum.StatusComplete)},
			{StudentEmail: "a@school.edu", TopicID: "1.10", Confidence: intPtr(1)},
		} {
			if _, err := s.UpsertProgress(ctx, p); err != nil {
				t.Fatalf("UpsertProgress() error = %v", err)
			}
		}

		students, err := s.ListStudents(ctx)
		if err != nil {
			t.Fatalf("ListStudents() error = %v", err)
		}
		if len(students) != 2 || students[0] != "a@school.edu" {
			t.Errorf("ListStudents() = %v, want sorted unique emails", students)
		}

		results, err := s.RecentResults(ctx, 2)
		if err != nil {
			t.Fatalf("RecentResults() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("RecentResults(2) = %d rows, want 2", len(results))
		}
		all, _ := s.RecentResults(ctx, 50)
		if len(all) != 3 {
			t.Fatalf("RecentResults(50) = %d rows, want 3", len(all))
		}
		for _, r := range all {
			if r.TopicID == "2.1" && (r.Subject != curriculum.SubjectPhysics || r.TopicTitle != "Newton's laws" || r.Score != 90) {
				t.Errorf("joined result = %+v", r)
			}
			if r.TopicID == "1.10" && r.Score != 0 {
				t.Errorf("unscored result Score = %d, want 0", r.Score)
			}
		}
	})
}

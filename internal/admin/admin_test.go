package admin_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/tutor-portal/internal/admin"
	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

type fixture struct {
	store  *store.MemoryStore
	svc    *admin.Service
	chemID int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := admin.NewService(st)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx := context.Background()
	chem, err := svc.AddModule(ctx, admin.ModuleInput{Title: "Atoms", Subject: curriculum.SubjectChemistry})
	if err != nil {
		t.Fatalf("AddModule() error = %v", err)
	}
	for _, id := range []string{"1.10", "1.2"} {
		if _, err := svc.AddTopic(ctx, admin.TopicInput{ID: id, ModuleID: chem.ID, Title: "Topic " + id}); err != nil {
			t.Fatalf("AddTopic() error = %v", err)
		}
	}
	return &fixture{store: st, svc: svc, chemID: chem.ID}
}

func validQuestion(topicID string) curriculum.QuizQuestion {
	return curriculum.QuizQuestion{
		TopicID:       topicID,
		Question:      "Which particle has no charge?",
		OptionA:       "proton",
		OptionB:       "electron",
		OptionC:       "neutron",
		OptionD:       "ion",
		CorrectAnswer: curriculum.OptionC,
	}
}

func TestAddModule_OrderIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.AddModule(ctx, admin.ModuleInput{Title: "Forces", Subject: curriculum.SubjectPhysics})
	if err != nil {
		t.Fatalf("AddModule() error = %v", err)
	}
	if m.OrderIndex != 2 {
		t.Errorf("OrderIndex = %d, want count + 1 = 2", m.OrderIndex)
	}
}

func TestAddModule_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   admin.ModuleInput
	}{
		{"blank title", admin.ModuleInput{Title: "  ", Subject: curriculum.SubjectPhysics}},
		{"unknown subject", admin.ModuleInput{Title: "Cells", Subject: "biology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.AddModule(context.Background(), tt.in); !errors.Is(err, admin.ErrInvalidInput) {
				t.Errorf("AddModule() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAddTopic_Defaults(t *testing.T) {
	f := newFixture(t)
	noVideo := false

	topic, err := f.svc.AddTopic(context.Background(), admin.TopicInput{ID: "1.3", ModuleID: f.chemID, Title: "Bonds", HasVideo: &noVideo})
	if err != nil {
		t.Fatalf("AddTopic() error = %v", err)
	}
	if topic.HasVideo || !topic.HasQuestions {
		t.Errorf("topic = %+v, want has_video=false and has_questions defaulted true", topic)
	}

	view, err := f.svc.Curriculum(context.Background())
	if err != nil {
		t.Fatalf("Curriculum() error = %v", err)
	}
	ids := []string{}
	for _, tv := range view[0].Topics {
		ids = append(ids, tv.ID)
	}
	if len(ids) != 3 || ids[0] != "1.2" || ids[1] != "1.3" || ids[2] != "1.10" {
		t.Errorf("Curriculum() topics = %v, want numeric order", ids)
	}
}

func TestAddTopic_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddTopic(ctx, admin.TopicInput{ModuleID: f.chemID, Title: "No id"}); !errors.Is(err, admin.ErrInvalidInput) {
		t.Errorf("AddTopic(no id) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.AddTopic(ctx, admin.TopicInput{ID: "1.2", ModuleID: f.chemID, Title: "Dup"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("AddTopic(duplicate) error = %v, want ErrConflict", err)
	}
	if _, err := f.svc.AddTopic(ctx, admin.TopicInput{ID: "5.1", ModuleID: 99, Title: "Orphan"}); !errors.Is(err, store.ErrInvalidReference) {
		t.Errorf("AddTopic(missing module) error = %v, want ErrInvalidReference", err)
	}
}

func TestModuleTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topics, err := f.svc.ModuleTopics(ctx, f.chemID)
	if err != nil {
		t.Fatalf("ModuleTopics() error = %v", err)
	}
	if len(topics) != 2 || topics[0].ID != "1.2" || topics[1].ID != "1.10" {
		t.Errorf("ModuleTopics() = %+v, want 1.2 then 1.10", topics)
	}

	if _, err := f.svc.ModuleTopics(ctx, 0); !errors.Is(err, admin.ErrInvalidInput) {
		t.Errorf("ModuleTopics(0) error = %v, want ErrInvalidInput", err)
	}
	if topics, err := f.svc.ModuleTopics(ctx, f.chemID+100); err != nil || len(topics) != 0 {
		t.Errorf("ModuleTopics(unknown) = %v, %v, want empty", topics, err)
	}
}

func TestAddQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := validQuestion("1.2")
	q.CorrectAnswer = " C "
	out, err := f.svc.AddQuestion(ctx, q)
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	if out.ID == "" || out.CorrectAnswer != curriculum.OptionC {
		t.Errorf("AddQuestion() = %+v, want id and normalized answer", out)
	}

	missing := validQuestion("1.2")
	missing.OptionD = ""
	if _, err := f.svc.AddQuestion(ctx, missing); !errors.Is(err, admin.ErrInvalidInput) {
		t.Errorf("AddQuestion(missing option) error = %v, want ErrInvalidInput", err)
	}

	bad := validQuestion("1.2")
	bad.CorrectAnswer = "e"
	if _, err := f.svc.AddQuestion(ctx, bad); !errors.Is(err, admin.ErrInvalidInput) {
		t.Errorf("AddQuestion(bad answer) error = %v, want ErrInvalidInput", err)
	}

	if _, err := f.svc.AddQuestion(ctx, validQuestion("9.9")); !errors.Is(err, store.ErrInvalidReference) {
		t.Errorf("AddQuestion(unknown topic) error = %v, want ErrInvalidReference", err)
	}
}

func TestRecentQuestionsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last curriculum.QuizQuestion
	for i := 0; i < 12; i++ {
		last, _ = f.svc.AddQuestion(ctx, validQuestion("1.2"))
	}
	recent, err := f.svc.RecentQuestions(ctx)
	if err != nil {
		t.Fatalf("RecentQuestions() error = %v", err)
	}
	if len(recent) != 10 || recent[0].ID != last.ID {
		t.Errorf("RecentQuestions() = %d, want newest 10", len(recent))
	}

	if err := f.svc.DeleteQuestion(ctx, last.ID); err != nil {
		t.Fatalf("DeleteQuestion() error = %v", err)
	}
	if qs, _ := f.svc.Questions(ctx, "1.2"); len(qs) != 11 {
		t.Errorf("Questions() after delete = %d, want 11", len(qs))
	}
	if err := f.svc.DeleteQuestion(ctx, last.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteQuestion(again) error = %v, want ErrNotFound", err)
	}
}

func TestImportQuestions(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`[
	  {"topic_id": "1.2", "question": "Q1", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"},
	  {"topic_id": "7.7", "question": "Q2", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "b"},
	  {"id": "fixed", "topic_id": "1.10", "question": "Q3", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "d", "explanation": "because"}
	]`)

	report, err := f.svc.ImportQuestions(context.Background(), payload)
	if err != nil {
		t.Fatalf("ImportQuestions() error = %v", err)
	}
	if report.Imported != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 imported and 1 failed", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Row != 2 {
		t.Errorf("Errors = %+v, want row 2", report.Errors)
	}
	if qs, _ := f.svc.Questions(context.Background(), "1.10"); len(qs) != 1 || qs[0].ID != "fixed" {
		t.Errorf("imported question = %+v", qs)
	}
}

func TestImportQuestions_SchemaRejectsWholePayload(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"not array", `{"topic_id": "1.2"}`},
		{"empty", `[]`},
		{"bad answer", `[{"topic_id": "1.2", "question": "Q", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "e"}]`},
		{"missing option", `[{"topic_id": "1.2", "question": "Q", "option_a": "a", "option_b": "b", "option_c": "c", "correct_answer": "a"}]`},
		{"blank question", `[{"topic_id": "1.2", "question": "   ", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"}]`},
		{"blank option", `[{"topic_id": "1.2", "question": "Q", "option_a": "\t", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"}]`},
		{"unknown field", `[{"topic_id": "1.2", "question": "Q", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a", "score": 5}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ImportQuestions(context.Background(), []byte(tt.payload))
			if !errors.Is(err, admin.ErrInvalidInput) {
				t.Errorf("ImportQuestions() error = %v, want ErrInvalidInput", err)
			}
		})
	}
	if qs, _ := f.svc.Questions(context.Background(), "1.2"); len(qs) != 0 {
		t.Errorf("rejected payloads inserted %d questions", len(qs))
	}
}

func TestImportQuestions_UnicodeBlankRowFails(t *testing.T) {
	f := newFixture(t)
	// U+2003 is not ASCII whitespace, so the schema accepts it, but it trims to "".
	payload := []byte(`[
	  {"topic_id": "1.2", "question": "Q1", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"},
	  {"topic_id": "1.2", "question": "\u2003", "option_a": "\u2003", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"}
	]`)

	report, err := f.svc.ImportQuestions(context.Background(), payload)
	if err != nil {
		t.Fatalf("ImportQuestions() error = %v", err)
	}
	if report.Imported != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 1 imported and 1 failed", report)
	}
	if report.Errors[0].Row != 2 || !strings.Contains(report.Errors[0].Message, "question") {
		t.Errorf("Errors = %+v, want row 2 naming the blank question", report.Errors)
	}
	qs, _ := f.svc.Questions(context.Background(), "1.2")
	if len(qs) != 1 || qs[0].Question != "Q1" {
		t.Errorf("stored questions = %+v, want only Q1", qs)
	}
}

func TestStudentFlows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const email = "x@school.edu"

	view, err := f.svc.ToggleAssignment(ctx, email, "1.10")
	if err != nil {
		t.Fatalf("ToggleAssignment() error = %v", err)
	}
	if !view.IsAssigned || view.Status != curriculum.StatusTodo {
		t.Errorf("ToggleAssignment() = %+v, want assigned todo", view)
	}

	if _, err := f.svc.ToggleStatus(ctx, email, "1.2"); err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}

	students, _ := f.svc.Students(ctx)
	if len(students) != 1 || students[0] != email {
		t.Errorf("Students() = %v", students)
	}

	detail, err := f.svc.StudentDetail(ctx, email)
	if err != nil {
		t.Fatalf("StudentDetail() error = %v", err)
	}
	if len(detail.Homework) != 1 || detail.Homework[0].ID != "1.10" {
		t.Errorf("Homework = %+v, want 1.10", detail.Homework)
	}
	if len(detail.Completion) != 1 || detail.Completion[0].Completed != 1 || detail.Completion[0].Percent != 50 {
		t.Errorf("Completion = %+v, want 1 of 2", detail.Completion)
	}

	// A second toggle clears the assignment.
	view, _ = f.svc.ToggleAssignment(ctx, email, "1.10")
	if view.IsAssigned {
		t.Error("second ToggleAssignment() should clear the flag")
	}
}

func seedResults(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	for _, r := range []struct {
		email string
		topic string
		score int
	}{
		{"ann@school.edu", "1.2", 40},
		{"ben@school.edu", "1.2", 85},
		{"ann@school.edu", "1.10", 65},
	} {
		score := r.score
		if _, err := f.store.UpsertProgress(ctx, curriculum.ProgressPatch{StudentEmail: r.email, TopicID: r.topic, Score: &score}); err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
	}
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	seedResults(t, f)

	tests := []struct {
		name    string
		filter  admin.Filter
		query   string
		count   int
		average int
	}{
		{"all", admin.FilterAll, "", 3, 63},
		{"low", admin.FilterLow, "", 1, 40},
		{"high", admin.FilterHigh, "", 1, 85},
		{"search email", admin.FilterAll, "ANN", 2, 53},
		{"search topic", admin.FilterAll, "1.10", 1, 65},
		{"no match", admin.FilterHigh, "ann", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.svc.Analytics(context.Background(), tt.filter, tt.query)
			if err != nil {
				t.Fatalf("Analytics() error = %v", err)
			}
			if len(a.Results) != tt.count || a.AverageScore != tt.average {
				t.Errorf("Analytics() = %d rows avg %d, want %d avg %d", len(a.Results), a.AverageScore, tt.count, tt.average)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]admin.Filter{"low": admin.FilterLow, "HIGH": admin.FilterHigh, "": admin.FilterAll, "weird": admin.FilterAll} {
		if got := admin.ParseFilter(in); got != want {
			t.Errorf("ParseFilter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExportGradebook(t *testing.T) {
	f := newFixture(t)
	seedResults(t, f)

	var buf bytes.Buffer
	if err := f.svc.ExportGradebook(context.Background(), &buf); err != nil {
		t.Fatalf("ExportGradebook() error = %v", err)
	}

	wb, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Gradebook")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "Student" || rows[0][5] != "Score" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "ann@school.edu" || rows[1][1] != "1.10" || rows[1][5] != "65" {
		t.Errorf("first row = %v, want most recent result", rows[1])
	}
}

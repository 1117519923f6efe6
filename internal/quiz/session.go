// Package quiz drives a student through a shuffled question set, scores the
// answers and turns the result into a progress upsert.
package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

// PassThreshold is the percentage at or above which a quiz counts as passed.
// It is policy, not configuration.
const PassThreshold = 70

var (
	// ErrNoQuestions is returned when a topic has no questions to quiz on.
	ErrNoQuestions = errors.New("no questions for this topic")
	// ErrInvalidOption is returned for answers outside a, b, c, d.
	ErrInvalidOption = errors.New("option must be one of a, b, c, d")
	// ErrNotAnswered is returned by Next before the current question is answered.
	ErrNotAnswered = errors.New("current question not answered")
	// ErrFinished is returned by Answer once the session is over.
	ErrFinished = errors.New("quiz already finished")
	// ErrNotStarted is returned when a session has not left the loading state.
	ErrNotStarted = errors.New("quiz not started")
)

// State is the lifecycle phase of a session.
type State string

const (
	StateLoading     State = "loading"
	StateInProgress  State = "in_progress"
	StateNoQuestions State = "no_questions"
	StateFinished    State = "finished"
)

// Shuffler permutes n elements through swap. rand.Shuffle satisfies it.
type Shuffler func(n int, swap func(i, j int))

// Session is one quiz attempt. It is serialised as JSON for the session store.
type Session struct {
	ID           string                       `json:"id"`
	StudentEmail string                       `json:"student_email"`
	TopicID      string                       `json:"topic_id"`
	State        State                        `json:"state"`
	Questions    []curriculum.QuizQuestion    `json:"questions"`
	Index        int                          `json:"index"`
	Score        int                          `json:"score"`
	Answered     bool                         `json:"answered"`
	Selected     curriculum.Option            `json:"selected,omitempty"`
	History      map[string]curriculum.Option `json:"history"`
	Percentage   int                          `json:"percentage"`
	Saved        bool                         `json:"saved"`
	StartedAt    time.Time                    `json:"started_at"`
	FinishedAt   time.Time                    `json:"finished_at,omitzero"`
}

// NewSession returns a session in the loading state.
func NewSession(id, studentEmail, topicID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		StudentEmail: studentEmail,
		TopicID:      topicID,
		State:        StateLoading,
		History:      map[string]curriculum.Option{},
		StartedAt:    now,
	}
}

// Begin loads the question set. An empty set moves the session to
// StateNoQuestions, which is terminal. Otherwise the questions are shuffled
// into a fresh order and the first one is presented.
func (s *Session) Begin(questions []curriculum.QuizQuestion, shuffle Shuffler) error {
	if s.State != StateLoading {
		return fmt.Errorf("begin quiz: session is %s", s.State)
	}
	if len(questions) == 0 {
		s.State = StateNoQuestions
		return ErrNoQuestions
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	qs := make([]curriculum.QuizQuestion, len(questions))
	copy(qs, questions)
	shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })

	s.Questions = qs
	s.Index = 0
	s.Score = 0
	s.Answered = false
	s.Selected = ""
	s.State = StateInProgress
	return nil
}

// Total is the number of questions in the attempt.
func (s *Session) Total() int { return len(s.Questions) }

// Current returns the question being shown. It is false outside in_progress.
func (s *Session) Current() (curriculum.QuizQuestion, bool) {
	if s.State != StateInProgress || s.Index >= len(s.Questions) {
		return curriculum.QuizQuestion{}, false
	}
	return s.Questions[s.Index], true
}

// Feedback describes the answer recorded for the current question.
type Feedback struct {
	Selected    curriculum.Option `json:"selected"`
	Correct     curriculum.Option `json:"correct_answer"`
	IsCorrect   bool              `json:"is_correct"`
	Explanation string            `json:"explanation,omitempty"`
}

// Answer records option for the current question. A second answer to the
// same question is ignored and the first one's feedback is returned.
func (s *Session) Answer(option curriculum.Option) (Feedback, error) {
	switch s.State {
	case StateFinished:
		return Feedback{}, ErrFinished
	case StateNoQuestions:
		return Feedback{}, ErrNoQuestions
	case StateLoading:
		return Feedback{}, ErrNotStarted
	}
	if !option.Valid() {
		return Feedback{}, fmt.Errorf("%w: %q", ErrInvalidOption, option)
	}

	q := s.Questions[s.Index]
	if s.Answered {
		return feedback(q, s.Selected), nil
	}

	s.History[q.ID] = option
	s.Selected = option
	if option == q.CorrectAnswer {
		s.Score++
	}
	s.Answered = true
	return feedback(q, option), nil
}

func feedback(q curriculum.QuizQuestion, selected curriculum.Option) Feedback {
	return Feedback{
		Selected:    selected,
		Correct:     q.CorrectAnswer,
		IsCorrect:   selected == q.CorrectAnswer,
		Explanation: q.Explanation,
	}
}

// Next advances past an answered question. After the last question the
// session finishes and Percentage is fixed. Next on a finished session does
// nothing.
func (s *Session) Next(now time.Time) error {
	switch s.State {
	case StateFinished:
		return nil
	case StateNoQuestions:
		return ErrNoQuestions
	case StateLoading:
		return ErrNotStarted
	}
	if !s.Answered {
		return ErrNotAnswered
	}

	if s.Index+1 < len(s.Questions) {
		s.Index++
		s.Answered = false
		s.Selected = ""
		return nil
	}

	s.State = StateFinished
	s.Answered = false
	s.Selected = ""
	s.Percentage = curriculum.Percent(s.Score, len(s.Questions))
	s.FinishedAt = now
	return nil
}

// Outcome is the scored result of a finished session.
type Outcome struct {
	Correct    int                          `json:"correct"`
	Total      int                          `json:"total"`
	Percentage int                          `json:"percentage"`
	Passed     bool                         `json:"passed"`
	Status     curriculum.Status            `json:"status"`
	History    map[string]curriculum.Option `json:"history"`
}

// Outcome summarises the session. It is meaningful only once finished.
func (s *Session) Outcome() Outcome {
	passed := s.Percentage >= PassThreshold
	status := curriculum.StatusReview
	if passed {
		status = curriculum.StatusComplete
	}
	history := make(map[string]curriculum.Option, len(s.History))
	for k, v := range s.History {
		history[k] = v
	}
	return Outcome{
		Correct:    s.Score,
		Total:      len(s.Questions),
		Percentage: s.Percentage,
		Passed:     passed,
		Status:     status,
		History:    history,
	}
}

// Patch is the progress upsert for the outcome. A failing score leaves the
// assignment flag alone so the topic stays on the homework list.
func (o Outcome) Patch(studentEmail, topicID string) curriculum.ProgressPatch {
	status := o.Status
	score := o.Percentage
	p := curriculum.ProgressPatch{
		StudentEmail: studentEmail,
		TopicID:      topicID,
		Status:       &status,
		Score:        &score,
		History:      o.History,
	}
	if o.Passed {
		cleared := false
		p.IsAssigned = &cleared
	}
	return p
}

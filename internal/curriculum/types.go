package curriculum

import "time"

// Subject partitions modules on the dashboard.
type Subject string

const (
	SubjectChemistry Subject = "chemistry"
	SubjectPhysics   Subject = "physics"
)

// Subjects lists every known subject in display order.
var Subjects = []Subject{SubjectChemistry, SubjectPhysics}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	return s == SubjectChemistry || s == SubjectPhysics
}

// Module is a top-level curriculum unit within a subject.
type Module struct {
	ID         int     `json:"id" yaml:"-"`
	Title      string  `json:"title" yaml:"title"`
	OrderIndex int     `json:"order_index" yaml:"order_index"`
	Subject    Subject `json:"subject" yaml:"subject"`
}

// Topic is the smallest curriculum unit, identified by a dotted numeric code
// such as "1.10".
type Topic struct {
	ID                 string   `json:"id" yaml:"id"`
	ModuleID           int      `json:"module_id" yaml:"-"`
	Title              string   `json:"title" yaml:"title"`
	HasVideo           bool     `json:"has_video" yaml:"has_video"`
	HasQuestions       bool     `json:"has_questions" yaml:"has_questions"`
	LearningObjectives []string `json:"learning_objectives" yaml:"learning_objectives"` // nil when absent
}

// Option is a multiple-choice answer letter.
type Option string

const (
	OptionA Option = "a"
	OptionB Option = "b"
	OptionC Option = "c"
	OptionD Option = "d"
)

// Options lists the answer letters in display order.
var Options = []Option{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether o is one of a, b, c, d.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// QuizQuestion is a four-option question attached to one topic.
type QuizQuestion struct {
	ID            string    `json:"id" yaml:"-"`
	TopicID       string    `json:"topic_id" yaml:"-"`
	Question      string    `json:"question" yaml:"question"`
	ImageURL      string    `json:"image_url,omitempty" yaml:"image_url"`
	OptionA       string    `json:"option_a" yaml:"option_a"`
	OptionB       string    `json:"option_b" yaml:"option_b"`
	OptionC       string    `json:"option_c" yaml:"option_c"`
	OptionD       string    `json:"option_d" yaml:"option_d"`
	CorrectAnswer Option    `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty" yaml:"explanation"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
}

// OptionText returns the text for an answer letter.
func (q QuizQuestion) OptionText(o Option) string {
	switch o {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}

// Status is the completion state of a topic for one student.
type Status string

const (
	StatusTodo     Status = "todo"
	StatusReview   Status = "review"
	StatusComplete Status = "complete"
	StatusLocked   Status = "locked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusReview, StatusComplete, StatusLocked:
		return true
	}
	return false
}

// Defaults applied when a student has no progress record for a topic.
const (
	DefaultStatus     = StatusTodo
	DefaultConfidence = 0
	MaxConfidence     = 3
)

// ProgressRecord is the per-(student, topic) mutable state.
type ProgressRecord struct {
	StudentEmail string            `json:"student_email"`
	TopicID      string            `json:"topic_id"`
	Status       Status            `json:"status"`
	Confidence   int               `json:"confidence"`
	IsAssigned   bool              `json:"is_assigned"`
	Score        *int              `json:"score,omitempty"`
	History      map[string]Option `json:"history"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ProgressPatch is an upsert request keyed by (StudentEmail, TopicID).
// Nil fields are left untouched on update and take their defaults on insert.
type ProgressPatch struct {
	StudentEmail string
	TopicID      string
	Status       *Status
	Confidence   *int
	IsAssigned   *bool
	Score        *int
	History      map[string]Option
}

// Apply resolves the patch against the existing record, if any, giving the
// row an insert-or-update would leave behind.
func (p ProgressPatch) Apply(existing *ProgressRecord, now time.Time) ProgressRecord {
	rec := ProgressRecord{
		StudentEmail: p.StudentEmail,
		TopicID:      p.TopicID,
		Status:       DefaultStatus,
		Confidence:   DefaultConfidence,
		History:      map[string]Option{},
	}
	if existing != nil {
		rec.Status = existing.Status
		rec.Confidence = existing.Confidence
		rec.IsAssigned = existing.IsAssigned
		rec.Score = existing.Score
		rec.History = existing.History
	}

	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Confidence != nil {
		rec.Confidence = *p.Confidence
	}
	if p.IsAssigned != nil {
		rec.IsAssigned = *p.IsAssigned
	}
	if p.Score != nil {
		s := *p.Score
		rec.Score = &s
	}
	if p.History != nil {
		rec.History = copyHistory(p.History)
	}
	if rec.History == nil {
		rec.History = map[string]Option{}
	}
	rec.UpdatedAt = now
	return rec
}

func copyHistory(h map[string]Option) map[string]Option {
	out := make(map[string]Option, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// TopicView is a topic merged with one student's progress.
type TopicView struct {
	Topic
	Status     Status `json:"status"`
	Confidence int    `json:"confidence"`
	IsAssigned bool   `json:"is_assigned"`
	Score      int    `json:"score"`
}

// ModuleView is a module with its merged, sorted topics.
type ModuleView struct {
	Module
	Topics []TopicView `json:"topics"`
}

// Result is one progress row joined with its topic, as shown in analytics.
type Result struct {
	StudentEmail string    `json:"student_email"`
	TopicID      string    `json:"topic_id"`
	TopicTitle   string    `json:"topic_title"`
	Subject      Subject   `json:"subject"`
	Status       Status    `json:"status"`
	Score        int       `json:"score"`
	UpdatedAt    time.Time `json:"updated_at"`
}

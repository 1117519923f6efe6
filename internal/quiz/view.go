package quiz

import "github.com/p-n-ai/tutor-portal/internal/curriculum"

// QuestionView is a question as shown to the student, without its answer.
type QuestionView struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	ImageURL string `json:"image_url,omitempty"`
	OptionA  string `json:"option_a"`
	OptionB  string `json:"option_b"`
	OptionC  string `json:"option_c"`
	OptionD  string `json:"option_d"`
}

// SessionView is the client-facing state of a session.
type SessionView struct {
	ID         string            `json:"id"`
	TopicID    string            `json:"topic_id"`
	State      State             `json:"state"`
	Index      int               `json:"index"`
	Total      int               `json:"total"`
	Score      int               `json:"score"`
	Answered   bool              `json:"answered"`
	Selected   curriculum.Option `json:"selected,omitempty"`
	Question   *QuestionView     `json:"question,omitempty"`
	Feedback   *Feedback         `json:"feedback,omitempty"`
	Percentage int               `json:"percentage"`
	Passed     bool              `json:"passed"`
	Saved      bool              `json:"saved"`
}

// View renders the session. The correct answer of the current question is
// revealed only after it has been answered.
func (s *Session) View() SessionView {
	v := SessionView{
		ID:       s.ID,
		TopicID:  s.TopicID,
		State:    s.State,
		Index:    s.Index,
		Total:    s.Total(),
		Score:    s.Score,
		Answered: s.Answered,
		Selected: s.Selected,
		Saved:    s.Saved,
	}
	if q, ok := s.Current(); ok {
		v.Question = &QuestionView{
			ID:       q.ID,
			Question: q.Question,
			ImageURL: q.ImageURL,
			OptionA:  q.OptionA,
			OptionB:  q.OptionB,
			OptionC:  q.OptionC,
			OptionD:  q.OptionD,
		}
		if s.Answered {
			fb := feedback(q, s.Selected)
			v.Feedback = &fb
		}
	}
	if s.State == StateFinished {
		v.Percentage = s.Percentage
		v.Passed = s.Percentage >= PassThreshold
	}
	return v
}

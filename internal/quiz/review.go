package quiz

import "github.com/p-n-ai/tutor-portal/internal/curriculum"

// Verdict classifies one recorded answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictSkipped   Verdict = "skipped"
)

// ReviewItem is one question with the student's recorded choice.
type ReviewItem struct {
	Question curriculum.QuizQuestion `json:"question"`
	Selected curriculum.Option       `json:"selected,omitempty"`
	Verdict  Verdict                 `json:"verdict"`
}

// Review is the read-only replay of a stored attempt.
type Review struct {
	TopicID   string            `json:"topic_id"`
	Score     int               `json:"score"`
	Status    curriculum.Status `json:"status"`
	Items     []ReviewItem      `json:"items"`
	Correct   int               `json:"correct"`
	Incorrect int               `json:"incorrect"`
	Skipped   int               `json:"skipped"`
}

// BuildReview classifies every question against history. A question with no
// history entry is skipped, never incorrect. Questions keep their given order.
func BuildReview(questions []curriculum.QuizQuestion, history map[string]curriculum.Option) []ReviewItem {
	out := make([]ReviewItem, 0, len(questions))
	for _, q := range questions {
		item := ReviewItem{Question: q, Verdict: VerdictSkipped}
		if choice, ok := history[q.ID]; ok {
			item.Selected = choice
			item.Verdict = VerdictIncorrect
			if choice == q.CorrectAnswer {
				item.Verdict = VerdictCorrect
			}
		}
		out = append(out, item)
	}
	return out
}

func newReview(topicID string, rec curriculum.ProgressRecord, questions []curriculum.QuizQuestion) Review {
	r := Review{
		TopicID: topicID,
		Status:  rec.Status,
		Items:   BuildReview(questions, rec.History),
	}
	if rec.Score != nil {
		r.Score = *rec.Score
	}
	for _, item := range r.Items {
		switch item.Verdict {
		case VerdictCorrect:
			r.Correct++
		case VerdictIncorrect:
			r.Incorrect++
		default:
			r.Skipped++
		}
	}
	return r
}

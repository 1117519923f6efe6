package curriculum

import "math"

// CompletionPercent is the rounded share of topics with status complete.
// It is 0 for an empty list.
func CompletionPercent(topics []TopicView) int {
	if len(topics) == 0 {
		return 0
	}
	done := 0
	for _, t := range topics {
		if t.Status == StatusComplete {
			done++
		}
	}
	return Percent(done, len(topics))
}

// Scored returns the topics that carry a quiz score above zero.
func Scored(topics []TopicView) []TopicView {
	out := []TopicView{}
	for _, t := range topics {
		if t.Score > 0 {
			out = append(out, t)
		}
	}
	return out
}

// AverageScore is the rounded mean score over topics with score > 0.
// It is 0 when no topic has been scored.
func AverageScore(topics []TopicView) int {
	sum, n := 0, 0
	for _, t := range topics {
		if t.Score > 0 {
			sum += t.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// ModuleProgress summarises completion of one module.
type ModuleProgress struct {
	ModuleID  int `json:"module_id"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// ModuleCompletion reports completion for each module in order.
func ModuleCompletion(modules []ModuleView) []ModuleProgress {
	out := make([]ModuleProgress, 0, len(modules))
	for _, m := range modules {
		p := ModuleProgress{ModuleID: m.ID, Total: len(m.Topics)}
		for _, t := range m.Topics {
			if t.Status == StatusComplete {
				p.Completed++
			}
		}
		p.Percent = CompletionPercent(m.Topics)
		out = append(out, p)
	}
	return out
}

// SubjectSummary holds the dashboard aggregates for one subject.
type SubjectSummary struct {
	Subject           Subject `json:"subject"`
	Topics            int     `json:"topics"`
	Completed         int     `json:"completed"`
	CompletionPercent int     `json:"completion_percent"`
	AverageScore      int     `json:"average_score"`
	QuizzesTaken      int     `json:"quizzes_taken"`
}

// Grades is the per-subject and overall score report.
type Grades struct {
	Overall  int              `json:"overall_average"`
	Subjects []SubjectSummary `json:"subjects"`
	Scored   []TopicView      `json:"scored"`
}

// Summarize computes the aggregates of one subject.
func Summarize(modules []ModuleView, subject Subject) SubjectSummary {
	topics := Flatten(FilterSubject(modules, subject))
	s := SubjectSummary{
		Subject:           subject,
		Topics:            len(topics),
		CompletionPercent: CompletionPercent(topics),
		AverageScore:      AverageScore(topics),
		QuizzesTaken:      len(Scored(topics)),
	}
	for _, t := range topics {
		if t.Status == StatusComplete {
			s.Completed++
		}
	}
	return s
}

// GradeReport computes averages for every subject and overall.
func GradeReport(modules []ModuleView) Grades {
	all := Flatten(modules)
	g := Grades{
		Overall: AverageScore(all),
		Scored:  Scored(all),
	}
	for _, s := range Subjects {
		g.Subjects = append(g.Subjects, Summarize(modules, s))
	}
	return g
}

// Percent returns round(100*n/d), or 0 when d is 0.
func Percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(d)))
}

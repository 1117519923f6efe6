// Package curriculum holds the curriculum data model and the merge of
// modules, topics and one student's progress into nested views.
package curriculum

import "sort"

// Materialize builds the view of a topic for a student. rec is nil when the
// student has no progress record for the topic.
func Materialize(t Topic, rec *ProgressRecord) TopicView {
	v := TopicView{
		Topic:      t,
		Status:     DefaultStatus,
		Confidence: DefaultConfidence,
	}
	if rec == nil {
		return v
	}

	if rec.Status != "" {
		v.Status = rec.Status
	}
	v.Confidence = rec.Confidence
	v.IsAssigned = rec.IsAssigned
	if rec.Score != nil {
		v.Score = *rec.Score
	}
	return v
}

// Merge joins modules, topics and the progress records of a single student.
// Modules keep their input order; topics within a module are sorted with
// CompareTopicIDs. Topics whose module is missing are dropped.
func Merge(modules []Module, topics []Topic, progress []ProgressRecord) []ModuleView {
	byTopic := make(map[string]*ProgressRecord, len(progress))
	for i := range progress {
		if _, seen := byTopic[progress[i].TopicID]; !seen {
			byTopic[progress[i].TopicID] = &progress[i]
		}
	}

	byModule := make(map[int][]Topic, len(modules))
	for _, t := range topics {
		byModule[t.ModuleID] = append(byModule[t.ModuleID], t)
	}

	out := make([]ModuleView, 0, len(modules))
	for _, m := range modules {
		mt := byModule[m.ID]
		views := make([]TopicView, 0, len(mt))
		for _, t := range mt {
			views = append(views, Materialize(t, byTopic[t.ID]))
		}
		sortTopicViews(views)
		out = append(out, ModuleView{Module: m, Topics: views})
	}
	return out
}

// SortTopics orders topics in place by CompareTopicIDs.
func SortTopics(topics []Topic) {
	sort.SliceStable(topics, func(i, j int) bool {
		return CompareTopicIDs(topics[i].ID, topics[j].ID) < 0
	})
}

func sortTopicViews(views []TopicView) {
	sort.SliceStable(views, func(i, j int) bool {
		return CompareTopicIDs(views[i].ID, views[j].ID) < 0
	})
}

// Flatten returns the topic views of every module in order.
func Flatten(modules []ModuleView) []TopicView {
	var out []TopicView
	for _, m := range modules {
		out = append(out, m.Topics...)
	}
	return out
}

// FilterSubject returns the modules of one subject. An empty subject keeps all.
func FilterSubject(modules []ModuleView, subject Subject) []ModuleView {
	if subject == "" {
		return modules
	}
	out := make([]ModuleView, 0, len(modules))
	for _, m := range modules {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// Homework returns topics that are assigned and not yet complete.
func Homework(modules []ModuleView) []TopicView {
	out := []TopicView{}
	for _, t := range Flatten(modules) {
		if t.IsAssigned && t.Status != StatusComplete {
			out = append(out, t)
		}
	}
	return out
}

// FindTopic looks up a topic view by id.
func FindTopic(modules []ModuleView, topicID string) (TopicView, bool) {
	for _, m := range modules {
		for _, t := range m.Topics {
			if t.ID == topicID {
				return t, true
			}
		}
	}
	return TopicView{}, false
}

// ReplaceTopic returns a copy of modules with the named topic rewritten by fn.
// The input tree is never modified. The boolean is false when no topic matched.
func ReplaceTopic(modules []ModuleView, topicID string, fn func(TopicView) TopicView) ([]ModuleView, bool) {
	out := make([]ModuleView, len(modules))
	copy(out, modules)

	for i, m := range out {
		for j, t := range m.Topics {
			if t.ID != topicID {
				continue
			}
			topics := make([]TopicView, len(m.Topics))
			copy(topics, m.Topics)
			topics[j] = fn(t)
			out[i].Topics = topics
			return out, true
		}
	}
	return out, false
}

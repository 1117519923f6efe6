package httpapi

import (
	"net/http"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/identity"
	"github.com/p-n-ai/tutor-portal/internal/progress"
	"github.com/p-n-ai/tutor-portal/internal/quiz"
)

type dashboardResponse struct {
	Student  string                    `json:"student"`
	Subject  curriculum.Subject        `json:"subject,omitempty"`
	Modules  []curriculum.ModuleView   `json:"modules"`
	Homework []curriculum.TopicView    `json:"homework"`
	Summary  curriculum.SubjectSummary `json:"summary"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	subject := curriculum.Subject(r.URL.Query().Get("subject"))
	if subject != "" && !subject.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_subject", "unknown subject "+string(subject))
		return
	}

	b, err := progress.Load(r.Context(), s.store, p.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	mods := curriculum.FilterSubject(b.Modules(), subject)
	writeJSON(w, http.StatusOK, dashboardResponse{
		Student: p.Email,
		Subject: subject,
		Modules: mods,
		// Homework spans every subject.
		Homework: b.Homework(),
		Summary:  curriculum.Summarize(mods, subject),
	})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	b, err := progress.Load(r.Context(), s.store, p.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, curriculum.GradeReport(b.Modules()))
}

type topicResponse struct {
	Topic    curriculum.TopicView   `json:"topic"`
	Homework []curriculum.TopicView `json:"homework"`
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	b, err := progress.Load(r.Context(), s.store, p.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := b.ToggleStatus(r.Context(), r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topicResponse{Topic: view, Homework: b.Homework()})
}

type confidenceRequest struct {
	Level *int `json:"level"`
}

func (s *Server) handleSetConfidence(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	var req confidenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeError(w, http.StatusBadRequest, "invalid_confidence", "level is required")
		return
	}

	b, err := progress.Load(r.Context(), s.store, p.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := b.SetConfidence(r.Context(), r.PathValue("topicId"), *req.Level)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topicResponse{Topic: view, Homework: b.Homework()})
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	sess, err := s.quiz.Start(r.Context(), p.Email, r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	sess, err := s.quiz.Get(r.Context(), p.Email, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleAbandonQuiz(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	if err := s.quiz.Abandon(r.Context(), p.Email, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Option curriculum.Option `json:"option"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, _, err := s.quiz.Answer(r.Context(), p.Email, r.PathValue("id"), req.Option)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

type nextResponse struct {
	quiz.SessionView
	Outcome *quiz.Outcome `json:"outcome,omitempty"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	res, err := s.quiz.Next(r.Context(), p.Email, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := nextResponse{SessionView: res.Session.View()}
	if res.Session.State == quiz.StateFinished {
		o := res.Session.Outcome()
		out.Outcome = &o
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, p identity.Principal) {
	review, err := s.quiz.Review(r.Context(), p.Email, r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

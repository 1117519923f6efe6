// Package httpapi exposes the student dashboard, quizzes and the admin
// console as a JSON API.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/admin"
	"github.com/p-n-ai/tutor-portal/internal/identity"
	"github.com/p-n-ai/tutor-portal/internal/quiz"
	"github.com/p-n-ai/tutor-portal/internal/store"
)

// Config holds the dependencies of the API.
type Config struct {
	Store    store.Store
	Quiz     *quiz.Service
	Admin    *admin.Service
	Identity *identity.Resolver
}

// Server routes API requests.
type Server struct {
	store    store.Store
	quiz     *quiz.Service
	admin    *admin.Service
	identity *identity.Resolver
}

// New creates an API server.
func New(cfg Config) *Server {
	return &Server{
		store:    cfg.Store,
		quiz:     cfg.Quiz,
		admin:    cfg.Admin,
		identity: cfg.Identity,
	}
}

// Register mounts every API route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/me", s.student(s.handleMe))
	mux.Handle("GET /api/dashboard", s.student(s.handleDashboard))
	mux.Handle("GET /api/dashboard/grades", s.student(s.handleGrades))
	mux.Handle("POST /api/progress/{topicId}/toggle", s.student(s.handleToggleStatus))
	mux.Handle("PUT /api/progress/{topicId}/confidence", s.student(s.handleSetConfidence))

	mux.Handle("POST /api/quiz/{topicId}/sessions", s.student(s.handleStartQuiz))
	mux.Handle("GET /api/quiz/sessions/{id}", s.student(s.handleGetQuiz))
	mux.Handle("POST /api/quiz/sessions/{id}/answer", s.student(s.handleAnswer))
	mux.Handle("POST /api/quiz/sessions/{id}/next", s.student(s.handleNext))
	mux.Handle("DELETE /api/quiz/sessions/{id}", s.student(s.handleAbandonQuiz))
	mux.Handle("GET /api/review/{topicId}", s.student(s.handleReview))

	mux.Handle("GET /api/admin/curriculum", s.adminOnly(s.handleCurriculum))
	mux.Handle("POST /api/admin/modules", s.adminOnly(s.handleAddModule))
	mux.Handle("GET /api/admin/modules/{id}/topics", s.adminOnly(s.handleModuleTopics))
	mux.Handle("POST /api/admin/topics", s.adminOnly(s.handleAddTopic))
	mux.Handle("GET /api/admin/topics/{topicId}/questions", s.adminOnly(s.handleTopicQuestions))
	mux.Handle("GET /api/admin/questions/recent", s.adminOnly(s.handleRecentQuestions))
	mux.Handle("POST /api/admin/questions", s.adminOnly(s.handleAddQuestion))
	mux.Handle("POST /api/admin/questions/import", s.adminOnly(s.handleImportQuestions))
	mux.Handle("DELETE /api/admin/questions/{id}", s.adminOnly(s.handleDeleteQuestion))
	mux.Handle("GET /api/admin/students", s.adminOnly(s.handleStudents))
	mux.Handle("GET /api/admin/students/{email}", s.adminOnly(s.handleStudentDetail))
	mux.Handle("POST /api/admin/students/{email}/topics/{topicId}/assignment", s.adminOnly(s.handleAdminToggleAssignment))
	mux.Handle("POST /api/admin/students/{email}/topics/{topicId}/toggle", s.adminOnly(s.handleAdminToggleStatus))
	mux.Handle("GET /api/admin/analytics", s.adminOnly(s.handleAnalytics))
	mux.Handle("GET /api/admin/analytics/export", s.adminOnly(s.handleExport))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p identity.Principal)

// student requires any signed-in identity.
func (s *Server) student(h authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.identity.Resolve(r)
		if err != nil {
			if !errors.Is(err, identity.ErrUnauthenticated) {
				slog.Warn("rejected credentials", "path", r.URL.Path, "error", err)
			}
			writeServiceError(w, r, err)
			return
		}
		start := time.Now()
		h(w, r, p)
		slog.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"user", p.Email,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// adminOnly additionally requires the admin capability.
func (s *Server) adminOnly(h authedHandler) http.Handler {
	return s.student(func(w http.ResponseWriter, r *http.Request, p identity.Principal) {
		if !p.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		h(w, r, p)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, p identity.Principal) {
	writeJSON(w, http.StatusOK, p)
}

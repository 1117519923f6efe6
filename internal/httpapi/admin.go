package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/admin"
	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/identity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	mods, err := s.admin.Curriculum(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mods)
}

func (s *Server) handleAddModule(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	var in admin.ModuleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := s.admin.AddModule(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleModuleTopics(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "module id must be a number")
		return
	}
	topics, err := s.admin.ModuleTopics(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleAddTopic(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	var in admin.TopicInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := s.admin.AddTopic(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTopicQuestions(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	qs, err := s.admin.Questions(r.Context(), r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (s *Server) handleRecentQuestions(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	qs, err := s.admin.RecentQuestions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type questionRequest struct {
	TopicID       string            `json:"topic_id"`
	Question      string            `json:"question"`
	ImageURL      string            `json:"image_url"`
	OptionA       string            `json:"option_a"`
	OptionB       string            `json:"option_b"`
	OptionC       string            `json:"option_c"`
	OptionD       string            `json:"option_d"`
	CorrectAnswer curriculum.Option `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := s.admin.AddQuestion(r.Context(), curriculum.QuizQuestion{
		TopicID:       req.TopicID,
		Question:      req.Question,
		ImageURL:      req.ImageURL,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleImportQuestions(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "read body: "+err.Error())
		return
	}
	report, err := s.admin.ImportQuestions(r.Context(), payload)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if report.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	if err := s.admin.DeleteQuestion(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	students, err := s.admin.Students(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleStudentDetail(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	detail, err := s.admin.StudentDetail(r.Context(), identity.NormalizeEmail(r.PathValue("email")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAdminToggleAssignment(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	view, err := s.admin.ToggleAssignment(r.Context(), identity.NormalizeEmail(r.PathValue("email")), r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAdminToggleStatus(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	view, err := s.admin.ToggleStatus(r.Context(), identity.NormalizeEmail(r.PathValue("email")), r.PathValue("topicId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	q := r.URL.Query()
	a, err := s.admin.Analytics(r.Context(), admin.ParseFilter(q.Get("filter")), q.Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, _ identity.Principal) {
	var buf bytes.Buffer
	if err := s.admin.ExportGradebook(r.Context(), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("gradebook-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

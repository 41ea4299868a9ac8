package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-curriculum/internal/export"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.orch.Generate(r.Context(), body, s.userID(r), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	var body []byte
	if userID != "" {
		var err error
		if body, err = readBody(w, r); err != nil {
			writeError(w, r, err)
			return
		}
	}
	id, err := s.orch.Save(r.Context(), userID, body, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"curriculumId": id})
}

func (s *Server) handleGetCurriculum(w http.ResponseWriter, r *http.Request) {
	c, err := s.orch.Curriculum(r.Context(), s.userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleExportCurriculum(w http.ResponseWriter, r *http.Request) {
	c, err := s.orch.Curriculum(r.Context(), s.userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, c); err != nil {
		writeError(w, r, fmt.Errorf("export curriculum %s: %w", c.ID, err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, export.Filename(c)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.orch.Dashboard(r.Context(), s.userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleSkillDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.orch.SkillDetail(r.Context(), s.userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sk, err := s.orch.CompleteStep(r.Context(), s.userID(r), r.PathValue("id"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

func (s *Server) handleSubmitAssignment(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.orch.SubmitAssignment(r.Context(), s.userID(r), r.PathValue("id"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleQuizGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quiz, err := s.orch.GenerateQuiz(r.Context(), body, s.userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleQuizAssess(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	assessment, err := s.orch.AssessQuiz(r.Context(), body, s.userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

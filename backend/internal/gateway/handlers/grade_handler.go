package handlers

import (
	"net/http"

	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/grade"
)

// GradeHandler serves grade records addressed by ?grupoId=&asignatura=.
type GradeHandler struct {
	Grades GradeService
}

func gradeKey(r *http.Request) (string, string) {
	q := r.URL.Query()
	return q.Get("grupoId"), q.Get("asignatura")
}

// GetGrades handles GET /calificaciones
func (h *GradeHandler) GetGrades(w http.ResponseWriter, r *http.Request) {
	groupID, subject := gradeKey(r)

	record, err := h.Grades.Get(r.Context(), util.UserFrom(r), groupID, subject)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, record)
}

// SaveGrades handles POST /calificaciones
func (h *GradeHandler) SaveGrades(w http.ResponseWriter, r *http.Request) {
	// 1. Parse Request
	groupID, subject := gradeKey(r)
	var req grade.SaveRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 2. Call Service
	res, err := h.Grades.Save(r.Context(), util.UserFrom(r), groupID, subject, &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusOK, res)
}

// DeleteGrades handles DELETE /calificaciones (admin)
func (h *GradeHandler) DeleteGrades(w http.ResponseWriter, r *http.Request) {
	groupID, subject := gradeKey(r)

	if err := h.Grades.Delete(r.Context(), groupID, subject); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "calificaciones eliminadas")
}

// ListAllGrades handles GET /calificaciones/all (admin)
func (h *GradeHandler) ListAllGrades(w http.ResponseWriter, r *http.Request) {
	records, err := h.Grades.ListAll(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, records)
}

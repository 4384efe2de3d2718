package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"school_admin/backend/internal/gateway/util"
)

// TeacherHandler serves the admin's management of teacher accounts.
type TeacherHandler struct {
	Teachers TeacherService
}

type updateSubjectsRequest struct {
	Subjects []string `json:"subjects"`
}

// ListTeachers handles GET /profesores
func (h *TeacherHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.Teachers.List(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, teachers)
}

// GetTeacher handles GET /profesores/{id}
func (h *TeacherHandler) GetTeacher(w http.ResponseWriter, r *http.Request) {
	teacher, err := h.Teachers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, teacher)
}

// UpdateSubjects handles PUT /profesores/{id}/asignaturas
func (h *TeacherHandler) UpdateSubjects(w http.ResponseWriter, r *http.Request) {
	// 1. Parse Request Body
	var req updateSubjectsRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 2. Call Service
	subjects, err := h.Teachers.UpdateSubjects(r.Context(), chi.URLParam(r, "id"), req.Subjects)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"subjects": subjects})
}

// DeleteTeacher handles DELETE /profesores/{id}
func (h *TeacherHandler) DeleteTeacher(w http.ResponseWriter, r *http.Request) {
	if err := h.Teachers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "profesor eliminado")
}

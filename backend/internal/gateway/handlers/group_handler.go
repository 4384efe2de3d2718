package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/group"
	"school_admin/backend/internal/report"
)

// GroupHandler serves groups, their consolidated grades and grade PDFs.
type GroupHandler struct {
	Groups GroupService
	Now    func() time.Time
}

func (h *GroupHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// CreateGroup handles POST /grupos
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	// 1. Parse Request Body
	var req group.SaveGroupRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 2. Call Service
	g, err := h.Groups.Create(r.Context(), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusCreated, g)
}

// ListGroups handles GET /grupos
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Groups.List(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, groups)
}

// MyGroups handles GET /grupos/mis-grupos
func (h *GroupHandler) MyGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Groups.Mine(r.Context(), util.UserFrom(r))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, groups)
}

// UpdateGroup handles PUT /grupos/{id}
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req group.UpdateGroupRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.Groups.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, g)
}

// AssignTeachers handles PUT /grupos/{id}/asignar-profesores
func (h *GroupHandler) AssignTeachers(w http.ResponseWriter, r *http.Request) {
	var req group.AssignTeachersRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.Groups.AssignTeachers(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /grupos/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	res, err := h.Groups.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// ConsolidatedGrades handles GET /grupos/{id}/calificaciones-admin
func (h *GroupHandler) ConsolidatedGrades(w http.ResponseWriter, r *http.Request) {
	rep, _, err := h.Groups.Consolidated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rep)
}

// GroupReportPDF handles GET /grupos/{id}/reporte.pdf
func (h *GroupHandler) GroupReportPDF(w http.ResponseWriter, r *http.Request) {
	// 1. Consolidate
	rep, g, err := h.Groups.Consolidated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 2. Render
	pdf, err := report.RenderGroupPDF(h.Groups.Aggregator(), g, rep, h.now())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WritePDF(w, fmt.Sprintf("Calificaciones_%s.pdf", g.Name), pdf)
}

// StudentCardPDF handles GET /grupos/{id}/alumnos/{studentId}/boleta.pdf
func (h *GroupHandler) StudentCardPDF(w http.ResponseWriter, r *http.Request) {
	// 1. Consolidate
	rep, g, err := h.Groups.Consolidated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 2. Find Student
	student, ok := g.FindStudent(chi.URLParam(r, "studentId"))
	if !ok {
		util.WriteJSONError(w, http.StatusNotFound, "alumno no encontrado en el grupo")
		return
	}

	// 3. Render
	card := report.BuildCard(h.Groups.Aggregator(), student, g.Name, rep)
	pdf, err := report.RenderCardPDF(card, h.now())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WritePDF(w, report.CardAttachmentName, pdf)
}

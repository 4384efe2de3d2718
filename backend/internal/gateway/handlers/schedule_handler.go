package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/schedule"
)

// ScheduleHandler serves yearly schedules.
type ScheduleHandler struct {
	Schedules ScheduleService
}

// SaveSchedule handles POST /horario (admin)
func (h *ScheduleHandler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req schedule.SaveRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.Schedules.Save(r.Context(), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, sched)
}

// ListSchedules handles GET /horario
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := h.Schedules.List(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, list)
}

// GetSchedule handles GET /horario/{anio}
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Schedules.Get(r.Context(), chi.URLParam(r, "anio"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, sched)
}

// DeleteSchedule handles DELETE /horario/{anio} (admin)
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.Schedules.Delete(r.Context(), chi.URLParam(r, "anio")); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "horario eliminado")
}

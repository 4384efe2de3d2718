package handlers

import (
	"net/http"
	"strconv"
	"time"

	"school_admin/backend/internal/attendancesvc"
	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/report"
)

// AttendanceHandler serves attendance sheets.
type AttendanceHandler struct {
	Attendance AttendanceService
	Now        func() time.Time
}

func attendanceQuery(r *http.Request) attendancesvc.Query {
	q := r.URL.Query()
	return attendancesvc.Query{
		GroupID:   q.Get("groupId"),
		Subject:   q.Get("asignatura"),
		TeacherID: q.Get("profesorId"),
	}
}

// GetAttendance handles GET /attendance. Responds with null data when the
// sheet has never been saved.
func (h *AttendanceHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	record, err := h.Attendance.Get(r.Context(), util.UserFrom(r), attendanceQuery(r))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	if record == nil {
		util.WriteJSON(w, http.StatusOK, nil)
		return
	}
	util.WriteJSON(w, http.StatusOK, record)
}

// PutAttendance handles PUT /attendance
func (h *AttendanceHandler) PutAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendancesvc.PutRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.Attendance.Put(r.Context(), util.UserFrom(r), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, record)
}

// ToggleMark handles POST /attendance/toggle
func (h *AttendanceHandler) ToggleMark(w http.ResponseWriter, r *http.Request) {
	var req attendancesvc.ToggleRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Attendance.Toggle(r.Context(), util.UserFrom(r), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// ExtendDays handles POST /attendance/extend
func (h *AttendanceHandler) ExtendDays(w http.ResponseWriter, r *http.Request) {
	var req attendancesvc.ExtendRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Attendance.Extend(r.Context(), util.UserFrom(r), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// Tally handles GET /attendance/tally
func (h *AttendanceHandler) Tally(w http.ResponseWriter, r *http.Request) {
	// 1. Parse Query
	bimester, err := strconv.Atoi(r.URL.Query().Get("bimestre"))
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "bimestre debe ser un número")
		return
	}

	// 2. Call Service
	res, err := h.Attendance.Tally(r.Context(), util.UserFrom(r), attendanceQuery(r), bimester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusOK, res)
}

// AttendancePDF handles GET /attendance/reporte.pdf
func (h *AttendanceHandler) AttendancePDF(w http.ResponseWriter, r *http.Request) {
	g, record, err := h.Attendance.Sheet(r.Context(), util.UserFrom(r), attendanceQuery(r))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	pdf, err := report.RenderAttendancePDF(g, record, now)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WritePDF(w, "Asistencia_"+g.Name+".pdf", pdf)
}

package handlers

import (
	"net/http"

	"school_admin/backend/internal/gateway/util"
	"school_admin/backend/internal/report"
)

// MailHandler sends report cards by email.
type MailHandler struct {
	Mailer CardSender
}

// SendReportCard handles POST /api/enviar-boleta
func (h *MailHandler) SendReportCard(w http.ResponseWriter, r *http.Request) {
	var req report.SendCardRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Mailer.Send(r.Context(), &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "boleta enviada")
}

package handlers

import (
	"net/http"

	"school_admin/backend/internal/auth"
	"school_admin/backend/internal/gateway/util"
)

// AuthHandler serves login, registration, password recovery and the
// caller's own profile.
type AuthHandler struct {
	Auth AuthService
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// 1. Parse Request Body
	var req auth.LoginRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 2. Call Service
	resp, err := h.Auth.Login(r.Context(), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	// 3. Respond
	util.WriteJSON(w, http.StatusOK, resp)
}

// Register handles POST /auth/register (admin)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, user)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteMessage(w, http.StatusOK, "código de recuperación enviado")
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteMessage(w, http.StatusOK, "contraseña actualizada")
}

// GetProfile handles GET /profesores/mi-perfil
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.GetProfile(r.Context(), util.UserFrom(r))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /profesores/mi-perfil
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateProfileRequest
	if err := util.DecodeJSON(w, r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Auth.UpdateProfile(r.Context(), util.UserFrom(r), &req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, user)
}

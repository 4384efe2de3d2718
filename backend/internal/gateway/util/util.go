package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"school_admin/backend/internal/access"
)

// MaxBodyBytes bounds JSON request bodies. Report-card uploads carry a
// base64 PDF, so this is generous.
const MaxBodyBytes = 10 << 20

var logger = zap.NewNop()

// SetLogger sets the logger used for response write failures and 5xx errors.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON writes payload wrapped in a success envelope.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(JSONResponse{Success: true, Data: payload}); err != nil {
		logger.Warn("writing JSON response", zap.Error(err))
	}
}

// WriteMessage writes a success envelope carrying only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(JSONResponse{Success: true, Message: message}); err != nil {
		logger.Warn("writing JSON response", zap.Error(err))
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		logger.Error("http error", zap.Int("status", status), zap.String("message", message))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(JSONError{Success: false, Message: message}); err != nil {
		logger.Warn("writing JSON error response", zap.Error(err))
	}
}

// WritePDF sends a rendered PDF inline under the given file name.
func WritePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		logger.Warn("writing PDF response", zap.Error(err))
	}
}

// HandleServiceError translates gRPC status errors returned by the services
// to HTTP responses.
func HandleServiceError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		logger.Error("non-status service error", zap.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "error interno del servidor")
		return
	}

	switch st.Code() {
	case codes.InvalidArgument:
		WriteJSONError(w, http.StatusBadRequest, st.Message())
	case codes.Unauthenticated:
		WriteJSONError(w, http.StatusUnauthorized, st.Message())
	case codes.PermissionDenied:
		WriteJSONError(w, http.StatusForbidden, st.Message())
	case codes.NotFound:
		WriteJSONError(w, http.StatusNotFound, st.Message())
	case codes.AlreadyExists:
		WriteJSONError(w, http.StatusConflict, st.Message())
	case codes.Unavailable:
		WriteJSONError(w, http.StatusServiceUnavailable, "servicio no disponible")
	case codes.DeadlineExceeded, codes.Canceled:
		WriteJSONError(w, http.StatusGatewayTimeout, "la operación tardó demasiado")
	default:
		WriteJSONError(w, http.StatusInternalServerError, st.Message())
	}
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("cuerpo de la solicitud vacío")
		}
		return errors.New("formato de solicitud inválido")
	}
	return nil
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

// ============================================================================
// Request principal
// ============================================================================

type contextKey struct{}

// WithUser stores the authenticated caller in ctx.
func WithUser(ctx context.Context, user *access.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFrom returns the authenticated caller, or nil.
func UserFrom(r *http.Request) *access.Principal {
	user, _ := r.Context().Value(contextKey{}).(*access.Principal)
	return user
}

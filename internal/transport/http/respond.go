package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/observability/middleware"
)

type successBody struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	User    *dto.PublicUser    `json:"user,omitempty"`
	Token   *dto.TokenResponse `json:"token,omitempty"`
}

type errorBody struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeOK(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, successBody{Success: true, Message: msg})
}

// writeError maps err to a status and a client-safe message. Anything not
// recognised is logged and reported as a plain 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", append([]any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		}, middleware.LogAttrs(r.Context())...)...)
	}
	writeJSON(w, status, errorBody{Success: false, StatusCode: status, Message: msg})
}

func statusFor(err error) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Msg
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrOTPNotFoundOrExpired):
		return http.StatusBadRequest, "OTP not found or expired"
	case errors.Is(err, domain.ErrInvalidOTP):
		return http.StatusBadRequest, "Invalid OTP"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "You are not authenticated!"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusBadGateway, "Failed to upload image"
	case errors.Is(err, domain.ErrDispatchFailed):
		return http.StatusBadGateway, "Failed to send OTP email"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

package http

import (
	"net/http"
	"strings"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/netutil"
	"anichat/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type handler struct {
	auth       service.AuthService
	messages   service.MessageService
	cookies    CookieConfig
	trustProxy bool
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	req, avatar, err := decodeSignup(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.Signup(r.Context(), req, avatar)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, res.Message)
}

func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyOTPRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.VerifyOTP(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeSession(w, res)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ip := netutil.ClientIP(r, h.trustProxy)
	ua := netutil.TruncateUserAgent(r.UserAgent())
	res, err := h.auth.Login(r.Context(), req, ip, ua)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeSession(w, res)
}

func (h *handler) writeSession(w http.ResponseWriter, res *dto.SessionResponse) {
	h.cookies.set(w, res.Token.AccessToken)
	writeJSON(w, http.StatusOK, successBody{
		Success: true,
		Message: res.Message,
		User:    &res.User,
		Token:   &res.Token,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	_ = h.auth.Logout(r.Context(), h.cookies.token(r))
	h.cookies.clear(w)
	writeOK(w, "User logged out successfully")
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.ForgotPassword(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, res.Message)
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.auth.ResetPassword(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, res.Message)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := currentUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var avatar *dto.Upload
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			writeError(w, r, err)
			return
		}
		if avatar, err = formFile(r, "avatar"); err != nil {
			writeError(w, r, err)
			return
		}
	}
	user, err := h.auth.UpdateProfile(r.Context(), id, avatar)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true, Message: "Profile updated successfully", User: user})
}

func (h *handler) checkAuth(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true, Message: "User authenticated successfully", User: user})
}

func (h *handler) contacts(w http.ResponseWriter, r *http.Request) {
	me, err := currentUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := h.messages.Contacts(r.Context(), me)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (h *handler) conversation(w http.ResponseWriter, r *http.Request) {
	me, err := currentUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	other, err := pathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := h.messages.Conversation(r.Context(), me, other)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	me, err := currentUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := pathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req dto.SendMessageRequest
	if err := decodeJSON(w, r, maxMessageBody, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.messages.Send(r.Context(), me, to, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Message sent", "data": msg})
}

func pathUserID(r *http.Request) (domain.UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, domain.Invalid("Invalid user id")
	}
	return id, nil
}

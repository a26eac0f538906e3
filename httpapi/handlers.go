package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/middleware"
	"go.uber.org/zap"
)

// Handlers serves the auth endpoints.
type Handlers struct {
	svc      Service
	logger   *zap.Logger
	health   func(context.Context) error
	maxBytes int64
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in goToken.LoginRequest
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Envelope(goToken.MessageLoginSucceeded))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in goToken.RegisterRequest
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Envelope(goToken.MessageRegisterSucceeded))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in goToken.RefreshRequest
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.Refresh(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Envelope(goToken.MessageRefreshSucceeded))
}

// Logout revokes the refresh token of the bearer's user.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, goToken.ErrUnauthorized)
		return
	}
	if err := h.svc.Logout(r.Context(), p.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goToken.StatusResponse{IsSuccess: true, Message: goToken.MessageLogoutSucceeded})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, goToken.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, goToken.PrincipalResponse{
		IsSuccess:  true,
		Message:    "OK",
		UserID:     p.UserID,
		Username:   p.Username,
		Email:      p.Email,
		FullName:   p.FullName,
		EmployeeID: p.EmployeeID,
		Role:       p.Role,
		ExpiresAt:  p.ExpiresAt.UTC(),
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, goToken.StatusResponse{Message: goToken.MessageUnavailable})
			return
		}
	}
	writeJSON(w, http.StatusOK, goToken.StatusResponse{IsSuccess: true, Message: "OK"})
}

// decode reads a single JSON object and rejects unknown fields. It writes
// the 400 itself and reports whether the handler should continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		h.writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(middleware.HeaderRequestID)),
			zap.Error(err),
		)
	}
	h.writeFailure(w, status, goToken.MessageOf(err))
}

func (h *Handlers) writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, goToken.AuthResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

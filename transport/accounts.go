package transport

import (
	"errors"
	"log/slog"
	"net/http"

	"activity-hub/auth"
	huberrors "activity-hub/errors"
	"activity-hub/services"

	"github.com/goccy/go-json"
)

// AccountsHandler issues the tokens the /chat handshake consumes. It is the
// thin identity-management edge the hub otherwise treats as external.
type AccountsHandler struct {
	log     *slog.Logger
	service services.IAuthService
}

func NewAccountsHandler(log *slog.Logger, service services.IAuthService) *AccountsHandler {
	return &AccountsHandler{log: log, service: service}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *AccountsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	token, err := h.service.Register(req.Email, req.DisplayName, req.Password)
	switch {
	case errors.Is(err, huberrors.ErrUserAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
	case errors.Is(err, huberrors.ErrInvalidPassword):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		h.log.Error("Registration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "registration failed"})
	default:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	}
}

func (h *AccountsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if err := auth.ValidateLogin(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token, err := h.service.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, huberrors.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case err != nil:
		h.log.Error("Login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "login failed"})
	default:
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

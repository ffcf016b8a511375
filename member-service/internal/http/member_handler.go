package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/member-service/internal/domain"
	"github.com/fjod/shopgate/member-service/internal/repository"
	"github.com/fjod/shopgate/member-service/internal/service"
	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

const headerUserID = "X-User-Id"

type MemberService interface {
	Register(ctx context.Context, email, password, name string) (*domain.Member, error)
	Login(ctx context.Context, email, password string) (*domain.Member, error)
	Profile(ctx context.Context, id int64) (*domain.Member, error)
	Status(ctx context.Context, id int64) (string, error)
}

type MemberHandler struct {
	members MemberService
	logger  zerolog.Logger
}

func NewMemberHandler(members MemberService, logger zerolog.Logger) *MemberHandler {
	return &MemberHandler{members: members, logger: logger}
}

type RegisterRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the flat body the gateway turns into a session.
type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id,omitempty"`
}

type statusResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Status   string `json:"status,omitempty"`
	MemberID int64  `json:"memberId"`
}

func (h *MemberHandler) Register(r chi.Router) {
	r.Route("/api/member", func(r chi.Router) {
		r.Post("/register", h.RegisterMember)
		r.Post("/login", h.Login)
		r.HandleFunc("/logout", h.Logout)
		r.Get("/profile", h.Profile)
		r.Get("/status/{memberId}", h.Status)
	})
}

func (h *MemberHandler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "invalid JSON body"})
		return
	}

	m, err := h.members.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, authResponse{Success: true, Message: "Registration successful", UserID: m.ID})
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, authResponse{Message: err.Error()})
	case errors.Is(err, repository.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, authResponse{Message: "Email is already registered"})
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("registration failed")
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Registration failed"})
	}
}

func (h *MemberHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "invalid JSON body"})
		return
	}

	m, err := h.members.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Login successful", UserID: m.ID})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, authResponse{Message: "Invalid email or password"})
	case errors.Is(err, service.ErrMemberNotActive):
		writeJSON(w, http.StatusForbidden, authResponse{Message: "Member status is not active"})
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("login failed")
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Login failed"})
	}
}

// Logout has no server-side session to drop; the gateway revokes the token.
func (h *MemberHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDFromHeader(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "Invalid user ID format"})
		return
	}
	h.logger.Info().Int64("member_id", id).Msg("member logged out")
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Logout successful"})
}

func (h *MemberHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDFromHeader(r)
	if !ok {
		envelope.WriteError(w, http.StatusBadRequest, envelope.CodeBadRequest, "Invalid user ID format")
		return
	}

	m, err := h.members.Profile(r.Context(), id)
	if errors.Is(err, repository.ErrMemberNotFound) {
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeNotFound, "Member not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Int64("member_id", id).Msg("profile lookup failed")
		envelope.WriteError(w, http.StatusInternalServerError, envelope.CodeInternal, "An error occurred while retrieving profile")
		return
	}
	envelope.Write(w, envelope.OK(m, "Profile retrieved successfully"))
}

func (h *MemberHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memberId"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, statusResponse{Message: "Invalid member ID format"})
		return
	}

	status, err := h.members.Status(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Member status retrieved", Status: status, MemberID: id})
	case errors.Is(err, repository.ErrMemberNotFound):
		writeJSON(w, http.StatusNotFound, statusResponse{Message: "Member not found", MemberID: id})
	default:
		logger.FromContext(r.Context()).Error().Err(err).Int64("member_id", id).Msg("status lookup failed")
		writeJSON(w, http.StatusInternalServerError, statusResponse{Message: "Status lookup failed", MemberID: id})
	}
}

func memberIDFromHeader(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

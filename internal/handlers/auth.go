package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendzone/backend/internal/auth"
	"github.com/friendzone/backend/internal/logging"
	"github.com/friendzone/backend/internal/models"
	"github.com/friendzone/backend/internal/repositories"
)

// AuthHandler implements account registration and token endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Register handles POST /register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondJSON(ctx, w, http.StatusTooManyRequests, failure("too many requests"))
		return
	}

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, failure("authentication services unavailable"))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, failure("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		logger.Warn("register missing fields", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, failure("name, email and password are required"))
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("register invalid email", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, failure("invalid email address"))
		return
	}

	if len(req.Password) < 8 {
		logger.Warn("register password too short", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, failure("password must be at least 8 characters"))
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondJSON(ctx, w, http.StatusConflict, failure("User already exists"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register email lookup failed", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("Internal server error"))
		return
	}

	if _, err := h.Users.FindByName(ctx, req.Name); err == nil {
		respondJSON(ctx, w, http.StatusConflict, failure("Name already in use"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register name lookup failed", "error", err, "name", req.Name)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("Internal server error"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("failed to secure password"))
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a race with a concurrent registration for the same email or name.
			respondJSON(ctx, w, http.StatusConflict, failure("User already exists"))
			return
		}
		logger.Error("register failed to create user", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("Internal server error"))
		return
	}

	logger.Info("user registered", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, registerResponse{Success: true, UserID: user.ID})
}

// Login handles POST /login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, failure("too many requests"))
		return
	}

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("authentication services unavailable"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, failure("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, failure("email and password are required"))
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, failure("User not found"))
			return
		}
		logger.Error("login user lookup failed", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("Internal server error"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusBadRequest, failure("Invalid credentials"))
		return
	}

	tokens, err := h.Sessions.Issue(ctx, models.Identity{UserID: user.ID, Email: user.Email, Username: user.Name})
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, failure("Internal server error"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, loginResponse{
		Success:      true,
		Token:        tokens.AccessToken,
		UserID:       user.ID,
		Username:     user.Name,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.AccessExpiresAt,
	})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, failure("session service unavailable"))
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, failure("invalid request body"))
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondJSON(ctx, w, http.StatusBadRequest, failure("refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondJSON(ctx, w, status, failure("unable to refresh session"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, refreshResponse{
		Success:      true,
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.AccessExpiresAt,
	})
}

// VerifyToken handles POST /verify-token. The access token is read from a
// bearer Authorization header.
func (h AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, failure("session service unavailable"))
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, failure("No token provided"))
		return
	}

	identity, err := h.Sessions.Verify(token)
	if err != nil {
		logger.Warn("token verification failed", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, failure("Invalid token"))
		return
	}

	logger.Debug("token verified", "userId", identity.UserID)
	respondJSON(ctx, w, http.StatusOK, statusResponse{Success: true})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func failure(message string) statusResponse {
	return statusResponse{Success: false, Message: message}
}

type registerResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type loginResponse struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type refreshResponse struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status)
	}
}

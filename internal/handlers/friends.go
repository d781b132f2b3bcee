package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendzone/backend/internal/logging"
	"github.com/friendzone/backend/internal/metrics"
	"github.com/friendzone/backend/internal/models"
	"github.com/friendzone/backend/internal/relationships"
)

// FriendHandler exposes the friend graph over HTTP. It validates identifiers,
// forwards to the relationship service and maps its errors onto status codes.
type FriendHandler struct {
	Relationships RelationshipService
	Limiter       RateLimiter
	Metrics       *metrics.Registry
}

// SendRequest handles POST /friend-request.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	const op = "sendRequest"
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "friend-request") {
		logger.Warn("friend request rate limited", "clientIp", clientIP(r))
		h.Metrics.FriendOperation(op, metrics.OutcomeLimited)
		respondJSON(ctx, w, http.StatusTooManyRequests, messageResponse{Message: "too many requests"})
		return
	}

	var req sendFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		h.fail(w, r, op, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SenderID == "" || req.RecipientID == "" {
		h.fail(w, r, op, http.StatusBadRequest, "Sender and recipient IDs are required")
		return
	}
	if !validID(req.SenderID) || !validID(req.RecipientID) {
		h.fail(w, r, op, http.StatusBadRequest, "invalid user id")
		return
	}
	if h.Relationships == nil {
		h.unavailable(w, r, op)
		return
	}

	requestID, err := h.Relationships.SendRequest(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}

	h.Metrics.FriendOperation(op, metrics.OutcomeSuccess)
	respondJSON(ctx, w, http.StatusCreated, sendFriendResponse{Message: "Friend request sent successfully", RequestID: requestID})
}

// ListIncoming handles GET /friend-requests?userId=.
func (h FriendHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	const op = "listIncoming"
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if !validID(userID) {
		h.fail(w, r, op, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if h.Relationships == nil {
		h.unavailable(w, r, op)
		return
	}

	incoming, err := h.Relationships.ListIncoming(ctx, userID)
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}

	out := make([]incomingRequestDTO, 0, len(incoming))
	for _, item := range incoming {
		out = append(out, incomingRequestDTO{
			ID:          item.Request.ID,
			SenderID:    item.Request.SenderID,
			RecipientID: item.Request.RecipientID,
			Status:      item.Request.Status,
			CreatedAt:   item.Request.CreatedAt,
			Sender:      toUserDTO(item.Sender),
		})
	}

	h.Metrics.FriendOperation(op, metrics.OutcomeSuccess)
	respondJSON(ctx, w, http.StatusOK, out)
}

// Accept handles POST /accept-friend-request.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "accept", "Friend request accepted", func(req respondFriendRequest) error {
		return h.Relationships.Accept(r.Context(), req.RequestID, req.UserID)
	})
}

// Reject handles POST /reject-friend-request.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "reject", "Friend request rejected", func(req respondFriendRequest) error {
		return h.Relationships.Reject(r.Context(), req.RequestID, req.UserID)
	})
}

func (h FriendHandler) respond(w http.ResponseWriter, r *http.Request, op, success string, apply func(respondFriendRequest) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req respondFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend response payload", "operation", op, "error", err)
		h.fail(w, r, op, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RequestID == "" || req.UserID == "" {
		h.fail(w, r, op, http.StatusBadRequest, "Request ID and user ID are required")
		return
	}
	if !validID(req.RequestID) || !validID(req.UserID) {
		h.fail(w, r, op, http.StatusBadRequest, "invalid id")
		return
	}
	if h.Relationships == nil {
		h.unavailable(w, r, op)
		return
	}

	if err := apply(req); err != nil {
		h.storeError(w, r, op, err)
		return
	}

	h.Metrics.FriendOperation(op, metrics.OutcomeSuccess)
	respondJSON(ctx, w, http.StatusOK, messageResponse{Message: success})
}

// ListFriends handles GET /friends?userId=.
func (h FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	const op = "listFriends"
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if !validID(userID) {
		h.fail(w, r, op, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if h.Relationships == nil {
		h.unavailable(w, r, op)
		return
	}

	friends, err := h.Relationships.ListFriends(ctx, userID)
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}

	out := make([]userDTO, 0, len(friends))
	for _, friend := range friends {
		out = append(out, toUserDTO(friend.Summary()))
	}

	h.Metrics.FriendOperation(op, metrics.OutcomeSuccess)
	respondJSON(ctx, w, http.StatusOK, out)
}

// Unfriend handles POST /unfriend.
func (h FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	const op = "unfriend"
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req unfriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid unfriend payload", "error", err)
		h.fail(w, r, op, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" || req.FriendID == "" {
		h.fail(w, r, op, http.StatusBadRequest, "User ID and friend ID are required")
		return
	}
	if !validID(req.UserID) || !validID(req.FriendID) {
		h.fail(w, r, op, http.StatusBadRequest, "invalid user id")
		return
	}
	if h.Relationships == nil {
		h.unavailable(w, r, op)
		return
	}

	if err := h.Relationships.Unfriend(ctx, req.UserID, req.FriendID); err != nil {
		h.storeError(w, r, op, err)
		return
	}

	h.Metrics.FriendOperation(op, metrics.OutcomeSuccess)
	respondJSON(ctx, w, http.StatusOK, messageResponse{Message: "Friend removed successfully"})
}

func (h FriendHandler) fail(w http.ResponseWriter, r *http.Request, op string, status int, message string) {
	outcome := metrics.OutcomeClientError
	if status >= http.StatusInternalServerError {
		outcome = metrics.OutcomeError
	}
	h.Metrics.FriendOperation(op, outcome)
	respondJSON(r.Context(), w, status, messageResponse{Message: message})
}

func (h FriendHandler) unavailable(w http.ResponseWriter, r *http.Request, op string) {
	logging.FromContext(r.Context()).Error("relationship service unavailable", "operation", op)
	h.fail(w, r, op, http.StatusInternalServerError, "friend service unavailable")
}

func (h FriendHandler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := logging.FromContext(r.Context())

	switch {
	case errors.Is(err, relationships.ErrDuplicateRequest):
		h.fail(w, r, op, http.StatusConflict, "Friend request already sent")
	case errors.Is(err, relationships.ErrNotFound):
		h.fail(w, r, op, http.StatusNotFound, "Not found")
	case errors.Is(err, relationships.ErrInvalidState):
		h.fail(w, r, op, http.StatusBadRequest, "Friend request already handled")
	case errors.Is(err, relationships.ErrInvalidInput):
		h.fail(w, r, op, http.StatusBadRequest, "Invalid request")
	default:
		logger.Error("friend operation failed", "operation", op, "error", err)
		h.fail(w, r, op, http.StatusInternalServerError, "Internal server error")
	}
}

func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

type sendFriendRequest struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

type respondFriendRequest struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
}

type unfriendRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sendFriendResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

type userDTO struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserDTO(summary models.UserSummary) userDTO {
	return userDTO{ID: summary.ID, Name: summary.Name, Email: summary.Email}
}

type incomingRequestDTO struct {
	ID          string    `json:"_id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Sender      userDTO   `json:"sender"`
}

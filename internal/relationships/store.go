package relationships

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendzone/backend/internal/logging"
	"github.com/friendzone/backend/internal/models"
)

// Store applies friend request transitions and keeps the per-user friends and
// pending peer sets consistent with the request records.
//
// The backing Records only guarantee single-record atomicity, so every
// operation is an ordered sequence of idempotent writes. A failure part way
// through is returned to the caller, and repeating the same call converges on
// the same end state.
type Store struct {
	records Records
	now     func() time.Time
	newID   func() string
}

// NewStore constructs a Store over the provided records.
func NewStore(records Records) *Store {
	if records == nil {
		panic("relationships: records must not be nil")
	}
	return &Store{
		records: records,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// WithNowFunc overrides the clock used for request timestamps.
func (s *Store) WithNowFunc(now func() time.Time) *Store {
	s.now = now
	return s
}

// SendRequest creates a pending request from sender to recipient and returns its id.
func (s *Store) SendRequest(ctx context.Context, senderID, recipientID string) (_ string, err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.SendRequest")
	defer func() { span.Fail(err); span.End() }()

	senderID, recipientID = strings.TrimSpace(senderID), strings.TrimSpace(recipientID)
	if senderID == "" || recipientID == "" {
		return "", fmt.Errorf("sender and recipient are required: %w", ErrInvalidInput)
	}
	if senderID == recipientID {
		return "", fmt.Errorf("cannot send a friend request to yourself: %w", ErrInvalidInput)
	}

	sender, err := s.records.FindUser(ctx, senderID)
	if err != nil {
		return "", fmt.Errorf("load sender: %w", err)
	}
	recipient, err := s.records.FindUser(ctx, recipientID)
	if err != nil {
		return "", fmt.Errorf("load recipient: %w", err)
	}

	if slices.Contains(sender.Friends, recipientID) || slices.Contains(recipient.Friends, senderID) {
		return "", fmt.Errorf("users are already friends: %w", ErrDuplicateRequest)
	}

	request := models.FriendRequest{
		ID:          s.newID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.FriendStatusPending,
		CreatedAt:   s.now(),
	}

	if err := s.records.InsertRequest(ctx, request); err != nil {
		if !errors.Is(err, ErrDuplicateRequest) {
			return "", fmt.Errorf("insert friend request: %w", err)
		}
		if err := s.healPendingLinkage(ctx, senderID, recipientID); err != nil {
			return "", err
		}
		return "", fmt.Errorf("friend request already exists: %w", ErrDuplicateRequest)
	}

	if err := s.link(ctx, request); err != nil {
		return "", err
	}
	if err := s.settleLinkage(ctx, request); err != nil {
		return "", err
	}

	logging.FromContext(ctx).Info("friend request sent", "requestId", request.ID, "senderId", senderID, "recipientId", recipientID)
	return request.ID, nil
}

// healPendingLinkage re-applies the pending peer linkage of an existing
// pending request so a retried send repairs a previously interrupted one.
func (s *Store) healPendingLinkage(ctx context.Context, a, b string) error {
	existing, err := s.records.FindRequestByPair(ctx, a, b)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load existing friend request: %w", err)
	}
	if existing.Status != models.FriendStatusPending {
		return nil
	}
	if err := s.link(ctx, existing); err != nil {
		return err
	}
	return s.settleLinkage(ctx, existing)
}

// settleLinkage undoes a link that raced with an accept or reject of the same
// request. The transition's unlink may already have run, so the request is
// re-read after linking and the peers are unlinked again unless the pair
// still holds a pending request.
func (s *Store) settleLinkage(ctx context.Context, request models.FriendRequest) error {
	current, err := s.records.FindRequest(ctx, request.ID)
	switch {
	case err == nil && current.Status == models.FriendStatusPending:
		return nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return fmt.Errorf("reload friend request: %w", err)
	}

	other, err := s.records.FindRequestByPair(ctx, request.SenderID, request.RecipientID)
	switch {
	case err == nil && other.Status == models.FriendStatusPending:
		return nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return fmt.Errorf("reload friend request pair: %w", err)
	}

	logging.FromContext(ctx).Warn("friend request resolved while linking", "requestId", request.ID, "status", current.Status)
	return s.unlink(ctx, request)
}

func (s *Store) link(ctx context.Context, request models.FriendRequest) error {
	if err := s.records.AddToSet(ctx, request.SenderID, FieldPendingPeers, request.RecipientID); err != nil {
		return fmt.Errorf("link sender pending peers: %w", err)
	}
	if err := s.records.AddToSet(ctx, request.RecipientID, FieldPendingPeers, request.SenderID); err != nil {
		return fmt.Errorf("link recipient pending peers: %w", err)
	}
	return nil
}

func (s *Store) unlink(ctx context.Context, request models.FriendRequest) error {
	if err := s.records.RemoveFromSet(ctx, request.SenderID, FieldPendingPeers, request.RecipientID); err != nil {
		return fmt.Errorf("unlink sender pending peers: %w", err)
	}
	if err := s.records.RemoveFromSet(ctx, request.RecipientID, FieldPendingPeers, request.SenderID); err != nil {
		return fmt.Errorf("unlink recipient pending peers: %w", err)
	}
	return nil
}

// ListIncoming returns the pending requests addressed to userID with their senders.
func (s *Store) ListIncoming(ctx context.Context, userID string) (_ []models.IncomingRequest, err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.ListIncoming")
	defer func() { span.Fail(err); span.End() }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user is required: %w", ErrInvalidInput)
	}

	requests, err := s.records.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming friend requests: %w", err)
	}
	return requests, nil
}

// Accept turns the request into a friendship. When userID is set it must be
// the request's recipient.
func (s *Store) Accept(ctx context.Context, requestID, userID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.Accept")
	defer func() { span.Fail(err); span.End() }()

	request, err := s.claim(ctx, requestID, models.FriendStatusAccepted, func(r models.FriendRequest) bool {
		return userID == "" || userID == r.RecipientID
	})
	if err != nil {
		return err
	}

	if err := s.completeAccept(ctx, request); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("friend request accepted", "requestId", request.ID, "senderId", request.SenderID, "recipientId", request.RecipientID)
	return nil
}

// Reject discards the request without creating a friendship. When userID is
// set it must be one of the request's endpoints.
func (s *Store) Reject(ctx context.Context, requestID, userID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.Reject")
	defer func() { span.Fail(err); span.End() }()

	request, err := s.claim(ctx, requestID, models.FriendStatusRejected, func(r models.FriendRequest) bool {
		return userID == "" || userID == r.RecipientID || userID == r.SenderID
	})
	if err != nil {
		return err
	}

	if err := s.completeReject(ctx, request); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("friend request rejected", "requestId", request.ID, "senderId", request.SenderID, "recipientId", request.RecipientID)
	return nil
}

// claim moves a pending request into the target status. A request already
// holding target belongs to an interrupted attempt and is returned so the
// caller can resume it.
func (s *Store) claim(ctx context.Context, requestID, target string, allowed func(models.FriendRequest) bool) (models.FriendRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return models.FriendRequest{}, fmt.Errorf("request is required: %w", ErrInvalidInput)
	}

	request, err := s.records.FindRequest(ctx, requestID)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("load friend request: %w", err)
	}
	if !allowed(request) {
		return models.FriendRequest{}, fmt.Errorf("friend request %s not addressed to caller: %w", requestID, ErrNotFound)
	}

	switch request.Status {
	case target:
		return request, nil
	case models.FriendStatusPending:
	default:
		return models.FriendRequest{}, fmt.Errorf("friend request is %s: %w", request.Status, ErrInvalidState)
	}

	err = s.records.TransitionRequest(ctx, requestID, models.FriendStatusPending, target)
	switch {
	case err == nil:
		request.Status = target
		return request, nil
	case errors.Is(err, ErrInvalidState):
		// Lost a race; only another attempt at the same transition may continue.
		current, findErr := s.records.FindRequest(ctx, requestID)
		if findErr != nil {
			return models.FriendRequest{}, fmt.Errorf("reload friend request: %w", findErr)
		}
		if current.Status == target {
			return current, nil
		}
		return models.FriendRequest{}, fmt.Errorf("friend request is %s: %w", current.Status, ErrInvalidState)
	default:
		return models.FriendRequest{}, fmt.Errorf("claim friend request: %w", err)
	}
}

func (s *Store) completeAccept(ctx context.Context, request models.FriendRequest) error {
	if err := s.records.AddToSet(ctx, request.SenderID, FieldFriends, request.RecipientID); err != nil {
		return fmt.Errorf("add sender friend: %w", err)
	}
	if err := s.records.AddToSet(ctx, request.RecipientID, FieldFriends, request.SenderID); err != nil {
		return fmt.Errorf("add recipient friend: %w", err)
	}
	if err := s.unlink(ctx, request); err != nil {
		return err
	}
	if err := s.records.DeleteRequest(ctx, request.ID); err != nil {
		return fmt.Errorf("delete accepted friend request: %w", err)
	}
	return nil
}

func (s *Store) completeReject(ctx context.Context, request models.FriendRequest) error {
	if err := s.unlink(ctx, request); err != nil {
		return err
	}
	if err := s.records.DeleteRequest(ctx, request.ID); err != nil {
		return fmt.Errorf("delete rejected friend request: %w", err)
	}
	return nil
}

// ListFriends returns the users that are mutual friends of userID. Ids that
// no longer resolve, or edges present on one side only, are left out.
func (s *Store) ListFriends(ctx context.Context, userID string) (_ []models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.ListFriends")
	defer func() { span.Fail(err); span.End() }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user is required: %w", ErrInvalidInput)
	}

	user, err := s.records.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	ids := slices.DeleteFunc(slices.Clone(user.Friends), func(id string) bool { return id == userID })
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	candidates, err := s.records.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}

	friends := make([]models.User, 0, len(candidates))
	for _, candidate := range candidates {
		if slices.Contains(candidate.Friends, userID) {
			friends = append(friends, candidate)
		}
	}
	if len(friends) != len(ids) {
		logging.FromContext(ctx).Warn("friends list contains unresolved entries", "userId", userID, "listed", len(ids), "resolved", len(friends))
	}
	return friends, nil
}

// Unfriend removes the friendship between userID and friendID. Removing an
// edge that does not exist is not an error.
func (s *Store) Unfriend(ctx context.Context, userID, friendID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.Unfriend")
	defer func() { span.Fail(err); span.End() }()

	userID, friendID = strings.TrimSpace(userID), strings.TrimSpace(friendID)
	if userID == "" || friendID == "" {
		return fmt.Errorf("user and friend are required: %w", ErrInvalidInput)
	}
	if userID == friendID {
		return fmt.Errorf("cannot unfriend yourself: %w", ErrInvalidInput)
	}

	if err := s.records.RemoveFromSet(ctx, userID, FieldFriends, friendID); err != nil {
		return fmt.Errorf("remove friend from user: %w", err)
	}
	if err := s.records.RemoveFromSet(ctx, friendID, FieldFriends, userID); err != nil {
		return fmt.Errorf("remove user from friend: %w", err)
	}

	logging.FromContext(ctx).Info("friendship removed", "userId", userID, "friendId", friendID)
	return nil
}

package handlers

import (
	"context"

	"github.com/friendzone/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth and directory handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByName(ctx context.Context, name string) (models.User, error)
	Search(ctx context.Context, query, excludeID string) ([]models.User, error)
}

// SessionManager issues, refreshes and verifies authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, identity models.Identity) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Verify(accessToken string) (models.Identity, error)
}

// RelationshipService captures the friend graph operations used by the friend handlers.
type RelationshipService interface {
	SendRequest(ctx context.Context, senderID, recipientID string) (string, error)
	ListIncoming(ctx context.Context, userID string) ([]models.IncomingRequest, error)
	Accept(ctx context.Context, requestID, userID string) error
	Reject(ctx context.Context, requestID, userID string) error
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
	Unfriend(ctx context.Context, userID, friendID string) error
}

package relationships

import (
	"context"

	"github.com/friendzone/backend/internal/models"
)

// SetField names a set-valued relationship field on a user record.
type SetField string

const (
	FieldFriends      SetField = "friends"
	FieldPendingPeers SetField = "pending_peers"
)

// Records is the persistence port used by Store. Every method must be atomic
// on the single record it touches; nothing spans records.
type Records interface {
	// FindUser returns ErrNotFound when the user does not exist.
	FindUser(ctx context.Context, userID string) (models.User, error)
	// FindUsers returns the existing users among ids. Unknown ids are skipped.
	FindUsers(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// InsertRequest returns ErrDuplicateRequest when a record for the same
	// unordered pair exists and ErrNotFound when either user is missing.
	InsertRequest(ctx context.Context, request models.FriendRequest) error
	FindRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	FindRequestByPair(ctx context.Context, a, b string) (models.FriendRequest, error)
	// TransitionRequest moves the request from one status to another only if it
	// currently holds from. It returns ErrNotFound when the record is absent and
	// ErrInvalidState when the status differs.
	TransitionRequest(ctx context.Context, requestID, from, to string) error
	// DeleteRequest is a no-op when the record is already gone.
	DeleteRequest(ctx context.Context, requestID string) error
	// ListIncoming returns pending requests addressed to recipientID joined
	// with their sender, oldest first.
	ListIncoming(ctx context.Context, recipientID string) ([]models.IncomingRequest, error)
	ListRequests(ctx context.Context) ([]models.FriendRequest, error)

	// AddToSet and RemoveFromSet are idempotent and succeed without effect when
	// the user does not exist.
	AddToSet(ctx context.Context, userID string, field SetField, member string) error
	RemoveFromSet(ctx context.Context, userID string, field SetField, member string) error
	ReplaceSet(ctx context.Context, userID string, field SetField, members []string) error
}

package models

import "time"

// User represents an account within the friend network.
type User struct {
	ID           string
	Name         string
	Email        string
	Password     string
	Friends      []string
	PendingPeers []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary projects the public identity fields of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary is the public (id, name, email) view of a user.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// Friend request statuses. Accepted and rejected are only held by a record
// between claiming the transition and deleting the record.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

// FriendRequest represents an outstanding proposal between two users.
type FriendRequest struct {
	ID          string
	SenderID    string
	RecipientID string
	Status      string
	CreatedAt   time.Time
}

// PairKey returns the unordered pair key shared by both directions of a request.
func (r FriendRequest) PairKey() string {
	return PairKey(r.SenderID, r.RecipientID)
}

// PairKey builds the key identifying the unordered pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// IncomingRequest joins a pending request with its sender.
type IncomingRequest struct {
	Request FriendRequest
	Sender  UserSummary
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Identity is the set of claims embedded in an access token.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

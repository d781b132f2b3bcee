package relationships

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/friendzone/backend/internal/models"
)

// NewInMemoryRecords returns a Records implementation backed by in-memory maps.
func NewInMemoryRecords() *InMemoryRecords {
	return &InMemoryRecords{
		users:    make(map[string]models.User),
		requests: make(map[string]models.FriendRequest),
		pairs:    make(map[string]string),
	}
}

// InMemoryRecords implements Records for tests and local development.
type InMemoryRecords struct {
	mu       sync.RWMutex
	users    map[string]models.User
	requests map[string]models.FriendRequest
	// pairs maps an unordered pair key to the id of the request holding it.
	pairs map[string]string
}

// PutUser stores or replaces a user record.
func (s *InMemoryRecords) PutUser(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = cloneUser(user)
	s.mu.Unlock()
}

// FindUser returns a copy of the stored user.
func (s *InMemoryRecords) FindUser(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

// FindUsers returns the users that exist among ids, preserving the order of ids.
func (s *InMemoryRecords) FindUsers(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, cloneUser(user))
		}
	}
	return out, nil
}

// ListUsers returns every user ordered by creation time.
func (s *InMemoryRecords) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, cloneUser(user))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// InsertRequest stores the request unless its pair key is already held.
func (s *InMemoryRecords) InsertRequest(_ context.Context, request models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[request.SenderID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[request.RecipientID]; !ok {
		return ErrNotFound
	}
	key := request.PairKey()
	if _, ok := s.pairs[key]; ok {
		return ErrDuplicateRequest
	}
	if _, ok := s.requests[request.ID]; ok {
		return ErrDuplicateRequest
	}
	s.requests[request.ID] = request
	s.pairs[key] = request.ID
	return nil
}

// FindRequest loads a request by id.
func (s *InMemoryRecords) FindRequest(_ context.Context, requestID string) (models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return models.FriendRequest{}, ErrNotFound
	}
	return request, nil
}

// FindRequestByPair loads the request held by the unordered pair {a, b}.
func (s *InMemoryRecords) FindRequestByPair(_ context.Context, a, b string) (models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[models.PairKey(a, b)]
	if !ok {
		return models.FriendRequest{}, ErrNotFound
	}
	return s.requests[id], nil
}

// TransitionRequest performs a compare-and-set on the request status.
func (s *InMemoryRecords) TransitionRequest(_ context.Context, requestID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	if request.Status != from {
		return ErrInvalidState
	}
	request.Status = to
	s.requests[requestID] = request
	return nil
}

// DeleteRequest removes the request and releases its pair key.
func (s *InMemoryRecords) DeleteRequest(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil
	}
	delete(s.requests, requestID)
	if s.pairs[request.PairKey()] == requestID {
		delete(s.pairs, request.PairKey())
	}
	return nil
}

// ListIncoming returns pending requests for the recipient joined with their sender.
func (s *InMemoryRecords) ListIncoming(_ context.Context, recipientID string) ([]models.IncomingRequest, error) {
	s.mu.RLock()
	var out []models.IncomingRequest
	for _, request := range s.requests {
		if request.RecipientID != recipientID || request.Status != models.FriendStatusPending {
			continue
		}
		sender, ok := s.users[request.SenderID]
		if !ok {
			continue
		}
		out = append(out, models.IncomingRequest{Request: request, Sender: sender.Summary()})
	}
	s.mu.RUnlock()
	sortIncoming(out)
	return out, nil
}

// ListRequests returns every stored request regardless of status.
func (s *InMemoryRecords) ListRequests(_ context.Context) ([]models.FriendRequest, error) {
	s.mu.RLock()
	out := make([]models.FriendRequest, 0, len(s.requests))
	for _, request := range s.requests {
		out = append(out, request)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AddToSet adds member to the field unless it is already present.
func (s *InMemoryRecords) AddToSet(_ context.Context, userID string, field SetField, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	set := fieldOf(&user, field)
	if !slices.Contains(*set, member) {
		*set = append(*set, member)
	}
	s.users[userID] = user
	return nil
}

// RemoveFromSet removes every occurrence of member from the field.
func (s *InMemoryRecords) RemoveFromSet(_ context.Context, userID string, field SetField, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	set := fieldOf(&user, field)
	*set = slices.DeleteFunc(*set, func(id string) bool { return id == member })
	s.users[userID] = user
	return nil
}

// ReplaceSet overwrites the field with members.
func (s *InMemoryRecords) ReplaceSet(_ context.Context, userID string, field SetField, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	*fieldOf(&user, field) = slices.Clone(members)
	s.users[userID] = user
	return nil
}

func fieldOf(user *models.User, field SetField) *[]string {
	if field == FieldFriends {
		return &user.Friends
	}
	return &user.PendingPeers
}

func cloneUser(user models.User) models.User {
	user.Friends = slices.Clone(user.Friends)
	user.PendingPeers = slices.Clone(user.PendingPeers)
	return user
}

func sortIncoming(requests []models.IncomingRequest) {
	sort.Slice(requests, func(i, j int) bool {
		a, b := requests[i].Request, requests[j].Request
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

var _ Records = (*InMemoryRecords)(nil)

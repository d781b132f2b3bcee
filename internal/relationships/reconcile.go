package relationships

import (
	"context"
	"fmt"
	"slices"

	"github.com/friendzone/backend/internal/logging"
	"github.com/friendzone/backend/internal/models"
)

// ReconcileReport summarises the repairs made by Reconcile.
type ReconcileReport struct {
	CompletedAccepts   int
	CompletedRejects   int
	PendingPeersFixed  int
	FriendEdgesDropped int
}

// Reconcile rebuilds the per-user relationship fields from the request
// records. It finishes transitions that were claimed but never completed,
// recomputes every pending peer set from the pending requests, and drops
// friend ids that are self-referential, unknown or one-sided.
//
// Reconcile assumes no other writers are active.
func (s *Store) Reconcile(ctx context.Context) (report ReconcileReport, err error) {
	ctx, span := logging.StartSpan(ctx, "relationships.Reconcile")
	defer func() { span.Fail(err); span.End() }()

	requests, err := s.records.ListRequests(ctx)
	if err != nil {
		return report, fmt.Errorf("list friend requests: %w", err)
	}

	expectedPeers := make(map[string][]string)
	for _, request := range requests {
		switch request.Status {
		case models.FriendStatusAccepted:
			if err := s.completeAccept(ctx, request); err != nil {
				return report, fmt.Errorf("complete accept %s: %w", request.ID, err)
			}
			report.CompletedAccepts++
		case models.FriendStatusRejected:
			if err := s.completeReject(ctx, request); err != nil {
				return report, fmt.Errorf("complete reject %s: %w", request.ID, err)
			}
			report.CompletedRejects++
		default:
			expectedPeers[request.SenderID] = append(expectedPeers[request.SenderID], request.RecipientID)
			expectedPeers[request.RecipientID] = append(expectedPeers[request.RecipientID], request.SenderID)
		}
	}

	users, err := s.records.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	for _, user := range users {
		expected := expectedPeers[user.ID]
		if !sameSet(user.PendingPeers, expected) {
			if err := s.records.ReplaceSet(ctx, user.ID, FieldPendingPeers, expected); err != nil {
				return report, fmt.Errorf("rebuild pending peers for %s: %w", user.ID, err)
			}
			report.PendingPeersFixed++
		}

		for _, friendID := range user.Friends {
			friend, ok := byID[friendID]
			if friendID != user.ID && ok && slices.Contains(friend.Friends, user.ID) {
				continue
			}
			if err := s.records.RemoveFromSet(ctx, user.ID, FieldFriends, friendID); err != nil {
				return report, fmt.Errorf("drop friend %s from %s: %w", friendID, user.ID, err)
			}
			report.FriendEdgesDropped++
		}
	}

	logging.FromContext(ctx).Info("relationships reconciled",
		"completedAccepts", report.CompletedAccepts,
		"completedRejects", report.CompletedRejects,
		"pendingPeersFixed", report.PendingPeersFixed,
		"friendEdgesDropped", report.FriendEdgesDropped,
	)
	return report, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendzone/backend/internal/models"
)

const testSecret = "test-secret"

var testIdentity = models.Identity{UserID: "user-1", Email: "alice@example.com", Username: "alice"}

func TestManagerIssueAndRefresh(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(testSecret, time.Minute, time.Hour, store)

	tokens, err := manager.Issue(context.Background(), testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("old token should have been removed")
	}

	identity, err := manager.Verify(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if identity != testIdentity {
		t.Fatalf("expected identity to survive refresh, got %+v", identity)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemorySessionStore())
	if _, err := manager.Issue(context.Background(), models.Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerVerify(t *testing.T) {
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(testSecret, time.Hour, 24*time.Hour, NewInMemorySessionStore()).
		WithNowFunc(func() time.Time { return now })

	tokens, err := manager.Issue(context.Background(), testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	identity, err := manager.Verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity != testIdentity {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	other := NewManager("another-secret", time.Hour, 24*time.Hour, NewInMemorySessionStore())
	if _, err := other.Verify(tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	if _, err := manager.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := manager.Verify(tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestManagerRefreshFailures(t *testing.T) {
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemorySessionStore()).
		WithNowFunc(func() time.Time { return now })

	if _, err := manager.Refresh(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}

	tokens, err := manager.Issue(context.Background(), testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Hour)

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh expired got %v", err)
	}

	tokens, err = manager.Issue(context.Background(), testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	manager.Revoke(context.Background(), tokens.RefreshToken)
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}
}

func TestManagerRefreshIsSingleUse(t *testing.T) {
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemorySessionStore())

	tokens, err := manager.Issue(context.Background(), testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 8
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := manager.Refresh(context.Background(), tokens.RefreshToken)
			results <- err
		}()
	}

	var succeeded int
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrSessionNotFound):
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one refresh to succeed, got %d", succeeded)
	}
}

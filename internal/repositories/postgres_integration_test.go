package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendzone/backend/internal/auth"
	"github.com/friendzone/backend/internal/models"
	"github.com/friendzone/backend/internal/relationships"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndSearch(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	alice := createTestUser(t, repo, "Alice")
	alicia := createTestUser(t, repo, "alicia")
	bob := createTestUser(t, repo, "bob_1")

	found, err := repo.FindByEmail(ctx, alice.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != alice.ID || found.Name != "Alice" || len(found.Friends) != 0 || len(found.PendingPeers) != 0 {
		t.Fatalf("unexpected user: %+v", found)
	}

	if _, err := repo.FindByName(ctx, "bob_1"); err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}

	dupEmail := alice
	dupEmail.ID = uuid.NewString()
	dupEmail.Name = "someone-else"
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email got %v", err)
	}
	dupName := alice
	dupName.ID = uuid.NewString()
	dupName.Email = "other@example.com"
	if err := repo.Create(ctx, dupName); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name got %v", err)
	}

	cases := []struct {
		name    string
		query   string
		exclude string
		want    []string
	}{
		{"all", "", "", []string{alice.ID, alicia.ID, bob.ID}},
		{"caseInsensitive", "ALI", "", []string{alice.ID, alicia.ID}},
		{"exclude", "ali", alice.ID, []string{alicia.ID}},
		{"underscoreIsLiteral", "b_", "", []string{bob.ID}},
		{"percentIsLiteral", "%", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users, err := repo.Search(ctx, tc.query, tc.exclude)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			got := make([]string, 0, len(users))
			for _, user := range users {
				got = append(got, user.ID)
			}
			if !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestPostgresRelationshipRecords_Primitives(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	records := NewPostgresRelationshipRecords(testPool)

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	request := models.FriendRequest{
		ID:          uuid.NewString(),
		SenderID:    alice.ID,
		RecipientID: bob.ID,
		Status:      models.FriendStatusPending,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := records.InsertRequest(ctx, request); err != nil {
		t.Fatalf("insert request: %v", err)
	}

	reverse := request
	reverse.ID = uuid.NewString()
	reverse.SenderID, reverse.RecipientID = bob.ID, alice.ID
	if err := records.InsertRequest(ctx, reverse); !errors.Is(err, relationships.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest for reverse pair got %v", err)
	}

	orphan := request
	orphan.ID = uuid.NewString()
	orphan.RecipientID = uuid.NewString()
	if err := records.InsertRequest(ctx, orphan); !errors.Is(err, relationships.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recipient got %v", err)
	}

	byPair, err := records.FindRequestByPair(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("find by pair: %v", err)
	}
	if byPair.ID != request.ID {
		t.Fatalf("expected request %s got %s", request.ID, byPair.ID)
	}

	incoming, err := records.ListIncoming(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].Sender.Name != "alice" || !incoming[0].Request.CreatedAt.Equal(request.CreatedAt) {
		t.Fatalf("unexpected incoming: %+v", incoming)
	}

	if err := records.TransitionRequest(ctx, request.ID, models.FriendStatusPending, models.FriendStatusAccepted); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := records.TransitionRequest(ctx, request.ID, models.FriendStatusPending, models.FriendStatusRejected); !errors.Is(err, relationships.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState got %v", err)
	}
	if err := records.TransitionRequest(ctx, uuid.NewString(), models.FriendStatusPending, models.FriendStatusAccepted); !errors.Is(err, relationships.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}

	incoming, err = records.ListIncoming(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 0 {
		t.Fatalf("expected claimed request to leave the incoming list, got %+v", incoming)
	}

	for i := 0; i < 2; i++ {
		if err := records.AddToSet(ctx, alice.ID, relationships.FieldFriends, bob.ID); err != nil {
			t.Fatalf("add to set: %v", err)
		}
	}
	if err := records.AddToSet(ctx, uuid.NewString(), relationships.FieldFriends, bob.ID); err != nil {
		t.Fatalf("add to unknown user should be a no-op: %v", err)
	}
	loaded, err := records.FindUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !slices.Equal(loaded.Friends, []string{bob.ID}) {
		t.Fatalf("expected a single friend entry got %v", loaded.Friends)
	}

	if err := records.ReplaceSet(ctx, alice.ID, relationships.FieldPendingPeers, []string{bob.ID}); err != nil {
		t.Fatalf("replace set: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := records.RemoveFromSet(ctx, alice.ID, relationships.FieldPendingPeers, bob.ID); err != nil {
			t.Fatalf("remove from set: %v", err)
		}
	}
	loaded, err = records.FindUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if len(loaded.PendingPeers) != 0 {
		t.Fatalf("expected pending peers cleared got %v", loaded.PendingPeers)
	}

	found, err := records.FindUsers(ctx, []string{bob.ID, uuid.NewString(), alice.ID})
	if err != nil {
		t.Fatalf("find users: %v", err)
	}
	if len(found) != 2 || found[0].ID != alice.ID {
		t.Fatalf("expected both known users in creation order, got %+v", found)
	}

	for i := 0; i < 2; i++ {
		if err := records.DeleteRequest(ctx, request.ID); err != nil {
			t.Fatalf("delete request: %v", err)
		}
	}
	if _, err := records.FindRequest(ctx, request.ID); !errors.Is(err, relationships.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete got %v", err)
	}
}

func TestRelationshipStoreOnPostgres(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	store := relationships.NewStore(NewPostgresRelationshipRecords(testPool))

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	carol := createTestUser(t, users, "carol")

	requestID, err := store.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := store.Accept(ctx, requestID, bob.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := store.Accept(ctx, requestID, bob.ID); !errors.Is(err, relationships.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated accept got %v", err)
	}

	friends, err := store.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 1 || friends[0].ID != bob.ID {
		t.Fatalf("unexpected friends: %+v", friends)
	}

	rejectID, err := store.SendRequest(ctx, carol.ID, alice.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := store.Reject(ctx, rejectID, carol.ID); err != nil {
		t.Fatalf("sender cancel: %v", err)
	}

	if err := store.Unfriend(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("unfriend: %v", err)
	}
	friends, err = store.ListFriends(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("expected no friends after unfriend got %+v", friends)
	}

	report, err := store.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report != (relationships.ReconcileReport{}) {
		t.Fatalf("expected consistent data to need no repair, got %+v", report)
	}
}

func TestRelationshipStoreOnPostgres_ConcurrentSend(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	store := relationships.NewStore(NewPostgresRelationshipRecords(testPool))

	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	const senders = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < senders; i++ {
		from, to := alice.ID, bob.ID
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.SendRequest(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, relationships.ErrDuplicateRequest):
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one request to be created, got %d", succeeded)
	}

	records := NewPostgresRelationshipRecords(testPool)
	requests, err := records.ListRequests(ctx)
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected one stored request, got %d", len(requests))
	}
	for _, id := range []string{alice.ID, bob.ID} {
		user, err := records.FindUser(ctx, id)
		if err != nil {
			t.Fatalf("find user: %v", err)
		}
		if len(user.PendingPeers) != 1 {
			t.Fatalf("expected one pending peer for %s got %v", user.Name, user.PendingPeers)
		}
	}
}

func TestPostgresSessionStore(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "alice")
	store := NewPostgresSessionStore(testPool)

	session := auth.Session{
		RefreshToken: "refresh-token",
		UserID:       user.ID,
		Email:        user.Email,
		Username:     user.Name,
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	found, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if found.UserID != user.ID || found.Email != user.Email || found.Username != user.Name || !found.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected session: %+v", found)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE friend_requests, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

var userSequence int

func createTestUser(t *testing.T, repo *PostgresUserRepository, name string) models.User {
	t.Helper()
	userSequence++
	now := time.Now().UTC().Add(time.Duration(userSequence) * time.Millisecond)
	user := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     fmt.Sprintf("%s@example.com", name),
		Password:  "password-hash",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

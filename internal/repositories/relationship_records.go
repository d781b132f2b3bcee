package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/friendzone/backend/internal/db"
	"github.com/friendzone/backend/internal/models"
	"github.com/friendzone/backend/internal/relationships"
)

const requestColumns = `id, sender_id, recipient_id, status, created_at`

// PostgresRelationshipRecords implements relationships.Records on PostgreSQL.
// Each method issues a single statement against a single row, so no method
// depends on a multi-statement transaction.
type PostgresRelationshipRecords struct {
	pool db.Pool
}

// NewPostgresRelationshipRecords constructs relationship records backed by PostgreSQL.
func NewPostgresRelationshipRecords(pool db.Pool) *PostgresRelationshipRecords {
	return &PostgresRelationshipRecords{pool: pool}
}

func scanRequest(row rowScanner) (models.FriendRequest, error) {
	var request models.FriendRequest
	if err := row.Scan(&request.ID, &request.SenderID, &request.RecipientID, &request.Status, &request.CreatedAt); err != nil {
		return models.FriendRequest{}, err
	}
	request.CreatedAt = request.CreatedAt.UTC()
	return request, nil
}

func setColumn(field relationships.SetField) (string, error) {
	switch field {
	case relationships.FieldFriends:
		return "friends", nil
	case relationships.FieldPendingPeers:
		return "pending_peers", nil
	default:
		return "", fmt.Errorf("unknown relationship field %q", field)
	}
}

// FindUser loads a user with its relationship fields.
func (r *PostgresRelationshipRecords) FindUser(ctx context.Context, userID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, relationships.ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// FindUsers loads the users that exist among ids.
func (r *PostgresRelationshipRecords) FindUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY created_at, id`, ids)
}

// ListUsers loads every user.
func (r *PostgresRelationshipRecords) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r *PostgresRelationshipRecords) queryUsers(ctx context.Context, sql string, args ...any) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// InsertRequest persists a new friend request. The unique pair_key column
// guarantees at most one record per unordered pair.
func (r *PostgresRelationshipRecords) InsertRequest(ctx context.Context, request models.FriendRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_requests (id, sender_id, recipient_id, pair_key, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, request.ID, request.SenderID, request.RecipientID, request.PairKey(), request.Status, request.CreatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return relationships.ErrDuplicateRequest
		case pgForeignKeyViolation:
			return relationships.ErrNotFound
		}
		return fmt.Errorf("insert friend request: %w", err)
	}

	return nil
}

// FindRequest loads a friend request by id.
func (r *PostgresRelationshipRecords) FindRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	return r.findRequest(ctx, `SELECT `+requestColumns+` FROM friend_requests WHERE id = $1`, requestID)
}

// FindRequestByPair loads the friend request held by the unordered pair {a, b}.
func (r *PostgresRelationshipRecords) FindRequestByPair(ctx context.Context, a, b string) (models.FriendRequest, error) {
	return r.findRequest(ctx, `SELECT `+requestColumns+` FROM friend_requests WHERE pair_key = $1`, models.PairKey(a, b))
}

func (r *PostgresRelationshipRecords) findRequest(ctx context.Context, sql string, arg string) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	request, err := scanRequest(conn.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendRequest{}, relationships.ErrNotFound
		}
		return models.FriendRequest{}, fmt.Errorf("select friend request: %w", err)
	}
	return request, nil
}

// TransitionRequest updates the status only while it still equals from.
func (r *PostgresRelationshipRecords) TransitionRequest(ctx context.Context, requestID, from, to string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE friend_requests
        SET status = $3
        WHERE id = $1 AND status = $2
    `, requestID, from, to)
	if err != nil {
		return fmt.Errorf("update friend request status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	if err := conn.QueryRow(ctx, `SELECT status FROM friend_requests WHERE id = $1`, requestID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return relationships.ErrNotFound
		}
		return fmt.Errorf("select friend request status: %w", err)
	}
	return relationships.ErrInvalidState
}

// DeleteRequest removes a friend request; deleting a missing record succeeds.
func (r *PostgresRelationshipRecords) DeleteRequest(ctx context.Context, requestID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, requestID); err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

// ListIncoming returns pending requests addressed to the recipient joined with the sender.
func (r *PostgresRelationshipRecords) ListIncoming(ctx context.Context, recipientID string) ([]models.IncomingRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at,
               u.id, u.name, u.email
        FROM friend_requests fr
        JOIN users u ON u.id = fr.sender_id
        WHERE fr.recipient_id = $1 AND fr.status = $2
        ORDER BY fr.created_at, fr.id
    `, recipientID, models.FriendStatusPending)
	if err != nil {
		return nil, fmt.Errorf("query incoming friend requests: %w", err)
	}
	defer rows.Close()

	var incoming []models.IncomingRequest
	for rows.Next() {
		var item models.IncomingRequest
		if err := rows.Scan(
			&item.Request.ID, &item.Request.SenderID, &item.Request.RecipientID, &item.Request.Status, &item.Request.CreatedAt,
			&item.Sender.ID, &item.Sender.Name, &item.Sender.Email,
		); err != nil {
			return nil, fmt.Errorf("scan incoming friend request: %w", err)
		}
		item.Request.CreatedAt = item.Request.CreatedAt.UTC()
		incoming = append(incoming, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incoming friend requests: %w", err)
	}
	return incoming, nil
}

// ListRequests returns every friend request record.
func (r *PostgresRelationshipRecords) ListRequests(ctx context.Context) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+requestColumns+` FROM friend_requests ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return requests, nil
}

// AddToSet appends member to the user's field unless already present.
func (r *PostgresRelationshipRecords) AddToSet(ctx context.Context, userID string, field relationships.SetField, member string) error {
	column, err := setColumn(field)
	if err != nil {
		return err
	}
	return r.execSet(ctx, `
        UPDATE users
        SET `+column+` = array_append(`+column+`, $2::TEXT), updated_at = now()
        WHERE id = $1 AND NOT ($2::TEXT = ANY(`+column+`))
    `, userID, member)
}

// RemoveFromSet removes member from the user's field if present.
func (r *PostgresRelationshipRecords) RemoveFromSet(ctx context.Context, userID string, field relationships.SetField, member string) error {
	column, err := setColumn(field)
	if err != nil {
		return err
	}
	return r.execSet(ctx, `
        UPDATE users
        SET `+column+` = array_remove(`+column+`, $2::TEXT), updated_at = now()
        WHERE id = $1 AND $2::TEXT = ANY(`+column+`)
    `, userID, member)
}

// ReplaceSet overwrites the user's field.
func (r *PostgresRelationshipRecords) ReplaceSet(ctx context.Context, userID string, field relationships.SetField, members []string) error {
	column, err := setColumn(field)
	if err != nil {
		return err
	}
	if members == nil {
		members = []string{}
	}
	return r.execSet(ctx, `
        UPDATE users
        SET `+column+` = $2::TEXT[], updated_at = now()
        WHERE id = $1
    `, userID, members)
}

func (r *PostgresRelationshipRecords) execSet(ctx context.Context, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update user relationship set: %w", err)
	}
	return nil
}

var _ relationships.Records = (*PostgresRelationshipRecords)(nil)

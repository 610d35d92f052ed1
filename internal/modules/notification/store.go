// README: Notification store backed by PostgreSQL.
package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, n *Notification) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO notifications (id, recipient, kind, content, ride_id, opened, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		string(n.ID), string(n.Recipient), string(n.Kind), n.Content, toStringPtr(n.RideID), n.Opened, n.CreatedAt,
	)
	return err
}

func (s *PgStore) ListByRecipient(ctx context.Context, recipient types.ID, limit int) ([]Notification, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT id, recipient, kind, content, ride_id, opened, created_at
		FROM notifications
		WHERE recipient = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, string(recipient), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n                   Notification
			id, recipient, kind string
			rideID              *string
		)
		if err := rows.Scan(&id, &recipient, &kind, &n.Content, &rideID, &n.Opened, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ID = types.ID(id)
		n.Recipient = types.ID(recipient)
		n.Kind = Kind(kind)
		if rideID != nil {
			r := types.ID(*rideID)
			n.RideID = &r
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkOpened flips the opened flag only for the notification's recipient.
func (s *PgStore) MarkOpened(ctx context.Context, id, recipient types.ID) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE notifications SET opened = TRUE
		WHERE id = $1 AND recipient = $2`,
		string(id), string(recipient),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/bridge-server-go/internal/database"
	"github.com/wavelink/bridge-server-go/internal/model"
)

// SessionRecordRepository is the durable key-value store for session
// snapshots, keyed by session_id.
type SessionRecordRepository interface {
	Upsert(ctx context.Context, rec model.SessionRecord) error
	BulkUpsert(ctx context.Context, recs []model.SessionRecord) error
	ListActive(ctx context.Context) ([]model.SessionRecord, error)
	DeleteDestroyed(ctx context.Context) (int64, error)
}

type sessionRecordRepo struct {
	db *database.DB
}

func NewSessionRecordRepository(db *database.DB) SessionRecordRepository {
	return &sessionRecordRepo{db: db}
}

const upsertQuery = `
	INSERT INTO bridge_sessions (
		session_id, owner_id, status, phone_number,
		last_seen_at, last_disconnected_at, last_reconnected_at,
		created_at, updated_at
	) VALUES (
		:session_id, :owner_id, :status, :phone_number,
		:last_seen_at, :last_disconnected_at, :last_reconnected_at,
		:created_at, :updated_at
	)
	ON CONFLICT (session_id) DO UPDATE SET
		owner_id = EXCLUDED.owner_id,
		status = EXCLUDED.status,
		phone_number = EXCLUDED.phone_number,
		last_seen_at = EXCLUDED.last_seen_at,
		last_disconnected_at = EXCLUDED.last_disconnected_at,
		last_reconnected_at = EXCLUDED.last_reconnected_at,
		updated_at = EXCLUDED.updated_at
`

func (r *sessionRecordRepo) Upsert(ctx context.Context, rec model.SessionRecord) error {
	_, err := r.db.NamedExecContext(ctx, upsertQuery, rec)
	return err
}

func (r *sessionRecordRepo) BulkUpsert(ctx context.Context, recs []model.SessionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			if _, err := tx.NamedExecContext(ctx, upsertQuery, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *sessionRecordRepo) ListActive(ctx context.Context) ([]model.SessionRecord, error) {
	var recs []model.SessionRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM bridge_sessions
		WHERE status <> 'destroyed'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sessionRecordRepo) DeleteDestroyed(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM bridge_sessions WHERE status = 'destroyed'
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

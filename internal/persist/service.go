// Package persist snapshots registry entries into the persistence store and
// restores them at startup. Writes are best effort: a session keeps running
// in memory even when its durable snapshot fails.
package persist

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
	"github.com/wavelink/bridge-server-go/internal/repository"
)

type Service struct {
	repo repository.SessionRecordRepository
}

func NewService(repo repository.SessionRecordRepository) *Service {
	return &Service{repo: repo}
}

// SaveOne is the fast path for single-session state transitions. Callers
// should prefer it over SaveAll, which sweeps every active session.
func (s *Service) SaveOne(ctx context.Context, session model.Session) error {
	if err := s.repo.Upsert(ctx, model.RecordFromSession(session)); err != nil {
		return apperrors.PersistenceWrite(err)
	}
	return nil
}

// SaveAll snapshots the given registry entries in bulk. If the bulk write
// fails it falls back to per-record writes so one bad record cannot sink
// the whole sweep; the returned count is the number actually saved.
func (s *Service) SaveAll(ctx context.Context, sessions []model.Session) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	recs := make([]model.SessionRecord, len(sessions))
	for i, session := range sessions {
		recs[i] = model.RecordFromSession(session)
	}

	if err := s.repo.BulkUpsert(ctx, recs); err == nil {
		return len(recs), nil
	} else {
		log.Warn().Err(err).Msg("bulk snapshot failed, retrying per record")
	}

	saved := 0
	for _, rec := range recs {
		if err := s.repo.Upsert(ctx, rec); err != nil {
			log.Error().Err(err).Str("sessionId", rec.SessionID).Msg("failed to save session snapshot")
			continue
		}
		saved++
	}

	if saved == 0 {
		return 0, apperrors.PersistenceWrite(nil).WithDetails("no records saved")
	}
	return saved, nil
}

// RestoreAll loads every non-destroyed record. It only seeds metadata;
// reconnection is a separate, explicit operation.
func (s *Service) RestoreAll(ctx context.Context) ([]model.SessionRecord, error) {
	recs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return recs, nil
}

// PruneDestroyed reconciles the store with the registry by dropping rows
// left behind by destroyed sessions.
func (s *Service) PruneDestroyed(ctx context.Context) (int64, error) {
	return s.repo.DeleteDestroyed(ctx)
}

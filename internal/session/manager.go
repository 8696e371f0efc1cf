// Package session implements the lifecycle side of the orchestration core:
// creating sessions, driving their state machine off channel events,
// destroying them in two phases, and bulk admin operations.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/bridge-server-go/internal/channel"
	"github.com/wavelink/bridge-server-go/internal/config"
	"github.com/wavelink/bridge-server-go/internal/delivery"
	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
	"github.com/wavelink/bridge-server-go/internal/registry"
)

// Persister is the fast-path snapshot writer for single-session
// transitions. Failures are logged and swallowed here: a session keeps
// operating even when its durable copy lags.
type Persister interface {
	SaveOne(ctx context.Context, s model.Session) error
}

type Manager struct {
	registry  *registry.Registry
	factory   channel.Factory
	pipeline  *delivery.Pipeline
	persister Persister

	// inbound receives channel messages; wired after construction to
	// break the manager/message-manager cycle.
	inbound func(ev channel.InboundEvent)
}

func NewManager(reg *registry.Registry, factory channel.Factory, pipeline *delivery.Pipeline, persister Persister) *Manager {
	return &Manager{
		registry:  reg,
		factory:   factory,
		pipeline:  pipeline,
		persister: persister,
	}
}

// SetInboundHandler wires the sink for inbound channel messages.
func (m *Manager) SetInboundHandler(fn func(ev channel.InboundEvent)) {
	m.inbound = fn
}

// Create registers the session and starts establishment asynchronously.
// The returned session is already accepted; pairing failure surfaces later
// through status queries, never to this caller.
func (m *Manager) Create(sessionID string, ownerID int64) (model.Session, error) {
	if sessionID == "" {
		return model.Session{}, apperrors.MissingRequired("sessionId")
	}
	if ownerID <= 0 {
		return model.Session{}, apperrors.InvalidInput("ownerId", "must be a positive integer")
	}

	s := model.NewSession(sessionID, ownerID)
	if err := m.registry.PutIfAbsent(s); err != nil {
		return model.Session{}, err
	}

	log.Info().Str("sessionId", sessionID).Int64("ownerId", ownerID).Msg("session accepted")
	go m.establish(sessionID)

	return s, nil
}

func (m *Manager) establish(sessionID string) {
	client, err := m.factory.New(sessionID, m.handlers())
	if err != nil {
		m.markError(sessionID, err)
		return
	}

	sessionCtx, ok := m.registry.Context(sessionID)
	if !ok {
		// Destroyed before establishment began.
		m.factory.Release(sessionID)
		return
	}
	if !m.registry.SetClient(sessionID, client) {
		m.factory.Release(sessionID)
		return
	}

	connectCtx, cancel := context.WithTimeout(sessionCtx, config.ConnectTimeout)
	defer cancel()

	if err := client.Connect(connectCtx); err != nil {
		m.markError(sessionID, err)
	}
}

func (m *Manager) handlers() channel.Handlers {
	return channel.Handlers{
		OnQR:           m.onQR,
		OnConnected:    m.onConnected,
		OnDisconnected: m.onDisconnected,
		OnError:        m.markError,
		OnInbound:      m.onInbound,
	}
}

func (m *Manager) onQR(sessionID, qrCode string) {
	s, ok := m.registry.Update(sessionID, func(s *model.Session) {
		s.Status = model.StatusQRPending
	})
	if !ok {
		return
	}
	m.registry.SetQR(sessionID, qrCode)
	log.Info().Str("sessionId", sessionID).Msg("qr code available")
	m.saveOne(s)
}

func (m *Manager) onConnected(sessionID, phoneNumber string) {
	s, ok := m.registry.Update(sessionID, func(s *model.Session) {
		now := time.Now().UTC()
		if s.Status == model.StatusDisconnected {
			s.LastReconnectedAt = &now
		}
		s.Status = model.StatusConnected
		if phoneNumber != "" {
			s.PhoneNumber = &phoneNumber
		}
		s.LastSeenAt = &now
	})
	if !ok {
		return
	}
	// Pairing material is single-use; gone once the session connects.
	m.registry.SetQR(sessionID, "")
	log.Info().Str("sessionId", sessionID).Str("phoneNumber", phoneNumber).Msg("session connected")
	m.saveOne(s)
}

func (m *Manager) onDisconnected(sessionID, reason string) {
	s, ok := m.registry.Update(sessionID, func(s *model.Session) {
		now := time.Now().UTC()
		s.Status = model.StatusDisconnected
		s.LastDisconnectedAt = &now
	})
	if !ok {
		return
	}
	log.Warn().Str("sessionId", sessionID).Str("reason", reason).Msg("session disconnected")
	m.saveOne(s)
}

func (m *Manager) markError(sessionID string, cause error) {
	s, ok := m.registry.Update(sessionID, func(s *model.Session) {
		s.Status = model.StatusError
	})
	if !ok {
		return
	}
	m.registry.SetQR(sessionID, "")
	log.Error().Err(cause).Str("sessionId", sessionID).Msg("session establishment failed")
	m.saveOne(s)
}

func (m *Manager) onInbound(ev channel.InboundEvent) {
	m.registry.Update(ev.SessionID, func(s *model.Session) {
		now := time.Now().UTC()
		s.LastSeenAt = &now
	})
	if m.inbound != nil {
		m.inbound(ev)
	}
}

func (m *Manager) saveOne(s model.Session) {
	if m.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.persister.SaveOne(ctx, s); err != nil {
		log.Error().Err(err).Str("sessionId", s.SessionID).Msg("failed to persist session snapshot")
	}
}

// Status returns the current session record.
func (m *Manager) Status(sessionID string) (model.Session, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return model.Session{}, apperrors.SessionNotFound(sessionID)
	}
	return s, nil
}

// QRCode returns the pending pairing material. It is unavailable once the
// session leaves qr_pending, in either direction.
func (m *Manager) QRCode(sessionID string) (string, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return "", apperrors.SessionNotFound(sessionID)
	}
	if s.Status != model.StatusQRPending {
		return "", apperrors.QRUnavailable(sessionID)
	}
	qr, ok := m.registry.QR(sessionID)
	if !ok {
		return "", apperrors.QRUnavailable(sessionID)
	}
	return qr, nil
}

// Send runs one delivery job against the session's channel. Jobs for one
// session run one at a time; the job itself runs under the session's
// lifetime context, so destroying the session cancels its remaining units.
func (m *Manager) Send(sessionID, recipient string, payload model.Payload) (model.DeliveryResult, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return model.DeliveryResult{}, apperrors.SessionNotFound(sessionID)
	}
	if s.Status != model.StatusConnected {
		return model.DeliveryResult{}, apperrors.SessionNotConnected(sessionID)
	}

	client, ok := m.registry.Client(sessionID)
	if !ok {
		// Restored metadata without a live handle.
		return model.DeliveryResult{}, apperrors.SessionNotConnected(sessionID)
	}
	jobCtx, ok := m.registry.Context(sessionID)
	if !ok {
		return model.DeliveryResult{}, apperrors.SessionNotFound(sessionID)
	}

	unlock, ok := m.registry.LockSend(sessionID)
	if !ok {
		return model.DeliveryResult{}, apperrors.SessionNotFound(sessionID)
	}
	defer unlock()

	job := delivery.NewJob(sessionID, recipient, payload)
	return m.pipeline.Run(jobCtx, client, job), nil
}

// Destroy removes the session. Phase 1 attempts graceful channel teardown
// with a timeout; phase 2 (forced artifact cleanup) runs unconditionally
// afterwards when phase 1 did not fully succeed, or when force is set.
func (m *Manager) Destroy(ctx context.Context, sessionID string, force bool) error {
	s, client, ok := m.registry.Delete(sessionID)
	if !ok {
		return apperrors.SessionNotFound(sessionID)
	}

	var gracefulErr error
	if client != nil {
		gctx, cancel := context.WithTimeout(ctx, config.GracefulDestroyTimeout)
		gracefulErr = client.Disconnect(gctx)
		cancel()
		if gracefulErr != nil {
			log.Warn().Err(gracefulErr).Str("sessionId", sessionID).Msg("graceful teardown failed")
		}
	}

	if client != nil && (force || gracefulErr != nil) {
		cctx, cancel := context.WithTimeout(ctx, config.ForcedCleanupTimeout)
		cleanupErr := client.Cleanup(cctx)
		cancel()
		if cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("sessionId", sessionID).Msg("forced cleanup failed")
			if !force && gracefulErr != nil {
				// Both phases failed: reinstate the record in error state
				// with its handle intact, so a forced destroy can retry
				// instead of losing the stuck session entirely.
				m.reinstate(s, client)
				return apperrors.ChannelTransport(gracefulErr)
			}
		}
	}

	m.factory.Release(sessionID)

	s.Status = model.StatusDestroyed
	s.UpdatedAt = time.Now().UTC()
	m.saveOne(s)

	log.Info().Str("sessionId", sessionID).Bool("force", force).Msg("session destroyed")
	return nil
}

func (m *Manager) reinstate(s model.Session, client channel.Client) {
	s.Status = model.StatusError
	s.UpdatedAt = time.Now().UTC()
	if err := m.registry.PutIfAbsent(s); err != nil {
		// The id was re-taken while teardown ran; nothing left to keep.
		m.factory.Release(s.SessionID)
		return
	}
	m.registry.SetClient(s.SessionID, client)
	m.saveOne(s)
}

// DestroyAll destroys every session in a registry snapshot. Individual
// failures are logged and skipped; the count reflects actual destroys.
func (m *Manager) DestroyAll(ctx context.Context) int {
	return m.destroyBatch(ctx, m.registry.ListAll())
}

// DestroyAllForOwner destroys exactly the owner's sessions.
func (m *Manager) DestroyAllForOwner(ctx context.Context, ownerID int64) int {
	return m.destroyBatch(ctx, m.registry.ListByOwner(ownerID))
}

func (m *Manager) destroyBatch(ctx context.Context, snapshot []model.Session) int {
	destroyed := 0
	for _, s := range snapshot {
		if err := m.Destroy(ctx, s.SessionID, false); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound) {
				// Removed between snapshot and action; bulk ops tolerate this.
				continue
			}
			log.Error().Err(err).Str("sessionId", s.SessionID).Msg("bulk destroy: session failed")
			continue
		}
		destroyed++
	}
	return destroyed
}

// Restore seeds the registry with persisted metadata. No channel handle is
// created; reconnection is explicit via Reconnect or ReconnectAll.
func (m *Manager) Restore(records []model.SessionRecord) int {
	restored := 0
	for _, rec := range records {
		s := rec.ToSession()
		if !s.Status.Active() {
			continue
		}
		if err := m.registry.PutIfAbsent(s); err != nil {
			log.Warn().Str("sessionId", s.SessionID).Msg("restore skipped: session already present")
			continue
		}
		restored++
	}
	log.Info().Int("restored", restored).Msg("sessions restored from store")
	return restored
}

// Reconnect re-establishes the channel for a restored session.
func (m *Manager) Reconnect(sessionID string) error {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return apperrors.SessionNotFound(sessionID)
	}
	if _, hasClient := m.registry.Client(sessionID); hasClient {
		return nil
	}

	m.registry.Update(sessionID, func(s *model.Session) {
		s.Status = model.StatusInitializing
	})
	log.Info().Str("sessionId", sessionID).Int64("ownerId", s.OwnerID).Msg("reconnecting restored session")
	go m.establish(sessionID)
	return nil
}

// ReconnectAll triggers reconnection for every registry entry without a
// live handle. Used by the startup routine when auto-reconnect is on.
func (m *Manager) ReconnectAll() int {
	started := 0
	for _, s := range m.registry.ListAll() {
		if _, hasClient := m.registry.Client(s.SessionID); hasClient {
			continue
		}
		if err := m.Reconnect(s.SessionID); err == nil {
			started++
		}
	}
	return started
}

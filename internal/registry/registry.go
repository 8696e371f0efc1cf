// Package registry holds the authoritative in-memory map of sessions. It is
// the only state shared across session workers: the map itself is guarded
// by one RWMutex for lookup/insert/delete, while every record carries its
// own mutex so unrelated sessions never contend on mutation.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/wavelink/bridge-server-go/internal/channel"
	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
)

type entry struct {
	mu      sync.Mutex
	session model.Session
	client  channel.Client
	qrCode  string

	// sendMu serializes delivery jobs against this session's channel, so
	// two jobs for the same recipient can never interleave their units.
	sendMu sync.Mutex

	// ctx is cancelled when the session is removed, which aborts any
	// delivery job still running against the old handle.
	ctx    context.Context
	cancel context.CancelFunc
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

func (r *Registry) get(sessionID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sessionID]
	return e, ok
}

// PutIfAbsent inserts a new session record. A session id held by any
// non-destroyed record is never reused, so a second insert for the same id
// fails with DuplicateSession.
func (r *Registry) PutIfAbsent(s model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[s.SessionID]; ok {
		return apperrors.DuplicateSession(s.SessionID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.entries[s.SessionID] = &entry{
		session: s,
		ctx:     ctx,
		cancel:  cancel,
	}
	return nil
}

// Get returns a point-in-time copy of the session record.
func (r *Registry) Get(sessionID string) (model.Session, bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return model.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, true
}

// Update applies fn to the session record under its per-record lock and
// returns the updated copy. fn must replace pointer fields, not mutate
// through them, so previously returned copies stay stable.
func (r *Registry) Update(sessionID string, fn func(*model.Session)) (model.Session, bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return model.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.UpdatedAt = time.Now().UTC()
	return e.session, true
}

// SetClient attaches the live channel handle to the record.
func (r *Registry) SetClient(sessionID string, c channel.Client) bool {
	e, ok := r.get(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = c
	return true
}

func (r *Registry) Client(sessionID string) (channel.Client, bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, false
	}
	return e.client, true
}

// SetQR stores single-use pairing material. An empty string clears it.
func (r *Registry) SetQR(sessionID, qrCode string) bool {
	e, ok := r.get(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.qrCode = qrCode
	return true
}

func (r *Registry) QR(sessionID string) (string, bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.qrCode == "" {
		return "", false
	}
	return e.qrCode, true
}

// LockSend claims the session's exclusive send slot and returns the
// release function. A caller whose session is deleted while it waits still
// gets the lock; its job then runs under the already-cancelled session
// context and aborts on the first unit.
func (r *Registry) LockSend(sessionID string) (func(), bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return nil, false
	}
	e.sendMu.Lock()
	return e.sendMu.Unlock, true
}

// Context returns the session's lifetime context. Delivery jobs run under
// it so that destroying the session cancels their remaining units.
func (r *Registry) Context(sessionID string) (context.Context, bool) {
	e, ok := r.get(sessionID)
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

// Delete removes the record, cancels its context, and returns the final
// session state together with the channel handle for teardown.
func (r *Registry) Delete(sessionID string) (model.Session, channel.Client, bool) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return model.Session{}, nil, false
	}

	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.client, true
}

// ListAll returns a point-in-time snapshot of every session record.
func (r *Registry) ListAll() []model.Session {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sessions := make([]model.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		sessions = append(sessions, e.session)
		e.mu.Unlock()
	}
	return sessions
}

// ListByOwner returns a snapshot of the owner's sessions.
func (r *Registry) ListByOwner(ownerID int64) []model.Session {
	all := r.ListAll()
	owned := make([]model.Session, 0, len(all))
	for _, s := range all {
		if s.OwnerID == ownerID {
			owned = append(owned, s)
		}
	}
	return owned
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

package model

import "time"

// SessionRecord is the flattened durable snapshot of a session written to
// the persistence store. It carries identity and mutable state only; the
// channel client handle is not persistable.
type SessionRecord struct {
	SessionID          string     `db:"session_id" json:"sessionId"`
	OwnerID            int64      `db:"owner_id" json:"ownerId"`
	Status             string     `db:"status" json:"status"`
	PhoneNumber        *string    `db:"phone_number" json:"phoneNumber,omitempty"`
	LastSeenAt         *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	LastDisconnectedAt *time.Time `db:"last_disconnected_at" json:"lastDisconnectedAt,omitempty"`
	LastReconnectedAt  *time.Time `db:"last_reconnected_at" json:"lastReconnectedAt,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

func RecordFromSession(s Session) SessionRecord {
	return SessionRecord{
		SessionID:          s.SessionID,
		OwnerID:            s.OwnerID,
		Status:             string(s.Status),
		PhoneNumber:        s.PhoneNumber,
		LastSeenAt:         s.LastSeenAt,
		LastDisconnectedAt: s.LastDisconnectedAt,
		LastReconnectedAt:  s.LastReconnectedAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (r SessionRecord) ToSession() Session {
	return Session{
		SessionID:          r.SessionID,
		OwnerID:            r.OwnerID,
		Status:             SessionStatus(r.Status),
		PhoneNumber:        r.PhoneNumber,
		LastSeenAt:         r.LastSeenAt,
		LastDisconnectedAt: r.LastDisconnectedAt,
		LastReconnectedAt:  r.LastReconnectedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

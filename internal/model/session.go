package model

import "time"

// Session is the authoritative in-memory record for one tenant connection
// to the messaging network. The registry owns it; the persistence store
// keeps a durable copy that may lag behind.
//
// Optional fields are pointers and are replaced, never mutated in place,
// so snapshot copies handed out by the registry stay stable.
type Session struct {
	SessionID          string        `json:"sessionId"`
	OwnerID            int64         `json:"ownerId"`
	Status             SessionStatus `json:"status"`
	PhoneNumber        *string       `json:"phoneNumber,omitempty"`
	LastSeenAt         *time.Time    `json:"lastSeenAt,omitempty"`
	LastDisconnectedAt *time.Time    `json:"lastDisconnectedAt,omitempty"`
	LastReconnectedAt  *time.Time    `json:"lastReconnectedAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func NewSession(sessionID string, ownerID int64) Session {
	now := time.Now().UTC()
	return Session{
		SessionID: sessionID,
		OwnerID:   ownerID,
		Status:    StatusInitializing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Package channel defines the capability boundary to the external runtime
// that speaks the messaging network's wire protocol. The core never sees
// protocol details: it drives a Client per session and reacts to the
// status transitions the runtime reports back.
package channel

import (
	"context"
	"time"
)

// InboundEvent is one message received on a session's channel.
type InboundEvent struct {
	SessionID string    `json:"sessionId"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	IsGroup   bool      `json:"isGroup"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Handlers receive session events from the channel runtime. All callbacks
// are optional; nil handlers are skipped.
type Handlers struct {
	OnQR           func(sessionID, qrCode string)
	OnConnected    func(sessionID, phoneNumber string)
	OnDisconnected func(sessionID, reason string)
	OnError        func(sessionID string, err error)
	OnInbound      func(ev InboundEvent)
}

// Client is one session's handle on the channel runtime. At most one live
// Client exists per session id; the registry enforces this.
type Client interface {
	// Connect begins session establishment. Pairing progress arrives via
	// the Handlers registered at construction, not as a return value.
	Connect(ctx context.Context) error

	// Disconnect tears the session down gracefully.
	Disconnect(ctx context.Context) error

	// Cleanup removes persisted channel artifacts for the session. Used as
	// the forced phase of a two-phase destroy; best effort.
	Cleanup(ctx context.Context) error

	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, data []byte, mimeType string) error
}

// Factory creates Clients and routes runtime events to their Handlers.
type Factory interface {
	New(sessionID string, h Handlers) (Client, error)
	// Release drops the event routing for a destroyed session.
	Release(sessionID string)
}

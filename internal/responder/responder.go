// Package responder is the boundary to the external decision engine that
// produces reply content for inbound messages. The core does not interpret
// reply metadata; it only routes the reply payload back to the chat.
package responder

import (
	"context"
	"time"

	"github.com/wavelink/bridge-server-go/internal/model"
)

// Request is the routing context for one inbound message.
type Request struct {
	SessionID string    `json:"sessionId"`
	OwnerID   int64     `json:"ownerId"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	IsGroup   bool      `json:"isGroup"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is what the responder decided to send back. Products take
// precedence over Text when both are present.
type Reply struct {
	Text     string              `json:"text,omitempty"`
	Products []model.ProductItem `json:"products,omitempty"`
	Metadata map[string]any      `json:"metadata,omitempty"`
}

// Empty reports whether the reply carries nothing to deliver.
func (r *Reply) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Products) == 0)
}

// Responder produces a reply for one inbound message. A nil reply with a
// nil error means "no reply".
type Responder interface {
	Respond(ctx context.Context, req Request) (*Reply, error)
}

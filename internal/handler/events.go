package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/bridge-server-go/internal/channel"
)

// ChannelEventsHandler receives the channel gateway's event webhook and
// routes each event to the owning session's handlers. The gateway pushes
// both lifecycle transitions and inbound messages through this endpoint.
type ChannelEventsHandler struct {
	dispatcher *channel.GatewayFactory
}

func NewChannelEventsHandler(dispatcher *channel.GatewayFactory) *ChannelEventsHandler {
	return &ChannelEventsHandler{dispatcher: dispatcher}
}

type channelEventEnvelope struct {
	Type      string `json:"type"` // status | message
	SessionID string `json:"sessionId"`

	// status
	State       string `json:"state,omitempty"`
	QRCode      string `json:"qrCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// message
	ChatID    string    `json:"chatId,omitempty"`
	SenderID  string    `json:"senderId,omitempty"`
	IsGroup   bool      `json:"isGroup,omitempty"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// POST /internal/channel/events
func (h *ChannelEventsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var ev channelEventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Warn().Err(err).Msg("invalid channel event payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if ev.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}

	switch ev.Type {
	case "status":
		h.dispatcher.DispatchStatus(channel.StatusEvent{
			SessionID:   ev.SessionID,
			State:       ev.State,
			QRCode:      ev.QRCode,
			PhoneNumber: ev.PhoneNumber,
			Reason:      ev.Reason,
		})
	case "message":
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		h.dispatcher.DispatchInbound(channel.InboundEvent{
			SessionID: ev.SessionID,
			ChatID:    ev.ChatID,
			SenderID:  ev.SenderID,
			IsGroup:   ev.IsGroup,
			Body:      ev.Body,
			Timestamp: ts,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown event type"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

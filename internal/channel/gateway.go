package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
)

// GatewayFactory talks to a channel gateway process over HTTP. The gateway
// owns the wire protocol; this side issues lifecycle and send commands and
// receives events back on a webhook (see handler.ChannelEventsHandler).
type GatewayFactory struct {
	baseURL string
	client  *http.Client

	mu       sync.RWMutex
	handlers map[string]Handlers
}

func NewGatewayFactory(baseURL string) *GatewayFactory {
	return &GatewayFactory{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		handlers: make(map[string]Handlers),
	}
}

func (f *GatewayFactory) New(sessionID string, h Handlers) (Client, error) {
	f.mu.Lock()
	f.handlers[sessionID] = h
	f.mu.Unlock()

	return &gatewayClient{factory: f, sessionID: sessionID}, nil
}

func (f *GatewayFactory) Release(sessionID string) {
	f.mu.Lock()
	delete(f.handlers, sessionID)
	f.mu.Unlock()
}

func (f *GatewayFactory) lookup(sessionID string) (Handlers, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.handlers[sessionID]
	return h, ok
}

// StatusEvent is a lifecycle notification pushed by the gateway.
type StatusEvent struct {
	SessionID   string `json:"sessionId"`
	State       string `json:"state"` // qr_pending | connected | disconnected | error
	QRCode      string `json:"qrCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// DispatchStatus routes a gateway status event to the session's handlers.
func (f *GatewayFactory) DispatchStatus(ev StatusEvent) {
	h, ok := f.lookup(ev.SessionID)
	if !ok {
		log.Warn().Str("sessionId", ev.SessionID).Str("state", ev.State).Msg("status event for unknown session")
		return
	}

	switch ev.State {
	case "qr_pending":
		if h.OnQR != nil {
			h.OnQR(ev.SessionID, ev.QRCode)
		}
	case "connected":
		if h.OnConnected != nil {
			h.OnConnected(ev.SessionID, ev.PhoneNumber)
		}
	case "disconnected":
		if h.OnDisconnected != nil {
			h.OnDisconnected(ev.SessionID, ev.Reason)
		}
	case "error":
		if h.OnError != nil {
			h.OnError(ev.SessionID, fmt.Errorf("channel error: %s", ev.Reason))
		}
	default:
		log.Warn().Str("sessionId", ev.SessionID).Str("state", ev.State).Msg("unknown channel state")
	}
}

// DispatchInbound routes an inbound message event to the session's handlers.
func (f *GatewayFactory) DispatchInbound(ev InboundEvent) {
	h, ok := f.lookup(ev.SessionID)
	if !ok {
		log.Warn().Str("sessionId", ev.SessionID).Msg("inbound event for unknown session")
		return
	}
	if h.OnInbound != nil {
		h.OnInbound(ev)
	}
}

type gatewayClient struct {
	factory   *GatewayFactory
	sessionID string
}

func (c *gatewayClient) Connect(ctx context.Context) error {
	return c.post(ctx, fmt.Sprintf("/sessions/%s/connect", c.sessionID), nil)
}

func (c *gatewayClient) Disconnect(ctx context.Context) error {
	return c.post(ctx, fmt.Sprintf("/sessions/%s/disconnect", c.sessionID), nil)
}

func (c *gatewayClient) Cleanup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.factory.baseURL+fmt.Sprintf("/sessions/%s", c.sessionID), nil)
	if err != nil {
		return apperrors.ChannelTransport(err)
	}
	return c.do(req)
}

type textSendBody struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (c *gatewayClient) SendText(ctx context.Context, to, body string) error {
	return c.post(ctx, fmt.Sprintf("/sessions/%s/messages/text", c.sessionID), textSendBody{
		To:   to,
		Body: body,
	})
}

type mediaSendBody struct {
	To       string `json:"to"`
	Data     string `json:"data"` // base64
	MimeType string `json:"mimeType"`
}

func (c *gatewayClient) SendMedia(ctx context.Context, to string, data []byte, mimeType string) error {
	return c.post(ctx, fmt.Sprintf("/sessions/%s/messages/media", c.sessionID), mediaSendBody{
		To:       to,
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	})
}

func (c *gatewayClient) post(ctx context.Context, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return apperrors.ChannelTransport(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.factory.baseURL+path, body)
	if err != nil {
		return apperrors.ChannelTransport(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *gatewayClient) do(req *http.Request) error {
	resp, err := c.factory.client.Do(req)
	if err != nil {
		return apperrors.ChannelTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.ChannelTransport(
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(b)))
	}
	return nil
}

package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelink/bridge-server-go/internal/channel"
)

// capturedEvents records dispatched handler invocations for assertions.
type capturedEvents struct {
	mu      sync.Mutex
	qrCodes []string
	phones  []string
	reasons []string
	errs    []error
	inbound []channel.InboundEvent
}

func (c *capturedEvents) handlers() channel.Handlers {
	return channel.Handlers{
		OnQR: func(sessionID, qr string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.qrCodes = append(c.qrCodes, qr)
		},
		OnConnected: func(sessionID, phone string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.phones = append(c.phones, phone)
		},
		OnDisconnected: func(sessionID, reason string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.reasons = append(c.reasons, reason)
		},
		OnError: func(sessionID string, err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.errs = append(c.errs, err)
		},
		OnInbound: func(ev channel.InboundEvent) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.inbound = append(c.inbound, ev)
		},
	}
}

func postEvent(t *testing.T, h *ChannelEventsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/channel/events", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestChannelEventsWebhook(t *testing.T) {
	newFixture := func(t *testing.T) (*ChannelEventsHandler, *capturedEvents) {
		t.Helper()
		factory := channel.NewGatewayFactory("http://gateway.invalid")
		captured := &capturedEvents{}
		_, err := factory.New("s1", captured.handlers())
		require.NoError(t, err)
		return NewChannelEventsHandler(factory), captured
	}

	t.Run("qr status event", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"status","sessionId":"s1","state":"qr_pending","qrCode":"qr-blob"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"qr-blob"}, captured.qrCodes)
	})

	t.Run("connected status event", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"status","sessionId":"s1","state":"connected","phoneNumber":"+551100"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"+551100"}, captured.phones)
	})

	t.Run("disconnected status event", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"status","sessionId":"s1","state":"disconnected","reason":"network lost"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"network lost"}, captured.reasons)
	})

	t.Run("error status event", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"status","sessionId":"s1","state":"error","reason":"banned"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, captured.errs, 1)
		assert.Contains(t, captured.errs[0].Error(), "banned")
	})

	t.Run("message event", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"message","sessionId":"s1","chatId":"chat@g","senderId":"sender@c","isGroup":true,"body":"hello"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, captured.inbound, 1)
		ev := captured.inbound[0]
		assert.Equal(t, "chat@g", ev.ChatID)
		assert.Equal(t, "sender@c", ev.SenderID)
		assert.True(t, ev.IsGroup)
		assert.Equal(t, "hello", ev.Body)
		assert.False(t, ev.Timestamp.IsZero(), "missing timestamp is filled in")
		assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, 5*time.Second)
	})

	t.Run("event for an unknown session is acknowledged and dropped", func(t *testing.T) {
		h, captured := newFixture(t)
		rec := postEvent(t, h, `{"type":"status","sessionId":"ghost","state":"connected"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, captured.phones)
	})

	t.Run("bad payloads are rejected", func(t *testing.T) {
		h, _ := newFixture(t)

		assert.Equal(t, http.StatusBadRequest, postEvent(t, h, `{broken`).Code)
		assert.Equal(t, http.StatusBadRequest, postEvent(t, h, `{"type":"status","state":"connected"}`).Code)
		assert.Equal(t, http.StatusBadRequest, postEvent(t, h, `{"type":"telepathy","sessionId":"s1"}`).Code)
	})
}

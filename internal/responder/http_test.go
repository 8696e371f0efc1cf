package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
)

func TestHTTPResponder(t *testing.T) {
	sampleRequest := Request{
		SessionID: "s1",
		OwnerID:   7,
		ChatID:    "chat@g",
		SenderID:  "sender@c",
		Body:      "hello",
		Timestamp: time.Now().UTC(),
	}

	t.Run("decodes a text reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req Request
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "s1", req.SessionID)
			assert.Equal(t, int64(7), req.OwnerID)
			assert.Equal(t, "hello", req.Body)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Reply{Text: "hi back"})
		}))
		defer srv.Close()

		reply, err := NewHTTPResponder(srv.URL, time.Second).Respond(context.Background(), sampleRequest)
		require.NoError(t, err)
		require.NotNil(t, reply)
		assert.Equal(t, "hi back", reply.Text)
	})

	t.Run("decodes a product reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Reply{Products: []model.ProductItem{
				{Text: "catalog item", MediaURLs: []string{"https://cdn.example.com/1.jpg"}},
			}})
		}))
		defer srv.Close()

		reply, err := NewHTTPResponder(srv.URL, time.Second).Respond(context.Background(), sampleRequest)
		require.NoError(t, err)
		require.Len(t, reply.Products, 1)
		assert.Equal(t, "catalog item", reply.Products[0].Text)
	})

	t.Run("204 means no reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		reply, err := NewHTTPResponder(srv.URL, time.Second).Respond(context.Background(), sampleRequest)
		require.NoError(t, err)
		assert.Nil(t, reply)
		assert.True(t, reply.Empty())
	})

	t.Run("engine failure is a responder error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewHTTPResponder(srv.URL, time.Second).Respond(context.Background(), sampleRequest)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeResponder))
	})

	t.Run("unreachable engine is a responder error", func(t *testing.T) {
		_, err := NewHTTPResponder("http://127.0.0.1:1", 200*time.Millisecond).Respond(context.Background(), sampleRequest)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeResponder))
	})
}

func TestReplyEmpty(t *testing.T) {
	var nilReply *Reply
	assert.True(t, nilReply.Empty())
	assert.True(t, (&Reply{}).Empty())
	assert.True(t, (&Reply{Metadata: map[string]any{"k": "v"}}).Empty())
	assert.False(t, (&Reply{Text: "hi"}).Empty())
	assert.False(t, (&Reply{Products: []model.ProductItem{{Text: "p"}}}).Empty())
}

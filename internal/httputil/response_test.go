package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"duplicate session", apperrors.DuplicateSession("s1"), http.StatusConflict, apperrors.ErrCodeDuplicateSession},
		{"session not found", apperrors.SessionNotFound("s1"), http.StatusNotFound, apperrors.ErrCodeSessionNotFound},
		{"qr unavailable", apperrors.QRUnavailable("s1"), http.StatusNotFound, apperrors.ErrCodeQRUnavailable},
		{"not connected", apperrors.SessionNotConnected("s1"), http.StatusUnprocessableEntity, apperrors.ErrCodeSessionNotConnected},
		{"missing field", apperrors.MissingRequired("to"), http.StatusBadRequest, apperrors.ErrCodeMissingRequired},
		{"rate limited", apperrors.RateLimitExceeded(), http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded},
		{"channel transport", apperrors.ChannelTransport(errors.New("reset")), http.StatusBadGateway, apperrors.ErrCodeChannelTransport},
		{"responder", apperrors.Responder(errors.New("down")), http.StatusBadGateway, apperrors.ErrCodeResponder},
		{"persistence", apperrors.PersistenceWrite(errors.New("disk full")), http.StatusInternalServerError, apperrors.ErrCodePersistenceWrite},
		{"unknown error wrapped as internal", errors.New("plain"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, map[string]string{"status": "initializing"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "initializing", body["status"])
}

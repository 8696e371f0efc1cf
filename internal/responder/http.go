package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
)

// HTTPResponder calls the decision engine over a JSON webhook. 200 carries
// a reply body; 204 means "no reply".
type HTTPResponder struct {
	url    string
	client *http.Client
}

func NewHTTPResponder(url string, timeout time.Duration) *HTTPResponder {
	return &HTTPResponder{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPResponder) Respond(ctx context.Context, req Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Responder(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Responder(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Responder(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var reply Reply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return nil, apperrors.Responder(fmt.Errorf("decode reply: %w", err))
		}
		return &reply, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.Responder(
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b)))
	}
}

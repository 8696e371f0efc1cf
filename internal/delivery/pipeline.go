// Package delivery turns one outbound job into an ordered sequence of
// network sends, applying pacing, retry, text fallback, and anti-spam
// backoff. One job runs on one goroutine; delays suspend only the owning
// session's send path.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
)

// Sender is the subset of the channel client the pipeline needs.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, data []byte, mimeType string) error
}

// Job is one logical outbound send request.
type Job struct {
	ID        string
	SessionID string
	Recipient string
	Payload   model.Payload
}

func NewJob(sessionID, recipient string, payload model.Payload) Job {
	return Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Recipient: recipient,
		Payload:   payload,
	}
}

const maxMediaDownloadBytes = 32 << 20 // 32MB

type Pipeline struct {
	cfg        Config
	downloader *http.Client
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		downloader: &http.Client{
			Timeout: cfg.DownloadTimeout,
		},
	}
}

// Run executes the job to completion and returns the per-job outcome.
// Cancelling ctx (session destroy) abandons the remaining units; units
// already sent stay counted in the result.
func (p *Pipeline) Run(ctx context.Context, sender Sender, job Job) model.DeliveryResult {
	gov := newGovernor(p.cfg)
	var res model.DeliveryResult

	logger := log.With().
		Str("jobId", job.ID).
		Str("sessionId", job.SessionID).
		Str("recipient", job.Recipient).
		Str("kind", string(job.Payload.Kind)).
		Logger()

	switch job.Payload.Kind {
	case model.PayloadText:
		p.tally(&res, p.sendText(ctx, sender, gov, job.Recipient, job.Payload.Text))
	case model.PayloadMedia:
		p.tally(&res, p.sendMedia(ctx, sender, gov, job.Recipient, job.Payload.Media, job.Payload.MimeType))
	case model.PayloadMediaRef:
		p.sendMediaRef(ctx, sender, gov, job.Recipient, job.Payload.MediaURL, &res)
	case model.PayloadProductBatch:
		p.runProductBatch(ctx, sender, gov, job, &res)
	default:
		logger.Error().Msg("unknown payload kind")
		res.ItemsFailed++
	}

	logger.Info().
		Int("itemsSent", res.ItemsSent).
		Int("itemsFailed", res.ItemsFailed).
		Int("fallbacksUsed", res.FallbacksUsed).
		Msg("delivery job finished")

	return res
}

func (p *Pipeline) tally(res *model.DeliveryResult, err error) bool {
	if err != nil {
		res.ItemsFailed++
		return false
	}
	res.ItemsSent++
	return true
}

func (p *Pipeline) runProductBatch(ctx context.Context, sender Sender, gov *governor, job Job, res *model.DeliveryResult) {
	items := job.Payload.Products
	if len(items) > p.cfg.MaxProductsPerBatch {
		// Excess items are dropped, not queued, to bound worst-case send time.
		log.Warn().
			Str("jobId", job.ID).
			Int("items", len(items)).
			Int("cap", p.cfg.MaxProductsPerBatch).
			Msg("product batch truncated")
		items = items[:p.cfg.MaxProductsPerBatch]
	}

	for i, item := range items {
		if i > 0 {
			if !p.wait(ctx, gov.pace(p.cfg.BetweenProducts)) {
				return
			}
		}

		if item.Text != "" {
			if !p.tally(res, p.sendText(ctx, sender, gov, job.Recipient, item.Text)) {
				if ctx.Err() != nil {
					return
				}
				if !p.cfg.ContinueOnProductError {
					return
				}
				continue
			}
		}

		media := item.MediaURLs
		if len(media) > p.cfg.MaxMediaPerProduct {
			media = media[:p.cfg.MaxMediaPerProduct]
		}

		for j, ref := range media {
			delay := p.cfg.BetweenMediaOfSameProduct
			if j == 0 {
				delay = p.cfg.BetweenProductTextAndMedia
			}
			if !p.wait(ctx, gov.pace(delay)) {
				return
			}

			ok := p.sendMediaRef(ctx, sender, gov, job.Recipient, ref, res)
			if !ok {
				if ctx.Err() != nil {
					return
				}
				if !p.cfg.ContinueOnMediaError {
					break
				}
			}
		}
	}
}

// sendMediaRef fetches the referenced media and sends it as an attachment.
// On fetch failure with fallback enabled, the original URL is sent as text
// and the unit counts as sent with a fallback, not as failed.
func (p *Pipeline) sendMediaRef(ctx context.Context, sender Sender, gov *governor, to, ref string, res *model.DeliveryResult) bool {
	data, mimeType, err := p.download(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			res.ItemsFailed++
			return false
		}
		log.Warn().Err(err).Str("url", ref).Msg("media download failed")
		if p.cfg.FallbackToURLOnError {
			if p.sendText(ctx, sender, gov, to, ref) == nil {
				res.ItemsSent++
				res.FallbacksUsed++
				return true
			}
		}
		res.ItemsFailed++
		return false
	}

	return p.tally(res, p.sendMedia(ctx, sender, gov, to, data, mimeType))
}

func (p *Pipeline) sendText(ctx context.Context, sender Sender, gov *governor, to, body string) error {
	return p.sendWithRetry(ctx, gov, func(sendCtx context.Context) error {
		return sender.SendText(sendCtx, to, body)
	})
}

func (p *Pipeline) sendMedia(ctx context.Context, sender Sender, gov *governor, to string, data []byte, mimeType string) error {
	return p.sendWithRetry(ctx, gov, func(sendCtx context.Context) error {
		return sender.SendMedia(sendCtx, to, data, mimeType)
	})
}

// sendWithRetry bounds each attempt with the per-send timeout so a frozen
// channel client cannot tie the job up indefinitely.
func (p *Pipeline) sendWithRetry(ctx context.Context, gov *governor, send func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetryAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		err := send(sendCtx)
		cancel()

		gov.observe()

		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < p.cfg.MaxRetryAttempts {
			log.Debug().Err(err).Int("attempt", attempt).Msg("send failed, retrying")
			if !p.wait(ctx, p.cfg.RetryDelay) {
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", apperrors.MediaDownload(rawURL, err)
	}

	resp, err := p.downloader.Do(req)
	if err != nil {
		return nil, "", apperrors.MediaDownload(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperrors.MediaDownload(rawURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaDownloadBytes))
	if err != nil {
		return nil, "", apperrors.MediaDownload(rawURL, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = mimeFromURL(rawURL)
	}
	if i := strings.Index(mimeType, ";"); i > 0 {
		mimeType = mimeType[:i]
	}

	return data, mimeType, nil
}

// wait blocks for d or until ctx is cancelled; false means cancelled.
func (p *Pipeline) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

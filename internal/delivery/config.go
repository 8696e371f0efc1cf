package delivery

import (
	"time"

	"github.com/wavelink/bridge-server-go/internal/config"
)

// Config holds the pacing and fault policy for outbound delivery.
type Config struct {
	BetweenProducts            time.Duration
	BetweenProductTextAndMedia time.Duration
	BetweenMediaOfSameProduct  time.Duration

	MaxProductsPerBatch int
	MaxMediaPerProduct  int

	MaxRetryAttempts int
	RetryDelay       time.Duration

	ContinueOnMediaError   bool
	ContinueOnProductError bool
	FallbackToURLOnError   bool

	DownloadTimeout time.Duration
	SendTimeout     time.Duration

	// Anti-spam governor: sends observed faster than MinSendInterval
	// multiply the pacing delay by BackoffMultiplier, capped at
	// MaxAllowedDelay. The delay resets to the configured base after
	// BackoffResetAfter consecutive on-pace sends.
	MinSendInterval   time.Duration
	BackoffMultiplier float64
	MaxAllowedDelay   time.Duration
	BackoffResetAfter int
}

func DefaultConfig() Config {
	return Config{
		BetweenProducts:            3 * time.Second,
		BetweenProductTextAndMedia: 1500 * time.Millisecond,
		BetweenMediaOfSameProduct:  time.Second,
		MaxProductsPerBatch:        10,
		MaxMediaPerProduct:         3,
		MaxRetryAttempts:           3,
		RetryDelay:                 2 * time.Second,
		ContinueOnMediaError:       true,
		ContinueOnProductError:     true,
		FallbackToURLOnError:       true,
		DownloadTimeout:            30 * time.Second,
		SendTimeout:                30 * time.Second,
		MinSendInterval:            config.MinSendInterval,
		BackoffMultiplier:          config.BackoffMultiplier,
		MaxAllowedDelay:            30 * time.Second,
		BackoffResetAfter:          config.BackoffResetAfter,
	}
}

// FromAppConfig maps the environment configuration onto a pipeline Config.
func FromAppConfig(app *config.Config) Config {
	cfg := DefaultConfig()
	cfg.BetweenProducts = time.Duration(app.BetweenProductsMS) * time.Millisecond
	cfg.BetweenProductTextAndMedia = time.Duration(app.BetweenProductTextAndMediaMS) * time.Millisecond
	cfg.BetweenMediaOfSameProduct = time.Duration(app.BetweenMediaOfSameProductMS) * time.Millisecond
	cfg.MaxProductsPerBatch = app.MaxProductsPerBatch
	cfg.MaxMediaPerProduct = app.MaxMediaPerProduct
	cfg.MaxRetryAttempts = app.MaxRetryAttempts
	cfg.RetryDelay = time.Duration(app.RetryDelayMS) * time.Millisecond
	cfg.ContinueOnMediaError = app.ContinueOnMediaError
	cfg.ContinueOnProductError = app.ContinueOnProductError
	cfg.FallbackToURLOnError = app.FallbackToURLOnError
	cfg.DownloadTimeout = time.Duration(app.MediaDownloadTimeoutS) * time.Second
	cfg.SendTimeout = time.Duration(app.SendTimeoutS) * time.Second
	cfg.MaxAllowedDelay = time.Duration(app.MaxAllowedDelayMS) * time.Millisecond
	return cfg
}

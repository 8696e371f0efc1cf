package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL" envDefault:""`
	ResponderURL      string `env:"RESPONDER_URL,required"`
	ChannelGatewayURL string `env:"CHANNEL_GATEWAY_URL,required"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`

	// Reconnect restored sessions at startup instead of waiting for an
	// explicit trigger per session.
	AutoReconnect bool `env:"AUTO_RECONNECT" envDefault:"false"`

	RateLimitPerMin   int `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	SnapshotIntervalS int `env:"SNAPSHOT_INTERVAL_SECONDS" envDefault:"300"`
	InboundQueueCap   int `env:"INBOUND_QUEUE_CAP" envDefault:"64"`
	ResponderTimeoutS int `env:"RESPONDER_TIMEOUT_SECONDS" envDefault:"60"`

	// Delivery pacing
	BetweenProductsMS            int  `env:"DELAY_BETWEEN_PRODUCTS_MS" envDefault:"3000"`
	BetweenProductTextAndMediaMS int  `env:"DELAY_PRODUCT_TEXT_MEDIA_MS" envDefault:"1500"`
	BetweenMediaOfSameProductMS  int  `env:"DELAY_BETWEEN_MEDIA_MS" envDefault:"1000"`
	MaxProductsPerBatch          int  `env:"MAX_PRODUCTS_PER_BATCH" envDefault:"10"`
	MaxMediaPerProduct           int  `env:"MAX_MEDIA_PER_PRODUCT" envDefault:"3"`
	MaxRetryAttempts             int  `env:"MAX_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelayMS                 int  `env:"RETRY_DELAY_MS" envDefault:"2000"`
	ContinueOnMediaError         bool `env:"CONTINUE_ON_MEDIA_ERROR" envDefault:"true"`
	ContinueOnProductError       bool `env:"CONTINUE_ON_PRODUCT_ERROR" envDefault:"true"`
	FallbackToURLOnError         bool `env:"FALLBACK_TO_URL_ON_ERROR" envDefault:"true"`
	MediaDownloadTimeoutS        int  `env:"MEDIA_DOWNLOAD_TIMEOUT_SECONDS" envDefault:"30"`
	SendTimeoutS                 int  `env:"SEND_TIMEOUT_SECONDS" envDefault:"30"`
	MaxAllowedDelayMS            int  `env:"MAX_ALLOWED_DELAY_MS" envDefault:"30000"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalS) * time.Second
}

func (c *Config) ResponderTimeout() time.Duration {
	return time.Duration(c.ResponderTimeoutS) * time.Second
}

func (c *Config) Validate() error {
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must be at least 1")
	}
	if c.InboundQueueCap < 1 {
		return fmt.Errorf("INBOUND_QUEUE_CAP must be at least 1")
	}
	if c.MaxProductsPerBatch < 1 || c.MaxMediaPerProduct < 1 {
		return fmt.Errorf("product batch caps must be at least 1")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Session lifecycle timeouts
const (
	ConnectTimeout         = 2 * time.Minute
	GracefulDestroyTimeout = 15 * time.Second
	ForcedCleanupTimeout   = 10 * time.Second
)

// Inbound queue consumers exit and free their queue after this long
// without traffic.
const InboundQueueIdleTTL = 10 * time.Minute

// Anti-spam governor defaults: sends arriving faster than MinSendInterval
// escalate the pacing delay by BackoffMultiplier; the delay resets to the
// configured base after BackoffResetAfter consecutive on-pace sends.
const (
	MinSendInterval   = 500 * time.Millisecond
	BackoffMultiplier = 2.0
	BackoffResetAfter = 5
)

// Default rate limiting for the control API
const DefaultRateLimitPerMin = 120

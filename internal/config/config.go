package config

import (
	"time"

	pkgconfig "courier/pkg/config"
	"courier/pkg/validation"
)

// Config aggregates every recognized service option. All values come from
// the environment with defaults; LoadEnv has already been called by the time
// Load runs.
type Config struct {
	Host string
	Port string

	// Extra public channels augmenting the built-in allow-list
	Channels []string

	HeartbeatInterval    time.Duration
	MaxClientsPerChannel int

	RequireAuth  bool
	JWTSecret    string
	JWTAlgorithm string
	ServiceToken string

	ShutdownTimeout     time.Duration
	ShutdownGracePeriod time.Duration

	RateLimitEnabled              bool
	RateLimitPublishRequests      int
	RateLimitWebSocketConnections int
	RateLimitWindow               time.Duration

	MessageLimits validation.Limits

	// Optional broker ingest; disabled when empty
	NATSURL string
}

// Load reads the service configuration from the environment
func Load() Config {
	return Config{
		Host: pkgconfig.GetEnv("HOST", "0.0.0.0"),
		Port: pkgconfig.GetEnv("PORT", "8765"),

		Channels: pkgconfig.GetEnvList("CHANNELS"),

		HeartbeatInterval:    pkgconfig.GetEnvSeconds("HEARTBEAT_INTERVAL", 30*time.Second),
		MaxClientsPerChannel: pkgconfig.GetEnvInt("MAX_CLIENTS_PER_CHANNEL", 0),

		RequireAuth:  pkgconfig.GetEnvBool("REQUIRE_AUTH", true),
		JWTSecret:    pkgconfig.GetEnv("JWT_SECRET", ""),
		JWTAlgorithm: pkgconfig.GetEnv("JWT_ALGORITHM", "HS256"),
		ServiceToken: pkgconfig.GetEnv("SERVICE_TOKEN", ""),

		ShutdownTimeout:     pkgconfig.GetEnvSeconds("SHUTDOWN_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: pkgconfig.GetEnvSeconds("SHUTDOWN_GRACE_PERIOD", 5*time.Second),

		RateLimitEnabled:              pkgconfig.GetEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitPublishRequests:      pkgconfig.GetEnvInt("RATE_LIMIT_PUBLISH_REQUESTS", 100),
		RateLimitWebSocketConnections: pkgconfig.GetEnvInt("RATE_LIMIT_WEBSOCKET_CONNECTIONS", 10),
		RateLimitWindow:               pkgconfig.GetEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second),

		MessageLimits: validation.Limits{
			MaxMessageSize:  pkgconfig.GetEnvInt("MAX_MESSAGE_SIZE", 1048576),
			MaxStringLength: pkgconfig.GetEnvInt("MAX_STRING_LENGTH", 10000),
			MaxArraySize:    pkgconfig.GetEnvInt("MAX_ARRAY_SIZE", 1000),
		},

		NATSURL: pkgconfig.GetEnv("NATS_URL", ""),
	}
}

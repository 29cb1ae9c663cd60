package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config configures the relay server.
type Config struct {
	Port int `envconfig:"PORT" default:"8080"`
	// DatabaseURL selects the postgres store. Empty keeps rooms in memory,
	// or in Redis when RedisAddr is set.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// RedisAddr enables fan-out between relay instances.
	RedisAddr      string     `envconfig:"REDIS_ADDR"`
	JWTSecret      string     `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AllowedOrigins []string   `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       slog.Level `envconfig:"LOG_LEVEL" default:"info"`
	MDNSEnabled    bool       `envconfig:"MDNS_ENABLED" default:"false"`
	// SnapshotInterval is the number of stored updates between snapshots.
	SnapshotInterval int `envconfig:"SNAPSHOT_INTERVAL" default:"500"`
}

// ClientConfig configures local tools and the browser bridge.
type ClientConfig struct {
	OfflineDBPath      string        `envconfig:"OFFLINE_DB_PATH" default:"inkdrift.db"`
	SyncThrottle       time.Duration `envconfig:"SYNC_THROTTLE" default:"16ms"`
	UndoCaptureTimeout time.Duration `envconfig:"UNDO_CAPTURE_TIMEOUT" default:"500ms"`
	LogLevel           slog.Level    `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OriginPatterns returns AllowedOrigins as host patterns for websocket
// origin checks.
func (c *Config) OriginPatterns() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		o = strings.TrimSpace(o)
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// NewLogger returns a text logger on stdout at level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

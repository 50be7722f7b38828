package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"cliquey/pkg/platform/middleware/metadata"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset. It must never reach production.
const DevSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// TrustedProxies lists the peers (CIDR or address) whose X-Forwarded-For
	// and X-Real-IP headers are believed. Empty means none.
	TrustedProxies []netip.Prefix
}

// DatabaseConfig selects Postgres. An empty URL means in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional revocation-list backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	JWTSigningKey  string
	SessionTTL     time.Duration
	InvitationTTL  time.Duration
	BootstrapLogin string
	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool
	// BootstrapPassword is only read at startup to seed the first admin.
	BootstrapPassword string
}

// AuditConfig enables the Kafka sink when Brokers is non-empty. The topic is
// created at startup when TopicPartitions is positive.
type AuditConfig struct {
	Brokers          []string
	Topic            string
	TopicPartitions  int
	TopicReplication int
	TopicRetention   time.Duration
}

// RateLimitConfig bounds credential endpoints per client IP. Counters live in
// Redis when configured.
type RateLimitConfig struct {
	Disabled     bool
	AuthRequests int
	AuthWindow   time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, v))
			return def
		}
		return n
	}
	flag := func(key string) bool {
		v := os.Getenv(key)
		if v == "" {
			return false
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
			return false
		}
		return b
	}

	proxies := func() []netip.Prefix {
		p, err := metadata.ParseTrustedProxies(splitList(os.Getenv("TRUSTED_PROXIES")))
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES: %v", err))
			return nil
		}
		return p
	}

	cfg := Config{
		Server: Server{
			Addr:            envOr("CLIQUEY_ADDR", ":8080"),
			ShutdownTimeout: dur("SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustedProxies:  proxies(),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    num("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    num("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: dur("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey:     envOr("JWT_SIGNING_KEY", DevSigningKey),
			SessionTTL:        dur("SESSION_TTL", 12*time.Hour),
			InvitationTTL:     dur("INVITATION_TTL", 30*24*time.Hour),
			SecureCookies:     flag("COOKIE_SECURE"),
			BootstrapLogin:    os.Getenv("BOOTSTRAP_ADMIN_LOGIN"),
			BootstrapPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Audit: AuditConfig{
			Brokers:          splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:            envOr("AUDIT_TOPIC", "cliquey.audit"),
			TopicPartitions:  num("AUDIT_TOPIC_PARTITIONS", 0),
			TopicReplication: num("AUDIT_TOPIC_REPLICATION", 1),
			TopicRetention:   dur("AUDIT_TOPIC_RETENTION", 0),
		},
		RateLimit: RateLimitConfig{
			Disabled:     flag("RATE_LIMIT_DISABLED"),
			AuthRequests: num("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindow:   dur("RATE_LIMIT_AUTH_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}

	if cfg.Auth.InvitationTTL > 365*24*time.Hour {
		errs = append(errs, "INVITATION_TTL: must not exceed 8760h")
	}
	if (cfg.Auth.BootstrapLogin == "") != (cfg.Auth.BootstrapPassword == "") {
		errs = append(errs, "BOOTSTRAP_ADMIN_LOGIN and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

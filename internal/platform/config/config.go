package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration. FromEnv keeps main lean.
type Server struct {
	Addr string

	// PostgresDSN is empty in development; stores fall back to in-memory.
	PostgresDSN string
	// RedisAddr enables the shared closure cache and the Redis-backed
	// impersonation session store when set.
	RedisAddr string
	// KafkaBrokers enables audit outbox publishing when non-empty.
	KafkaBrokers []string
	// AuditTopic is the Kafka topic audit ledger entries are published to.
	AuditTopic string

	// JWTSigningKey signs bearer credentials.
	JWTSigningKey string
	// ImpersonationSigningKey signs impersonation session credentials. Kept
	// distinct from JWTSigningKey so the two credential kinds never mix.
	ImpersonationSigningKey string

	// OperatorRoutePrefixes are the route classes unreachable while
	// impersonation is active.
	OperatorRoutePrefixes []string

	// ScopeClosureTTL bounds how stale a cached ancestor closure may be.
	// This is the documented propagation delay for scope topology changes.
	ScopeClosureTTL time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("GATEHOUSE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	impSigningKey := os.Getenv("IMPERSONATION_SIGNING_KEY")
	if impSigningKey == "" {
		impSigningKey = "dev-impersonation-key-change-in-production"
	}

	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "gatehouse.audit"
	}

	prefixes := splitList(os.Getenv("OPERATOR_ROUTE_PREFIXES"))
	if len(prefixes) == 0 {
		prefixes = []string{"/platform/", "/founder/"}
	}

	ttl := 30 * time.Second
	if raw := os.Getenv("SCOPE_CLOSURE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	return Server{
		Addr:                    addr,
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:              topic,
		JWTSigningKey:           jwtSigningKey,
		ImpersonationSigningKey: impSigningKey,
		OperatorRoutePrefixes:   prefixes,
		ScopeClosureTTL:         ttl,
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. All external calls carry a
// caller-supplied timeout; the values here are the defaults main wires in.
type Server struct {
	Addr             string
	DatabasePath     string
	ResolverEndpoint string
	BlobEndpoint     string
	ResolveTimeout   time.Duration
	BlobTimeout      time.Duration
	AuditBufferSize  int
	ChainMaxAttempts int
	TracingEnabled   bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:             ":8080",
		DatabasePath:     "tracevault.db",
		ResolveTimeout:   10 * time.Second,
		BlobTimeout:      15 * time.Second,
		AuditBufferSize:  256,
		ChainMaxAttempts: 5,
	}

	if addr := os.Getenv("TRACEVAULT_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if path := os.Getenv("DATABASE_FILEPATH"); path != "" {
		cfg.DatabasePath = path
	}
	cfg.ResolverEndpoint = os.Getenv("DID_RESOLVER_ENDPOINT")
	cfg.BlobEndpoint = os.Getenv("BLOB_STORE_ENDPOINT")

	if v := os.Getenv("RESOLVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ResolveTimeout = d
		}
	}
	if v := os.Getenv("BLOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BlobTimeout = d
		}
	}
	if v := os.Getenv("AUDIT_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuditBufferSize = n
		}
	}
	if v := os.Getenv("CHAIN_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChainMaxAttempts = n
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TracingEnabled = b
		}
	}

	return cfg
}

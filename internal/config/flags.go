package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

var knownFlags = []string{
	"-store", "-sqlite", "-pg", "-pg-vault", "-bolt",
	"-s3-bucket", "-s3-prefix", "-s3-region", "-s3-endpoint", "-s3-path-style",
	"-iterations", "-autolock", "-grace", "-format",
	"-log", "-log-level", "-socket", "-token-ttl",
}

// parseFlags overlays cfg with command-line flags.
//
// Supported flags:
//
//	-store string        store driver (memory, sqlite, postgres, bolt, s3)
//	-sqlite string       SQLite database file
//	-pg string           PostgreSQL DSN
//	-pg-vault string     vault id inside the PostgreSQL table
//	-bolt string         bbolt database file
//	-s3-* string         bucket, prefix, region, endpoint; -s3-path-style bool
//	-iterations int      PBKDF2 rounds for new records and exports
//	-autolock duration   inactivity timeout, 0 disables
//	-grace duration      background grace period, 0 locks at once
//	-format string       payload format (json, cbor)
//	-log string          log backend (slog, zap, zerolog)
//	-log-level string    debug, info, warn, error
//	-socket string       agent unix socket path
//	-token-ttl duration  agent session token lifetime
//
// Only these flags are looked at; args is first narrowed with
// flagx.FilterArgs so binaries may define flags of their own.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "store driver")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database file")
	fs.StringVar(&cfg.PostgresDSN, "pg", cfg.PostgresDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.PostgresVaultID, "pg-vault", cfg.PostgresVaultID, "vault id in PostgreSQL")
	fs.StringVar(&cfg.BoltPath, "bolt", cfg.BoltPath, "bbolt database file")

	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3 base endpoint")
	fs.BoolVar(&cfg.S3UsePathStyle, "s3-path-style", cfg.S3UsePathStyle, "use path-style S3 addressing")

	fs.IntVar(&cfg.KDFIterations, "iterations", cfg.KDFIterations, "PBKDF2 iterations")
	fs.DurationVar(&cfg.AutoLockTimeout, "autolock", cfg.AutoLockTimeout, "inactivity auto-lock timeout")
	fs.DurationVar(&cfg.BackgroundGrace, "grace", cfg.BackgroundGrace, "background grace period")
	fs.StringVar(&cfg.PayloadFormat, "format", cfg.PayloadFormat, "payload format")

	fs.StringVar(&cfg.LogBackend, "log", cfg.LogBackend, "log backend")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	fs.StringVar(&cfg.AgentSocket, "socket", cfg.AgentSocket, "agent socket path")
	fs.DurationVar(&cfg.AgentTokenTTL, "token-ttl", cfg.AgentTokenTTL, "agent token lifetime")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}

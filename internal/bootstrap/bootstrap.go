// Package bootstrap turns a config.Config into the live objects both
// binaries need: a logger, an open secret store and a vault manager.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/boltstore"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/postgres"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/s3store"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/sqlite"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the configured logging backend writing to w.
func NewLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	return logging.New(cfg.LogBackend, cfg.LogLevel, w)
}

// OpenStore opens the store selected by cfg.StoreDriver. The returned closer
// releases the backend and is never nil on success.
func OpenStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (secretstore.Store, io.Closer, error) {
	log := logger.With("driver", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn(ctx, "using in-memory store, nothing will be saved")
		return secretstore.NewMemory(), nopCloser{}, nil

	case config.DriverSQLite:
		if _, err := filex.EnsureParentDir(cfg.SQLitePath); err != nil {
			return nil, nil, err
		}
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Debug(ctx, "store opened", "path", cfg.SQLitePath)
		return s, s, nil

	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresVaultID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Debug(ctx, "store opened", "vault_id", cfg.PostgresVaultID)
		return s, s, nil

	case config.DriverBolt:
		if _, err := filex.EnsureParentDir(cfg.BoltPath); err != nil {
			return nil, nil, err
		}
		s, err := boltstore.Open(cfg.BoltPath, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.Debug(ctx, "store opened", "path", cfg.BoltPath)
		return s, s, nil

	case config.DriverS3:
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open s3 store: %w", err)
		}
		log.Debug(ctx, "store opened", "bucket", cfg.S3Bucket)
		return s, nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// NewManager wires a vault manager from cfg. Extra options are applied last.
func NewManager(store secretstore.Store, cfg *config.Config, logger logging.Logger, opts ...vault.Option) (*vault.Manager, error) {
	format, err := codec.ParseFormat(cfg.PayloadFormat)
	if err != nil {
		return nil, err
	}
	c, err := codec.New(format)
	if err != nil {
		return nil, err
	}

	base := []vault.Option{
		vault.WithIterations(cfg.KDFIterations),
		vault.WithCodec(c),
		vault.WithLogger(logger.With("component", "vault")),
		vault.WithAutoLockPolicy(autolock.Policy{
			InactivityTimeout: cfg.AutoLockTimeout,
			BackgroundGrace:   cfg.BackgroundGrace,
		}),
	}
	return vault.New(store, append(base, opts...)...), nil
}

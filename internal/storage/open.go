package storage

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/pricetracker/internal/config"
)

// Open builds the history store described by cfg. An unreachable mirror is
// logged and skipped; only an unusable history directory is an error.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger, opts ...FileOption) (*MultiStore, error) {
	file, err := NewFileStore(cfg.PricesDir, cfg.RetentionDays, logger, opts...)
	if err != nil {
		return nil, err
	}

	var mirrors []Mirror
	if cfg.Mongo.Enabled {
		m, err := NewMongoMirror(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
		if err != nil {
			logger.Error("mongodb mirror disabled", "error", err)
		} else {
			mirrors = append(mirrors, m)
		}
	}
	if cfg.Postgres.Enabled {
		m, err := NewPostgresMirror(ctx, cfg.Postgres.DSN, cfg.Postgres.Table, logger)
		if err != nil {
			logger.Error("postgres mirror disabled", "error", err)
		} else {
			mirrors = append(mirrors, m)
		}
	}
	return NewMultiStore(file, mirrors, logger), nil
}

// Package storage provides the key-value persistence the conversation store
// writes through. Values are opaque strings (JSON in practice).
package storage

import (
	"context"
	"fmt"

	"github.com/comigor/evo-go/internal/config"
	"github.com/comigor/evo-go/internal/logger"
)

// KV is a string key-value store with a single writer.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Open returns the KV selected by cfg.Driver.
func Open(cfg config.StorageConfig) (KV, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		return OpenSQLite(cfg.Path)
	case config.StorageBolt:
		return OpenBolt(cfg.Path)
	case config.StorageMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// OpenOrMemory is Open, falling back to a Memory store when the configured
// backend cannot be opened. Conversations then last only for the process.
func OpenOrMemory(cfg config.StorageConfig) KV {
	kv, err := Open(cfg)
	if err != nil {
		logger.L.Warn("storage open failed; using in-memory history", "driver", cfg.Driver, "path", cfg.Path, "error", err)
		return NewMemory()
	}
	return kv
}

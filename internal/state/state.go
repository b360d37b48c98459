// Package state is the broker's durable storage: a small keyed byte store
// holding the single session slot and the short-lived flow records that must
// survive a redirect round trip through an identity provider.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/cmswift/authbroker/internal/config"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("key not found")

// Store is a single-writer-wins byte store. Writing a key replaces the prior
// value wholesale; there is no partial update or merge. A ttl of zero means
// the record does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the store selected by configuration.
func New(cfg config.StateConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis config is required for redis state type")
		}
		return NewRedisStore(*cfg.Redis)
	default:
		return nil, errors.New("unsupported state store type: " + cfg.Type)
	}
}

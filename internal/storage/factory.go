package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend names accepted by NewStore.
const (
	BackendLocal  = "local"
	BackendCloud  = "cloud"
	BackendMemory = "memory"
)

// ErrUnknownBackend indicates a backend name NewStore does not recognize.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// Config selects and parameterizes the persistence backend. The backend is an
// explicit deployment decision made at startup.
type Config struct {
	Backend string
	Local   LocalConfig
	Cloud   CloudConfig
}

// LocalConfig points at the local document server.
type LocalConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CloudConfig points at an S3-compatible document bucket.
type CloudConfig struct {
	Bucket      string
	Region      string
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	Prefix      string
}

// NewStore constructs the configured backend.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewHTTPStore(HTTPStoreConfig{
			BaseURL: cfg.Local.BaseURL,
			Timeout: cfg.Local.Timeout,
			Logger:  logger,
		})
	case BackendCloud:
		return NewCloudStore(ctx, CloudStoreConfig{
			Bucket:      cfg.Cloud.Bucket,
			Region:      cfg.Cloud.Region,
			Endpoint:    cfg.Cloud.Endpoint,
			AccessKeyID: cfg.Cloud.AccessKeyID,
			SecretKey:   cfg.Cloud.SecretKey,
			Prefix:      cfg.Cloud.Prefix,
			Logger:      logger,
		})
	case BackendMemory:
		return NewMemoryStore(MemoryStoreConfig{}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

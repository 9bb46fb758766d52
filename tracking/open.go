package tracking

import (
	"context"
	"path/filepath"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Backend names accepted by Config.
const (
	StoreLocal       = "local"
	StoreMinio       = "minio"
	RegistryFile     = "file"
	RegistryPostgres = "postgres"
)

// Config selects and configures the tracking backends.
type Config struct {
	// Store is "local" or "minio".
	Store string `yaml:"store"`
	// Registry is "file" or "postgres".
	Registry string `yaml:"registry"`
	// Dir holds local blobs, the file registry and the download cache.
	Dir          string         `yaml:"dir"`
	DashboardURL string         `yaml:"dashboard_url"`
	Postgres     PostgresConfig `yaml:"postgres"`
	Minio        MinioConfig    `yaml:"minio"`
}

// Validate checks backend names and their required settings.
func (c Config) Validate() error {
	switch c.Store {
	case StoreLocal:
		if c.Dir == "" {
			return errors.NewValidationError("tracking.dir", "is required for the local store", c.Dir)
		}
	case StoreMinio:
		if err := c.Minio.Validate(); err != nil {
			return err
		}
	default:
		return errors.NewValidationError("tracking.store", "must be local or minio", c.Store)
	}
	switch c.Registry {
	case RegistryFile:
		if c.Dir == "" {
			return errors.NewValidationError("tracking.dir", "is required for the file registry", c.Dir)
		}
	case RegistryPostgres:
		if _, err := BuildPostgresDSN(c.Postgres); err != nil {
			return err
		}
	default:
		return errors.NewValidationError("tracking.registry", "must be file or postgres", c.Registry)
	}
	return nil
}

// Open builds a Client from cfg, migrating the Postgres schema when needed.
func Open(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store Store
	var err error
	switch cfg.Store {
	case StoreMinio:
		store, err = NewMinioStore(ctx, cfg.Minio)
	default:
		store, err = NewLocalStore(filepath.Join(cfg.Dir, "store"))
	}
	if err != nil {
		return nil, err
	}

	var registry Registry
	switch cfg.Registry {
	case RegistryPostgres:
		db, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := EnsureMigrated(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		registry = NewPostgresRegistry(db)
	default:
		if registry, err = NewFileRegistry(cfg.Dir); err != nil {
			return nil, err
		}
	}

	if cfg.Dir != "" {
		opts = append([]ClientOption{WithCacheDir(filepath.Join(cfg.Dir, "cache"))}, opts...)
	}
	return NewClient(store, registry, opts...), nil
}

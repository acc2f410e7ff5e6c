// Package config loads the lgceqty configuration file.
//
// The file is TOML and every key is optional:
//
//	[container]
//	compression = "zstd"      # none, gzip or zstd
//
//	[cache]
//	backend = "file"          # file, none, redis or mongo
//	dir = "/var/cache/lgceqty"
//	ttl = "720h"
//	redis_addr = "localhost:6379"
//	mongo_uri = "mongodb://localhost:27017"
//	mongo_database = "lgceqty"
//
//	[fetch]
//	concurrency = 1
//	fields_per_batch = 8
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sariayt/LGC-EQTY/pkg/cache"
	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// AppName names the configuration and cache directories.
const AppName = "lgceqty"

// EnvCacheDir overrides [Cache.Dir] when set.
const EnvCacheDir = "LGCEQTY_CACHE_DIR"

// Cache backends.
const (
	BackendFile  = "file"
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is the decoded configuration file.
type Config struct {
	Container Container `toml:"container"`
	Cache     Cache     `toml:"cache"`
	Fetch     Fetch     `toml:"fetch"`
}

type Container struct {
	Compression string `toml:"compression"`
}

type Cache struct {
	Backend       string        `toml:"backend"`
	Dir           string        `toml:"dir"`
	TTL           time.Duration `toml:"ttl"`
	RedisAddr     string        `toml:"redis_addr"`
	MongoURI      string        `toml:"mongo_uri"`
	MongoDatabase string        `toml:"mongo_database"`
}

type Fetch struct {
	Concurrency    int `toml:"concurrency"`
	FieldsPerBatch int `toml:"fields_per_batch"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Container: Container{Compression: string(container.DefaultCompression)},
		Cache: Cache{
			Backend:       BackendFile,
			RedisAddr:     "localhost:6379",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: AppName,
		},
		Fetch: Fetch{Concurrency: 1},
	}
}

// Path returns the default configuration file location,
// $XDG_CONFIG_HOME/lgceqty/config.toml.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName, "config.toml"), nil
}

// Load reads the file at path over the defaults. An empty path selects
// [Path]; a missing default file is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "config %s", path)
	default:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
		}
	}

	if dir := os.Getenv(EnvCacheDir); dir != "" {
		cfg.Cache.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values and numeric ranges.
func (c *Config) Validate() error {
	if _, err := container.ParseCompression(c.Container.Compression); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "container.compression")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone, BackendRedis, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "cache.backend %q: want file, none, redis or mongo", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	if c.Fetch.Concurrency < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "fetch.concurrency must be at least 1")
	}
	if c.Fetch.FieldsPerBatch < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "fetch.fields_per_batch must not be negative")
	}
	return nil
}

// Compression returns the configured container compression.
func (c *Config) Compression() container.Compression {
	comp, _ := container.ParseCompression(c.Container.Compression)
	return comp
}

// CacheDir returns the file cache directory: the configured one, or
// $XDG_CACHE_HOME/lgceqty.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// OpenCache connects the configured cache backend.
func (c *Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, c.Cache.RedisAddr, AppName+":")
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendMongo:
		mc, err := cache.NewMongoCache(ctx, c.Cache.MongoURI, c.Cache.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return mc, nil
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return nil, err
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

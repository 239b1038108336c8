// Package cache maintains one columnar parquet cache per source file
package cache

import (
	"errors"
)

// Static errors for configuration validation
var (
	ErrDirRequired        = errors.New("cache dir is required")
	ErrInvalidCompression = errors.New("invalid cache compression")
)

// Config controls where cache entries are written
type Config struct {
	Enabled     bool   `yaml:"enabled" default:"true"`
	Dir         string `yaml:"dir" default:"_parquet_cache"`
	Compression string `yaml:"compression" default:"snappy" validate:"oneof=none snappy zstd gzip"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Enabled && c.Dir == "" {
		return ErrDirRequired
	}

	switch c.Compression {
	case "", "none", "snappy", "zstd", "gzip":
	default:
		return ErrInvalidCompression
	}

	return nil
}

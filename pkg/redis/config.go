// Package redis provides the shared Redis connection settings
package redis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Define static errors
var (
	ErrNotConfigured = errors.New("redis url is not configured")
)

// Config holds Redis client configuration. An empty URL disables every
// Redis backed component.
type Config struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Prefix string `yaml:"prefix" default:"tlareport"`
}

// Enabled reports whether a URL is configured
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}

	if _, err := redis.ParseURL(c.URL); err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	if c.Prefix == "" {
		c.Prefix = "tlareport"
	}

	return nil
}

// PrefixKey joins the configured prefix and parts into a key namespace,
// always ending in a separator: PrefixKey("extents") is "tlareport:extents:"
func (c *Config) PrefixKey(parts ...string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "tlareport"
	}

	return strings.Join(append([]string{prefix}, parts...), ":") + ":"
}

// NewClient dials the configured URL
func (c *Config) NewClient() (*redis.Client, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}

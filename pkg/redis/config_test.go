package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("disabled without url", func(t *testing.T) {
		cfg := &Config{}

		assert.False(t, cfg.Enabled())
		assert.NoError(t, cfg.Validate())

		_, err := cfg.NewClient()
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("valid url fills prefix", func(t *testing.T) {
		cfg := &Config{URL: "redis://localhost:6379/2"}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "tlareport", cfg.Prefix)

		client, err := cfg.NewClient()
		require.NoError(t, err)
		assert.Equal(t, 2, client.Options().DB)
		assert.NoError(t, client.Close())
	})

	t.Run("invalid url", func(t *testing.T) {
		cfg := &Config{URL: "http://localhost"}

		assert.Error(t, cfg.Validate())
	})
}

func TestPrefixKey(t *testing.T) {
	cfg := &Config{Prefix: "plant1"}

	assert.Equal(t, "plant1:extents:", cfg.PrefixKey("extents"))
	assert.Equal(t, "plant1:scheduler:job:", cfg.PrefixKey("scheduler", "job"))
	assert.Equal(t, "tlareport:extents:", (&Config{}).PrefixKey("extents"))
}

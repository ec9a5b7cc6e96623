// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "chatprobe", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Wait.DefaultTimeout)
	assert.Equal(t, 30*time.Second, cfg.Wait.ReplyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Target.PageLoadTimeout)
	assert.Equal(t, 1, cfg.Runner.Concurrency)
	assert.Equal(t, []string{"ui", "responses", "security"}, cfg.Runner.Suites)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate(), "default config should validate")

	t.Run("poll interval must be positive", func(t *testing.T) {
		bad := *cfg
		bad.Wait.PollInterval = 0
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "wait.poll_interval")
	})

	t.Run("default timeout below one poll interval", func(t *testing.T) {
		bad := *cfg
		bad.Wait.DefaultTimeout = 100 * time.Millisecond
		bad.Wait.PollInterval = 250 * time.Millisecond
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "wait.default_timeout")
	})

	t.Run("concurrency must be positive", func(t *testing.T) {
		bad := *cfg
		bad.Runner.Concurrency = 0
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "runner.concurrency")
	})

	t.Run("submit rate must not be negative", func(t *testing.T) {
		bad := *cfg
		bad.Runner.SubmitRate = -1
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "runner.submit_rate")
	})

	t.Run("zero submit rate disables pacing", func(t *testing.T) {
		ok := *cfg
		ok.Runner.SubmitRate = 0
		assert.NoError(t, ok.Validate())
	})

	t.Run("page load timeout must be positive", func(t *testing.T) {
		bad := *cfg
		bad.Target.PageLoadTimeout = 0
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "target.page_load_timeout")
	})
}

// -- Viper Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yaml := []byte(`
target:
  url: "https://chat.example.test"
  page_load_timeout: 45s
browser:
  headless: false
wait:
  poll_interval: 100ms
  reply_timeout: 20s
runner:
  concurrency: 3
  suites: ["ui"]
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.test", cfg.Target.URL)
	assert.Equal(t, 45*time.Second, cfg.Target.PageLoadTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 100*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.Wait.ReplyTimeout)
	assert.Equal(t, 3, cfg.Runner.Concurrency)
	assert.Equal(t, []string{"ui"}, cfg.Runner.Suites)

	// Defaults not touched by the file remain intact.
	assert.Equal(t, 2*time.Second, cfg.Wait.ProbeTimeout)
	assert.Equal(t, "chatprobe", cfg.Logger.ServiceName)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("runner.concurrency", 0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

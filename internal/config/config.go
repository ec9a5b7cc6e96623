// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire harness configuration. Values are loaded once at
// startup and never re-read mid-run.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Wait    WaitConfig    `mapstructure:"wait" yaml:"wait"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// TargetConfig describes the chatbot under test.
type TargetConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	// WidgetGrace is the fixed grace period granted to the chat widget to
	// become ready after navigation before the run is declared dead.
	WidgetGrace time.Duration `mapstructure:"widget_grace" yaml:"widget_grace"`
}

// BrowserConfig controls the Chrome allocator.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// WaitConfig tunes the condition-wait engine and the resolver.
type WaitConfig struct {
	// PollInterval bounds how often a condition is re-evaluated.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// DefaultTimeout applies when a call site passes no explicit budget.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// ReplyTimeout bounds the wait for an AI reply after a submission.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout" yaml:"reply_timeout"`
	// ProbeTimeout bounds non-throwing liveness probes (short by design).
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	// SendControlTimeout bounds the lookup of an optional send button before
	// falling back to the Enter key.
	SendControlTimeout time.Duration `mapstructure:"send_control_timeout" yaml:"send_control_timeout"`
}

// RunnerConfig controls suite execution.
type RunnerConfig struct {
	Suites        []string `mapstructure:"suites" yaml:"suites"`
	DataFile      string   `mapstructure:"data_file" yaml:"data_file"`
	Concurrency   int      `mapstructure:"concurrency" yaml:"concurrency"`
	SubmitRate    float64  `mapstructure:"submit_rate" yaml:"submit_rate"` // prompts per second across the run
	ScreenshotDir string   `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ReportFile    string   `mapstructure:"report_file" yaml:"report_file"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Target --
	v.SetDefault("target.url", "")
	v.SetDefault("target.page_load_timeout", "30s")
	v.SetDefault("target.widget_grace", "15s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Wait --
	v.SetDefault("wait.poll_interval", "250ms")
	v.SetDefault("wait.default_timeout", "10s")
	v.SetDefault("wait.reply_timeout", "30s")
	v.SetDefault("wait.probe_timeout", "2s")
	v.SetDefault("wait.send_control_timeout", "3s")

	// -- Runner --
	v.SetDefault("runner.suites", []string{"ui", "responses", "security"})
	v.SetDefault("runner.data_file", "data/scenarios.json")
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.submit_rate", 0.5)
	v.SetDefault("runner.screenshot_dir", "screenshots")
	v.SetDefault("runner.report_file", "")
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a Config from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. The target URL is
// validated by the run command rather than here so that commands that never
// open a browser still work without one.
func (c *Config) Validate() error {
	if c.Wait.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be a positive duration")
	}
	if c.Wait.DefaultTimeout < c.Wait.PollInterval {
		return fmt.Errorf("wait.default_timeout must be at least one poll interval")
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.Runner.SubmitRate < 0 {
		return fmt.Errorf("runner.submit_rate must not be negative; zero disables pacing")
	}
	if c.Target.PageLoadTimeout <= 0 {
		return fmt.Errorf("target.page_load_timeout must be a positive duration")
	}
	return nil
}

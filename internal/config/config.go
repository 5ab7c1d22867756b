package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// FetchLimit is the page size for message pagination.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`
	// MessageMaxLength caps raw input before sanitization.
	MessageMaxLength int `mapstructure:"message_max_length" yaml:"message_max_length"`

	// GripURL configures the publishing endpoint of the streaming edge
	// proxy (Fastly Fanout or Pushpin). Empty disables publishing.
	GripURL string `mapstructure:"grip_url" yaml:"grip_url"`
	// GripVerifyKey, when set, requires streaming requests to carry a
	// Grip-Sig signed by the proxy with this key.
	GripVerifyKey string `mapstructure:"grip_verify_key" yaml:"grip_verify_key"`

	APIKeys  []string `mapstructure:"api_keys" yaml:"api_keys"`
	AdminKey string   `mapstructure:"admin_key" yaml:"admin_key"`

	// LocalMode skips API-key checks and substitutes LocalUser for
	// requests without an identity header. Development only.
	LocalMode bool   `mapstructure:"local_mode" yaml:"local_mode"`
	LocalUser string `mapstructure:"local_user" yaml:"local_user"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      ".data/chat.db",
		LogLevel:          "info",
		FetchLimit:        20,
		MessageMaxLength:  500,
		LocalUser:         "Testy McTestface",
	}
}

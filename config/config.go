// Package config loads refract server configuration from refract.yml with
// environment variable overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the refract server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LogLevel string         `mapstructure:"log_level"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	PageSize    int    `mapstructure:"page_size"`
	MaxPageSize int    `mapstructure:"max_page_size"`
}

// DatabaseConfig represents storage configuration. Driver is "memory" or
// "sqlite"; Path is the sqlite database file.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// AuthConfig represents permission policy configuration
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	AnonymousRead bool   `mapstructure:"anonymous_read"`
}

// Load loads the configuration from refract.yml or refract.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.page_size", 25)
	v.SetDefault("server.max_page_size", 100)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.path", "refract.db")
	v.SetDefault("auth.anonymous_read", true)
	v.SetDefault("log_level", "info")

	v.SetConfigName("refract")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("REFRACT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: run on defaults.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Driver != "memory" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unknown database driver: %s", config.Database.Driver)
	}
	return &config, nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a YAML file and DISCORDLITE_-prefixed
// environment variables. CONFIG_PATH overrides the search path.
func Load() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/discordlite")
	}

	viper.SetEnvPrefix("DISCORDLITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.shutdown_timeout", "15s")

	viper.SetDefault("database.driver", "file")
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.postgres.auto_migrate", true)
	viper.SetDefault("database.redis.addr", "localhost:6379")
	viper.SetDefault("database.file.path", "data/discordlite.yaml")

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.topic", "security.events")

	viper.SetDefault("security.linking.code_ttl", "300s")
	viper.SetDefault("security.linking.cooldown", "60s")
	viper.SetDefault("security.challenge.timeout", "60s")
	viper.SetDefault("security.challenge.deny_ban_duration", "1h")
	viper.SetDefault("security.ban.failed_attempt_limit", 3)
	viper.SetDefault("security.ban.failed_attempt_window", "5m")
	viper.SetDefault("security.ban.autoban_duration", "1h")
	viper.SetDefault("security.ban.sweep_interval", "5m")
	viper.SetDefault("security.risk.window", "60m")
	viper.SetDefault("security.risk.event_weight", 10)
	viper.SetDefault("security.risk.severity_weight", 15)
	viper.SetDefault("security.risk.kind_weight", 5)
	viper.SetDefault("security.risk.burst_bonus", 30)
	viper.SetDefault("security.risk.burst_span", "5m")
	viper.SetDefault("security.risk.medium_threshold", 30)
	viper.SetDefault("security.risk.high_threshold", 60)
	viper.SetDefault("security.risk.critical_threshold", 80)
	viper.SetDefault("security.events.retention_days", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.environment", "development")

	viper.SetDefault("admin.token_ttl", "12h")
}

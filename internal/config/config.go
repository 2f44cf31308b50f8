package config

import "time"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the store backend. Driver is one of
// "postgres", "redis", "file".
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	File     FileConfig     `mapstructure:"file"`
}

type PostgresConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FileConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SecurityConfig struct {
	Linking   LinkingConfig   `mapstructure:"linking"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
	Ban       BanConfig       `mapstructure:"ban"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Events    EventsConfig    `mapstructure:"events"`
}

type LinkingConfig struct {
	CodeTTL  time.Duration `mapstructure:"code_ttl"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type ChallengeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// DenyBanDuration is applied to the origin when a challenge is explicitly
	// denied. Zero disables the deny-time ban.
	DenyBanDuration time.Duration `mapstructure:"deny_ban_duration"`
}

type BanConfig struct {
	FailedAttemptLimit  int           `mapstructure:"failed_attempt_limit"`
	FailedAttemptWindow time.Duration `mapstructure:"failed_attempt_window"`
	AutobanDuration     time.Duration `mapstructure:"autoban_duration"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	Whitelist           []string      `mapstructure:"whitelist"`
}

// RiskConfig carries the scoring policy. The weights and thresholds default to
// the values the system shipped with; treat them as tunable policy, and keep
// their relative magnitudes when adjusting.
type RiskConfig struct {
	Window            time.Duration `mapstructure:"window"`
	EventWeight       int           `mapstructure:"event_weight"`
	SeverityWeight    int           `mapstructure:"severity_weight"`
	KindWeight        int           `mapstructure:"kind_weight"`
	BurstBonus        int           `mapstructure:"burst_bonus"`
	BurstSpan         time.Duration `mapstructure:"burst_span"`
	MediumThreshold   int           `mapstructure:"medium_threshold"`
	HighThreshold     int           `mapstructure:"high_threshold"`
	CriticalThreshold int           `mapstructure:"critical_threshold"`
}

type EventsConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

type AdminConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

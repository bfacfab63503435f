// Package config loads service settings from an optional .env file, an optional YAML file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr               string   `mapstructure:"addr"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	} `mapstructure:"server"`

	Database struct {
		URL     string `mapstructure:"url"`
		Migrate bool   `mapstructure:"migrate"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers     []string `mapstructure:"brokers"`
		TopicPrefix string   `mapstructure:"topic_prefix"`
	} `mapstructure:"kafka"`

	JWT struct {
		Secret string `mapstructure:"secret"`
		Issuer string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Sweep struct {
		Interval    time.Duration `mapstructure:"interval"`
		Lookahead   time.Duration `mapstructure:"lookahead"`
		DedupWindow time.Duration `mapstructure:"dedup_window"`
	} `mapstructure:"sweep"`

	School struct {
		Name     string `mapstructure:"name"`
		Currency string `mapstructure:"currency"`
	} `mapstructure:"school"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Dev struct {
		Seed bool `mapstructure:"seed"`
	} `mapstructure:"dev"`
}

// Load reads configuration. path may be empty, in which case configs/config.yaml is tried.
// Environment variables use upper-case keys with '_' for '.', e.g. DATABASE_URL or SWEEP_INTERVAL.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		path = "configs/config.yaml"
	}
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server.CorsAllowedOrigins = splitList(cfg.Server.CorsAllowedOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "tuition")
	v.SetDefault("sweep.interval", time.Hour)
	v.SetDefault("sweep.lookahead", 72*time.Hour)
	v.SetDefault("sweep.dedup_window", 24*time.Hour)
	v.SetDefault("school.name", "")
	v.SetDefault("school.currency", "PHP")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dev.seed", false)
}

func (c *Config) validate() error {
	if c.Sweep.Interval <= 0 {
		return errors.New("sweep.interval must be positive")
	}
	if c.Sweep.Lookahead < 0 || c.Sweep.DedupWindow < 0 {
		return errors.New("sweep.lookahead and sweep.dedup_window must not be negative")
	}
	if len(c.School.Currency) != 3 {
		return fmt.Errorf("school.currency %q is not an ISO 4217 code", c.School.Currency)
	}
	c.School.Currency = strings.ToUpper(c.School.Currency)
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/shopgate/member-service/internal/repository"
)

type Config struct {
	HTTPPort         string        `mapstructure:"HTTP_PORT"`
	PostgresHost     string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort     int           `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string        `mapstructure:"POSTGRES_USER"`
	PostgresPassword string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB       string        `mapstructure:"POSTGRES_DB"`
	PostgresSSLMode  string        `mapstructure:"POSTGRES_SSLMODE"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	ShutdownTimeout  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogPretty        bool          `mapstructure:"LOG_PRETTY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8081")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "member")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_DB", "memberdb")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if c.PostgresPort <= 0 {
		errs = append(errs, errors.New("POSTGRES_PORT must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSLMode,
	}
}

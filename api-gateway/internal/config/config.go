package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort                string        `mapstructure:"HTTP_PORT"`
	MemberServiceURL        string        `mapstructure:"MEMBER_SERVICE_URL"`
	CartServiceURL          string        `mapstructure:"CART_SERVICE_URL"`
	SearchServiceURL        string        `mapstructure:"SEARCH_SERVICE_URL"`
	JWTSecret               string        `mapstructure:"JWT_SECRET"`
	JWTExpiration           time.Duration `mapstructure:"JWT_EXPIRATION"`
	RevocationSweepInterval time.Duration `mapstructure:"REVOCATION_SWEEP_INTERVAL"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout         time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	MaxRequestBodySize      int64         `mapstructure:"MAX_REQUEST_BODY_SIZE"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	LogPretty               bool          `mapstructure:"LOG_PRETTY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MEMBER_SERVICE_URL", "http://localhost:8081")
	v.SetDefault("CART_SERVICE_URL", "http://localhost:8082")
	v.SetDefault("SEARCH_SERVICE_URL", "http://localhost:8083")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", 24*time.Hour)
	v.SetDefault("REVOCATION_SWEEP_INTERVAL", time.Hour)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 1<<20) // 1MB
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// Load reads defaults, then the optional file, then the environment.
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
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.JWTExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	for name, raw := range map[string]string{
		"MEMBER_SERVICE_URL": c.MemberServiceURL,
		"CART_SERVICE_URL":   c.CartServiceURL,
		"SEARCH_SERVICE_URL": c.SearchServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute url: %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

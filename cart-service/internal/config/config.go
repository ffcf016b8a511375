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
	HTTPPort         string        `mapstructure:"HTTP_PORT"`
	MongoURI         string        `mapstructure:"MONGO_URI"`
	MongoDBName      string        `mapstructure:"MONGO_DB_NAME"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	SearchServiceURL string        `mapstructure:"SEARCH_SERVICE_URL"`
	MemberServiceURL string        `mapstructure:"MEMBER_SERVICE_URL"`
	ClientTimeout    time.Duration `mapstructure:"CLIENT_TIMEOUT"`
	KafkaBrokers     string        `mapstructure:"KAFKA_BROKERS"` // comma separated, empty disables the consumer
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout  time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogPretty        bool          `mapstructure:"LOG_PRETTY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8082")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "cartdb")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SEARCH_SERVICE_URL", "http://localhost:8083")
	v.SetDefault("MEMBER_SERVICE_URL", "http://localhost:8081")
	v.SetDefault("CLIENT_TIMEOUT", 5*time.Second)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
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

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MongoDBName == "" {
		errs = append(errs, errors.New("MONGO_DB_NAME is required"))
	}
	if c.ClientTimeout <= 0 {
		errs = append(errs, errors.New("CLIENT_TIMEOUT must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	for name, raw := range map[string]string{
		"SEARCH_SERVICE_URL": c.SearchServiceURL,
		"MEMBER_SERVICE_URL": c.MemberServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute url: %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

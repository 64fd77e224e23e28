package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode selects which gateway backs the service.
type Mode string

const (
	// ModeRemote proxies to a real order ledger backend over HTTP.
	ModeRemote Mode = "remote"
	// ModeDemo runs the built-in in-memory ledger and fake processor.
	ModeDemo Mode = "demo"
)

type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Mode        Mode   `mapstructure:"mode"`

	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Gateway struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"gateway"`

	Session struct {
		// Path of the persisted session token file. Empty keeps the
		// token in memory only.
		Path string `mapstructure:"path"`
	} `mapstructure:"session"`

	Stripe struct {
		SecretKey      string `mapstructure:"secret_key"`
		PublishableKey string `mapstructure:"publishable_key"`
		WebhookSecret  string `mapstructure:"webhook_secret"`
		PaymentMethod  string `mapstructure:"payment_method"`
	} `mapstructure:"stripe"`

	Shipping struct {
		Fee           int64 `mapstructure:"fee"`
		FreeThreshold int64 `mapstructure:"free_threshold"`
	} `mapstructure:"shipping"`

	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`
}

// Load reads configuration from an optional storefront.yaml and STOREFRONT_*
// environment variables, env winning.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("service_name", "storefront")
	v.SetDefault("mode", string(ModeDemo))
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("gateway.base_url", "http://localhost:3000")
	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("session.path", "")
	v.SetDefault("shipping.fee", 799)
	v.SetDefault("shipping.free_threshold", 10000)
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("storefront")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/storefront")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		// No file is fine; defaults plus env carry a demo deployment.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeRemote:
		if c.Gateway.BaseURL == "" {
			return errors.New("config: gateway.base_url is required in remote mode")
		}
		if c.Stripe.SecretKey == "" {
			return errors.New("config: stripe.secret_key is required in remote mode")
		}
	case ModeDemo:
		// Demo mode has no external requirements.
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Shipping.Fee < 0 || c.Shipping.FreeThreshold < 0 {
		return errors.New("config: shipping amounts must not be negative")
	}
	return nil
}

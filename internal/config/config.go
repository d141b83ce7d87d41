// Package config loads service configuration from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string        `yaml:"service_name"`
	Env         string        `yaml:"env"`
	Server      ServerConfig  `yaml:"server"`
	Store       StoreConfig   `yaml:"store"`
	MySQL       MySQLConfig   `yaml:"mysql"`
	Redis       RedisConfig   `yaml:"redis"`
	Session     SessionConfig `yaml:"session"`
	RateLimits  RateLimits    `yaml:"rate_limits"`
	Pricing     PricingConfig `yaml:"pricing"`
	Payment     PaymentConfig `yaml:"payment"`
	Mail        MailConfig    `yaml:"mail"`
	AdminEmail  string        `yaml:"admin_email"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// GRPCSecret is the bearer token gRPC callers must present. Every call
	// is rejected while it is empty.
	GRPCSecret string `yaml:"grpc_secret"`

	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type StoreConfig struct {
	// Driver is "mysql" or "memory".
	Driver string `yaml:"driver"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type RateLimits struct {
	Register       RateLimit `yaml:"register"`
	Login          RateLimit `yaml:"login"`
	ForgotPassword RateLimit `yaml:"forgot_password"`
}

type PricingConfig struct {
	TaxRate               string `yaml:"tax_rate"`
	DeliveryFee           string `yaml:"delivery_fee"`
	FreeDeliveryThreshold string `yaml:"free_delivery_threshold"`
}

type PaymentConfig struct {
	// Driver is "sandbox" or "http".
	Driver    string        `yaml:"driver"`
	Endpoint  string        `yaml:"endpoint"`
	SecretKey string        `yaml:"secret_key"`
	Currency  string        `yaml:"currency"`
	Timeout   time.Duration `yaml:"timeout"`
	// DeclineAbove makes the sandbox decline larger charges; empty disables it.
	DeclineAbove string `yaml:"decline_above"`
}

type MailConfig struct {
	// Driver is "log" or "smtp".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
	BaseURL  string `yaml:"base_url"`
}

func Default() *Config {
	return &Config{
		ServiceName: "grocery-store",
		Env:         "dev",
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        "127.0.0.1:50051",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Driver: "mysql"},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/grocery?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Session: SessionConfig{
			CookieName: "grocery_session",
			TTL:        7 * 24 * time.Hour,
		},
		RateLimits: RateLimits{
			Register:       RateLimit{Limit: 5, Window: time.Minute},
			Login:          RateLimit{Limit: 10, Window: time.Minute},
			ForgotPassword: RateLimit{Limit: 3, Window: time.Minute},
		},
		Pricing: PricingConfig{
			TaxRate:               "0.08",
			DeliveryFee:           "5.99",
			FreeDeliveryThreshold: "50",
		},
		Payment: PaymentConfig{
			Driver:   "sandbox",
			Currency: "usd",
			Timeout:  10 * time.Second,
		},
		Mail: MailConfig{
			Driver:  "log",
			Port:    587,
			Sender:  "no-reply@grocery.local",
			BaseURL: "http://localhost:8080",
		},
		AdminEmail: "admin@grocery.com",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServiceName, "SERVICE_NAME")
	setString(&c.Env, "ENV")
	setString(&c.Server.HTTPAddr, "HTTP_ADDR")
	setString(&c.Server.GRPCAddr, "GRPC_ADDR")
	setString(&c.Server.GRPCSecret, "GRPC_SHARED_SECRET")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.MySQL.DSN, "MYSQL_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Payment.Driver, "PAYMENT_DRIVER")
	setString(&c.Payment.Endpoint, "PAYMENT_ENDPOINT")
	setString(&c.Payment.SecretKey, "PAYMENT_SECRET_KEY")
	setString(&c.Mail.Driver, "MAIL_DRIVER")
	setString(&c.Mail.Host, "MAIL_SERVER")
	setString(&c.Mail.Username, "MAIL_USERNAME")
	setString(&c.Mail.Password, "MAIL_PASSWORD")
	setString(&c.Mail.Sender, "MAIL_DEFAULT_SENDER")
	setString(&c.AdminEmail, "ADMIN_EMAIL")

	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAIL_PORT: %w", err)
		}
		c.Mail.Port = port
	}
	if v := os.Getenv("SESSION_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SESSION_SECURE: %w", err)
		}
		c.Session.Secure = secure
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "mysql":
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql.dsn is required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}
	for _, p := range c.Server.TrustedProxies {
		p = strings.TrimSpace(p)
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", p))
		}
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	switch c.Payment.Driver {
	case "sandbox":
	case "http":
		if c.Payment.Endpoint == "" || c.Payment.SecretKey == "" {
			errs = append(errs, errors.New("payment.endpoint and payment.secret_key are required for the http driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("payment.driver %q is not supported", c.Payment.Driver))
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for the smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.driver %q is not supported", c.Mail.Driver))
	}
	for name, rl := range map[string]RateLimit{
		"register":        c.RateLimits.Register,
		"login":           c.RateLimits.Login,
		"forgot_password": c.RateLimits.ForgotPassword,
	} {
		if rl.Limit <= 0 || rl.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limits.%s must have a positive limit and window", name))
		}
	}
	return errors.Join(errs...)
}

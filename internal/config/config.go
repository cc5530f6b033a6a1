// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	PublicBaseURL   string        `yaml:"public_base_url"` // used to build gateway return/notify URLs
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // season price cache ttl
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // HS256 key shared with the identity provider
	Issuer    string `yaml:"issuer"`
}

type PayHereConfig struct {
	MerchantID     string `yaml:"merchant_id"`
	MerchantSecret string `yaml:"merchant_secret"`
	AppID          string `yaml:"app_id"`     // retrieval API; optional
	AppSecret      string `yaml:"app_secret"` // retrieval API; optional
	ReturnSecret   string `yaml:"return_secret"`
	Sandbox        bool   `yaml:"sandbox"`
	NotifyURL      string `yaml:"notify_url"`
	BaseURL        string `yaml:"base_url"` // overrides the sandbox/live host
}

type PaymentConfig struct {
	Currency string        `yaml:"currency"`
	PayHere  PayHereConfig `yaml:"payhere"`
}

type CheckoutConfig struct {
	RateLimit  int           `yaml:"rate_limit"`  // checkout starts per user per window
	RateWindow time.Duration `yaml:"rate_window"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type SchedulerConfig struct {
	ReconcileCron string        `yaml:"reconcile_cron"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	AbandonAfter  time.Duration `yaml:"abandon_after"`
	BatchSize     int           `yaml:"batch_size"`
	Workers       int           `yaml:"workers"`
	RPS           float64       `yaml:"rps"` // outbound retrieval calls per second
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Kafka     KafkaConfig     `yaml:"kafka"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev and loads the file through Load.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the yaml file at path, applies an optional .env next to the process,
// environment overrides and defaults, then validates.
func Load(path string, dev bool) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Redis.URL, "REDIS_URL")
	str(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	str(&cfg.Payment.PayHere.MerchantID, "PAYHERE_MERCHANT_ID")
	str(&cfg.Payment.PayHere.MerchantSecret, "PAYHERE_MERCHANT_SECRET")
	str(&cfg.Payment.PayHere.AppID, "PAYHERE_APP_ID")
	str(&cfg.Payment.PayHere.AppSecret, "PAYHERE_APP_SECRET")
	str(&cfg.Payment.PayHere.ReturnSecret, "PAYHERE_RETURN_SECRET")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.PublicBaseURL == "" {
		cfg.HTTP.PublicBaseURL = "http://localhost:8080"
	}
	cfg.HTTP.PublicBaseURL = strings.TrimRight(cfg.HTTP.PublicBaseURL, "/")
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "LKR"
	}
	cfg.Payment.Currency = strings.ToUpper(cfg.Payment.Currency)
	if cfg.Checkout.RateLimit <= 0 {
		cfg.Checkout.RateLimit = 10
	}
	if cfg.Checkout.RateWindow <= 0 {
		cfg.Checkout.RateWindow = time.Minute
	}
	if cfg.Checkout.LockTTL <= 0 {
		cfg.Checkout.LockTTL = 10 * time.Second
	}
	if cfg.Scheduler.ReconcileCron == "" {
		cfg.Scheduler.ReconcileCron = "@every 5m"
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 15 * time.Minute
	}
	if cfg.Scheduler.AbandonAfter <= 0 {
		cfg.Scheduler.AbandonAfter = 24 * time.Hour
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.RPS <= 0 {
		cfg.Scheduler.RPS = 2
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "purchases"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "zeyera-entitlements"
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/devansh728/BYVS/internal/utils"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env            string `env:"ENV" envDefault:"local"`
	Port           string `env:"PORT" envDefault:"8080"`
	UseMemoryStore bool   `env:"USE_MEMORY_STORE" envDefault:"false"`

	Database  Database
	Twilio    Twilio
	JWT       JWT
	OTP       OTP
	RateLimit RateLimit
	Delivery  Delivery

	AdminPhones            []string      `env:"ADMIN_PHONES" envSeparator:","`
	ReferralCodeMaxRetries int           `env:"REFERRAL_CODE_MAX_RETRIES" envDefault:"5"`
	StoreTimeout           time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	CleanupInterval        time.Duration `env:"OTP_CLEANUP_INTERVAL" envDefault:"10m"`
}

type Database struct {
	Host                   string `env:"DB_HOST" envDefault:"localhost"`
	Port                   int    `env:"DB_PORT" envDefault:"5432"`
	User                   string `env:"DB_USER" envDefault:"postgres"`
	Password               string `env:"DB_PASS"`
	Name                   string `env:"DB_NAME" envDefault:"byvs"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
}

type Twilio struct {
	AccountSID        string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken         string `env:"TWILIO_AUTH_TOKEN"`
	PhoneNumber       string `env:"TWILIO_PHONE_NUMBER"`
	StatusCallbackURL string `env:"TWILIO_STATUS_CALLBACK_URL"`
}

// Configured reports whether real SMS delivery is possible.
func (t Twilio) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.PhoneNumber != ""
}

type JWT struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

type OTP struct {
	Length      int           `env:"OTP_LENGTH" envDefault:"6"`
	TTL         time.Duration `env:"OTP_TTL" envDefault:"5m"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
}

type RateLimit struct {
	Window   time.Duration `env:"OTP_RATE_WINDOW" envDefault:"60m"`
	Ceiling  int           `env:"OTP_RATE_CEILING" envDefault:"5"`
	Cooldown time.Duration `env:"OTP_RATE_COOLDOWN" envDefault:"45s"`
}

type Delivery struct {
	Workers   int `env:"DELIVERY_WORKERS" envDefault:"2"`
	QueueSize int `env:"DELIVERY_QUEUE_SIZE" envDefault:"256"`
}

// LoadDotenv reads a local .env file when not running on Cloud Run and
// returns the path it loaded, or "" when none was found.
func LoadDotenv() string {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return ""
	}
	for _, path := range []string{".env", "environments/.env.development"} {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of local, dev, prod; got %q", c.Env))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	positive := []struct {
		name string
		ok   bool
	}{
		{"JWT_TTL", c.JWT.TTL > 0},
		{"OTP_LENGTH", c.OTP.Length > 0},
		{"OTP_TTL", c.OTP.TTL > 0},
		{"OTP_MAX_ATTEMPTS", c.OTP.MaxAttempts > 0},
		{"OTP_RATE_WINDOW", c.RateLimit.Window > 0},
		{"OTP_RATE_CEILING", c.RateLimit.Ceiling > 0},
		{"REFERRAL_CODE_MAX_RETRIES", c.ReferralCodeMaxRetries > 0},
		{"STORE_TIMEOUT", c.StoreTimeout > 0},
		{"OTP_CLEANUP_INTERVAL", c.CleanupInterval > 0},
		{"DELIVERY_WORKERS", c.Delivery.Workers > 0},
		{"DELIVERY_QUEUE_SIZE", c.Delivery.QueueSize > 0},
	}
	for _, p := range positive {
		if !p.ok {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.OTP.Length > utils.MaxOTPLength {
		errs = append(errs, fmt.Errorf("OTP_LENGTH must be at most %d", utils.MaxOTPLength))
	}
	if c.RateLimit.Cooldown < 0 {
		errs = append(errs, errors.New("OTP_RATE_COOLDOWN must not be negative"))
	}

	return errors.Join(errs...)
}

// IsAdmin reports whether phone is listed in ADMIN_PHONES.
func (c *Config) IsAdmin(phone string) bool {
	for _, p := range c.AdminPhones {
		if p == phone {
			return true
		}
	}
	return false
}

// DSN builds the Postgres connection string, using the Cloud SQL socket when
// an instance connection name is set.
func (d Database) DSN() string {
	if d.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			d.InstanceConnectionName, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

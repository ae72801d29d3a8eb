// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const minSecretKeyLength = 32

type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	Filename      string `yaml:"filename"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		BaseURL         string        `yaml:"base_url"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SecretKey       string        `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Auth struct {
		TokenTTL         time.Duration `yaml:"token_ttl"`
		LoginMaxAttempts int           `yaml:"login_max_attempts"`
		LoginLockout     time.Duration `yaml:"login_lockout"`
		TrustProxy       bool          `yaml:"trust_proxy"`
	} `yaml:"auth"`

	Email struct {
		Enabled         bool   `yaml:"enabled"`
		Region          string `yaml:"region"`
		Sender          string `yaml:"sender"`
		AccessKeyID     string `yaml:"-"`
		SecretAccessKey string `yaml:"-"`
	} `yaml:"email"`

	Push struct {
		Enabled         bool   `yaml:"enabled"`
		Subject         string `yaml:"subject"`
		VAPIDPublicKey  string `yaml:"vapid_public_key"`
		VAPIDPrivateKey string `yaml:"-"`
		TTLSeconds      int    `yaml:"ttl_seconds"`
	} `yaml:"push"`

	Scheduler struct {
		ReminderCron   string        `yaml:"reminder_cron"`
		ReminderWindow time.Duration `yaml:"reminder_window"`
	} `yaml:"scheduler"`
}

// secrets are never read from the yaml file.
type secrets struct {
	AppSecretKey       string `envconfig:"APP_SECRET_KEY"`
	VAPIDPrivateKey    string `envconfig:"VAPID_PRIVATE_KEY"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	Port               int    `envconfig:"PORT"`
	Environment        string `envconfig:"ENVIRONMENT"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var env secrets
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	cfg.applySecrets(env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes yaml and fills defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applySecrets(env secrets) {
	c.App.SecretKey = env.AppSecretKey
	c.Push.VAPIDPrivateKey = env.VAPIDPrivateKey
	c.Email.AccessKeyID = env.AWSAccessKeyID
	c.Email.SecretAccessKey = env.AWSSecretAccessKey
	if env.Port != 0 {
		c.App.Port = env.Port
	}
	if env.Environment != "" {
		c.App.Environment = env.Environment
	}
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30 * time.Second
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.LoginMaxAttempts == 0 {
		c.Auth.LoginMaxAttempts = 5
	}
	if c.Auth.LoginLockout == 0 {
		c.Auth.LoginLockout = 15 * time.Minute
	}
	if c.Push.TTLSeconds == 0 {
		c.Push.TTLSeconds = 3600
	}
	if c.Scheduler.ReminderCron == "" {
		c.Scheduler.ReminderCron = "*/15 * * * *"
	}
	if c.Scheduler.ReminderWindow == 0 {
		c.Scheduler.ReminderWindow = 24 * time.Hour
	}
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Environment, "development")
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if len(c.App.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("APP_SECRET_KEY must be at least %d characters", minSecretKeyLength)
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		if c.Email.AccessKeyID == "" || c.Email.SecretAccessKey == "" {
			return fmt.Errorf("AWS credentials are required when email is enabled")
		}
	}
	if c.Push.Enabled {
		if c.Push.Subject == "" {
			return fmt.Errorf("push subject is required when push is enabled")
		}
		if c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "" {
			return fmt.Errorf("VAPID keys are required when push is enabled")
		}
	}

	return nil
}

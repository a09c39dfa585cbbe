package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AWS        AWSConfig        `yaml:"aws"`
	JWT        JWTConfig        `yaml:"jwt"`
	Google     GoogleConfig     `yaml:"google"`
	Generation GenerationConfig `yaml:"generation"`
	Mail       MailConfig       `yaml:"mail"`
	Frontend   FrontendConfig   `yaml:"frontend"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SecureCookies   bool          `yaml:"secure_cookies"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds the key-value store connection target
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible endpoint, empty for AWS
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string `yaml:"secret"`
	ExpireMinutes int    `yaml:"expire_minutes"`
}

// GoogleConfig holds the OAuth client used for Google sign-in
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// GenerationConfig holds image generation and publishing settings
type GenerationConfig struct {
	DefaultProvider string            `yaml:"default_provider"`
	DefaultCount    int               `yaml:"default_count"`
	MaxCount        int               `yaml:"max_count"`
	AnonQuota       int64             `yaml:"anon_quota"`
	AnonQuotaTTL    time.Duration     `yaml:"anon_quota_ttl"`
	SignedURLTTL    time.Duration     `yaml:"signed_url_ttl"`
	KeyPrefix       string            `yaml:"key_prefix"`
	PublishWorkers  int               `yaml:"publish_workers"`
	PublishQueue    int               `yaml:"publish_queue"`
	HuggingFace     HuggingFaceConfig `yaml:"huggingface"`
	Replicate       ReplicateConfig   `yaml:"replicate"`
}

// HuggingFaceConfig configures the synchronous text-to-image provider
type HuggingFaceConfig struct {
	Token   string        `yaml:"token"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReplicateConfig configures the asynchronous prediction provider
type ReplicateConfig struct {
	Token        string        `yaml:"token"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MailConfig holds SMTP settings for password reset mails
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// FrontendConfig holds URLs of the web client
type FrontendConfig struct {
	OAuthRedirectURL string `yaml:"oauth_redirect_url"`
	ResetPasswordURL string `yaml:"reset_password_url"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file. Variables from an optional .env
// file and the process environment are expanded inside the YAML before parsing.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills defaults and rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.AWS.S3Bucket == "" {
		return fmt.Errorf("aws.s3_bucket is required")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if c.JWT.ExpireMinutes <= 0 {
		c.JWT.ExpireMinutes = 60
	}

	g := &c.Generation
	if g.DefaultProvider == "" {
		g.DefaultProvider = "huggingface"
	}
	if g.DefaultCount <= 0 {
		g.DefaultCount = 1
	}
	if g.MaxCount <= 0 {
		g.MaxCount = 4
	}
	if g.DefaultCount > g.MaxCount {
		return fmt.Errorf("generation.default_count %d exceeds max_count %d", g.DefaultCount, g.MaxCount)
	}
	if g.AnonQuota <= 0 {
		g.AnonQuota = 1
	}
	if g.AnonQuotaTTL == 0 {
		g.AnonQuotaTTL = 30 * 24 * time.Hour
	}
	if g.SignedURLTTL <= 0 {
		g.SignedURLTTL = time.Hour
	}
	if g.KeyPrefix == "" {
		g.KeyPrefix = "Generated"
	}
	if g.PublishWorkers <= 0 {
		g.PublishWorkers = 4
	}
	if g.PublishQueue <= 0 {
		g.PublishQueue = 64
	}
	if g.Replicate.PollInterval <= 0 {
		g.Replicate.PollInterval = time.Second
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the listen address of the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

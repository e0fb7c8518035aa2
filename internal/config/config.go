package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    int               `yaml:"port"`
		APIKeys map[string]string `yaml:"apiKeys"` // tenant → key
	} `yaml:"server"`

	// Platform is the hosted findings backend (REST + auth).
	Platform struct {
		URL               string `yaml:"url"`
		APIKey            string `yaml:"apiKey"`
		Email             string `yaml:"email"`
		Password          string `yaml:"password"`
		LoginRateLimitSec int    `yaml:"loginRateLimitSec"`
	} `yaml:"platform"`

	Relay struct {
		AccountID        string `yaml:"accountId"`
		ClusterName      string `yaml:"clusterName"`
		SinkName         string `yaml:"sinkName"`
		TargetID         string `yaml:"targetId"`
		CallbackHMACKey  string `yaml:"callbackHmacKey"`
		Backend          string `yaml:"backend"` // platform | mysql | postgres
		OffloadThreshold int    `yaml:"offloadThresholdBytes"`
	} `yaml:"relay"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Enabled bool   `yaml:"enabled"`
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
	} `yaml:"ai"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Relay.Backend == "" {
		cfg.Relay.Backend = "platform"
	}
	if cfg.Platform.LoginRateLimitSec <= 0 {
		cfg.Platform.LoginRateLimitSec = 900
	}
	return &cfg, nil
}

// LoginRateLimit minimum interval antar percobaan sign-in
func (c *Config) LoginRateLimit() time.Duration {
	return time.Duration(c.Platform.LoginRateLimitSec) * time.Second
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Postgres  PostgresConfig  `json:"postgres"`
	Redis     RedisConfig     `json:"redis"`
	Keys      KeysConfig      `json:"keys"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Usage     UsageConfig     `json:"usage"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"` // "development" or "production"
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r *RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type KeysConfig struct {
	// Env is the environment tag embedded in issued keys ("live"/"test").
	Env string `json:"env"`
	// Pepper keys the HMAC scheme. Comes from the environment, never
	// from the config file, and is never stored alongside records.
	Pepper string `json:"-"`
	// BcryptCost tunes the adaptive scheme. 10 keeps verification well
	// under the 100ms request budget; 12+ does not.
	BcryptCost int `json:"bcrypt_cost"`
}

type AuthConfig struct {
	JWTSecret   string `json:"-"` // env: JWT_SECRET
	ExpiryHours int    `json:"jwt_expiry_hours"`
}

type RateLimitConfig struct {
	// Backend selects the counter store: "redis" (default) or "memory".
	Backend string `json:"backend"`
}

type UsageConfig struct {
	BufferSize int `json:"buffer_size"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Keys.Env == "" {
		c.Keys.Env = "live"
	}
	if c.Keys.BcryptCost == 0 {
		c.Keys.BcryptCost = 10
	}
	if c.Auth.ExpiryHours == 0 {
		c.Auth.ExpiryHours = 24
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "redis"
	}
	if c.Usage.BufferSize == 0 {
		c.Usage.BufferSize = 1024
	}
}

// applyEnv pulls secrets from the environment. The pepper and JWT
// secret are required; DSN and redis password may also be overridden.
func applyEnv(c *Config) error {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	c.Keys.Pepper = os.Getenv("KEY_PEPPER")
	if c.Keys.Pepper == "" {
		return fmt.Errorf("KEY_PEPPER environment variable is not set")
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Locking   LockingConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	LogLevel  string
	LogFormat string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	Mode            string
	AllowedHosts    []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
	// Transactions needs a replica set or sharded cluster
	Transactions bool
	Timeout      time.Duration
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LockingConfig selects the key lock implementation
type LockingConfig struct {
	Driver string
	TTL    time.Duration
	Wait   time.Duration
}

// RealtimeConfig controls the socket.io channel
type RealtimeConfig struct {
	Enabled bool
	Bus     string
	Channel string
}

// RateLimitConfig holds per-user limits for mutating routes
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig selects the repository implementation
type StorageConfig struct {
	Driver string
}

// Storage, locking and bus drivers
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverLocal  = "local"
)

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Server.Port = GetEnv("PORT", config.Server.Port)
	config.Server.AllowedHosts = GetEnvAsSlice("CORS_ORIGINS", ",", config.Server.AllowedHosts)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.Mode", "release")
	v.SetDefault("Server.AllowedHosts", []string{"http://localhost:3000"})
	v.SetDefault("Server.ReadTimeout", 15*time.Second)
	v.SetDefault("Server.WriteTimeout", 15*time.Second)
	v.SetDefault("Server.ShutdownTimeout", 10*time.Second)
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "calmcoins")
	v.SetDefault("MongoDB.Transactions", false)
	v.SetDefault("MongoDB.Timeout", 10*time.Second)
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("Redis.Addr", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Locking.Driver", DriverMemory)
	v.SetDefault("Locking.TTL", 10*time.Second)
	v.SetDefault("Locking.Wait", 5*time.Second)
	v.SetDefault("Realtime.Enabled", true)
	v.SetDefault("Realtime.Bus", DriverLocal)
	v.SetDefault("Realtime.Channel", "calmcoins:realtime")
	v.SetDefault("RateLimit.Enabled", true)
	v.SetDefault("RateLimit.RequestsPerSecond", 5.0)
	v.SetDefault("RateLimit.Burst", 10)
	v.SetDefault("Storage.Driver", DriverMongo)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
}

// Validate checks that the configuration can start the server
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Storage.Driver {
	case DriverMongo:
		if c.MongoDB.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo storage driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Locking.Driver {
	case DriverMemory, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown locking driver %q", c.Locking.Driver))
	}
	switch c.Realtime.Bus {
	case DriverLocal, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown realtime bus %q", c.Realtime.Bus))
	}
	if c.NeedsRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when redis locking or the redis bus is enabled"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit needs positive RequestsPerSecond and Burst"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any component is configured to use Redis
func (c *Config) NeedsRedis() bool {
	return c.Locking.Driver == DriverRedis || (c.Realtime.Enabled && c.Realtime.Bus == DriverRedis)
}

// TokenTTL returns the lifetime of issued tokens
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpiresIn) * time.Second
}

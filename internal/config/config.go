package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		AdminUsername   string
		AdminPassword   string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Photos struct {
		MaxConcurrent int
		MaxBytes      int64
		URLTTLMinutes int
	}
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c Config) PhotoURLTTL() time.Duration {
	return time.Duration(c.Photos.URLTTLMinutes) * time.Minute
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	if strings.TrimSpace(c.Auth.AdminUsername) == "" {
		errs = append(errs, errors.New("auth admin username is required"))
	}
	if strings.TrimSpace(c.Auth.AdminPassword) == "" {
		errs = append(errs, errors.New("auth admin password is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("auth token ttl must be positive, got %d", c.Auth.TokenTTLMinutes))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables and optional config files.
// A .env file in the working directory is applied first without overriding
// variables that are already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PAYLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/payload.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 7*24*60)
	v.SetDefault("auth.adminusername", "admin")
	v.SetDefault("auth.adminpassword", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "payload-photos")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("photos.maxconcurrent", 3)
	v.SetDefault("photos.maxbytes", 10<<20)
	v.SetDefault("photos.urlttlminutes", 15)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "SCRIBES"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "scribes.db"
	defaultLogLevel           = "info"
	defaultAccessTTLMinutes   = 30
	defaultRefreshTTLDays     = 7
	defaultBcryptCost         = 12
	defaultTokenIssuer        = "scribes-api"
	minimumSigningSecretBytes = 16
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	DatabasePath         string
	LogLevel             string
	TokenIssuer          string
	AccessSigningSecret  string
	RefreshSigningSecret string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	BcryptCost           int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.issuer", defaultTokenIssuer)
	configViper.SetDefault("token.access_ttl_minutes", defaultAccessTTLMinutes)
	configViper.SetDefault("token.refresh_ttl_days", defaultRefreshTTLDays)
	configViper.SetDefault("auth.bcrypt_cost", defaultBcryptCost)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		TokenIssuer:          configViper.GetString("token.issuer"),
		AccessSigningSecret:  configViper.GetString("token.access_secret"),
		RefreshSigningSecret: configViper.GetString("token.refresh_secret"),
		AccessTokenTTL:       time.Duration(configViper.GetInt("token.access_ttl_minutes")) * time.Minute,
		RefreshTokenTTL:      time.Duration(configViper.GetInt("token.refresh_ttl_days")) * 24 * time.Hour,
		BcryptCost:           configViper.GetInt("auth.bcrypt_cost"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.AccessSigningSecret) < minimumSigningSecretBytes {
		return fmt.Errorf("token.access_secret must be at least %d bytes", minimumSigningSecretBytes)
	}
	if len(c.RefreshSigningSecret) < minimumSigningSecretBytes {
		return fmt.Errorf("token.refresh_secret must be at least %d bytes", minimumSigningSecretBytes)
	}
	if c.AccessSigningSecret == c.RefreshSigningSecret {
		return fmt.Errorf("token.access_secret and token.refresh_secret must differ")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("token.access_ttl_minutes must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token.refresh_ttl_days must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	return nil
}

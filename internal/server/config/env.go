package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/flagx"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// EnvConfig maps environment variables onto Config. The secret and DSN
// names match what deployments of the counter backend already export.
type EnvConfig struct {
	EndpointAddrHTTP            string        `env:"ADDRESS"`
	EndpointAddrGRPC            string        `env:"GRPC_ADDRESS"`
	BasePath                    string        `env:"BASE_PATH"`
	DatabaseDSN                 string        `env:"DATABASE_URL"`
	DBMaxOpenConns              int           `env:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns              int           `env:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime           time.Duration `env:"DB_CONN_MAX_LIFETIME"`
	SecretKey                   string        `env:"JWT_SECRET"`
	AccessTokenValidityDuration time.Duration `env:"ACCESS_TOKEN_TTL"`
	WxAppID                     string        `env:"APP_ID"`
	WxAppSecret                 string        `env:"APP_SECRET"`
	WxEndpoint                  string        `env:"WX_ENDPOINT"`
	WxTimeout                   time.Duration `env:"WX_TIMEOUT"`
	SessionKeySecret            string        `env:"SESSION_KEY_SECRET"`
	LogFormat                   string        `env:"LOG_FORMAT"`
	LogLevel                    string        `env:"LOG_LEVEL"`
	LoginRateLimit              int           `env:"LOGIN_RATE_LIMIT"`
	LoginRateBurst              int           `env:"LOGIN_RATE_BURST"`
	HealthProbeSpec             string        `env:"HEALTH_PROBE_SPEC"`
	TrustedProxies              []string      `env:"TRUSTED_PROXIES"`
	S3RootUser                  string        `env:"S3_ROOT_USER"`
	S3RootPassword              string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket                    string        `env:"S3_BUCKET"`
	S3Region                    string        `env:"S3_REGION"`
	S3BaseEndpoint              string        `env:"S3_BASE_ENDPOINT"`
	ExportURLValidity           time.Duration `env:"EXPORT_URL_TTL"`
}

// loadDotEnv loads the file named by -env, or ./.env when the flag is absent.
// A missing default file is not an error; variables already present in the
// environment are never overwritten.
func loadDotEnv() error {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays values from the process environment.
func parseEnv(config *Config) error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	c := &EnvConfig{}
	if err := envdecode.Decode(c); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.BasePath, c.BasePath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setInt(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.DBConnMaxLifetime, c.DBConnMaxLifetime)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.WxAppID, c.WxAppID)
	setString(&config.WxAppSecret, c.WxAppSecret)
	setString(&config.WxEndpoint, c.WxEndpoint)
	setDuration(&config.WxTimeout, c.WxTimeout)
	setString(&config.SessionKeySecret, c.SessionKeySecret)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setInt(&config.LoginRateLimit, c.LoginRateLimit)
	setInt(&config.LoginRateBurst, c.LoginRateBurst)
	setString(&config.HealthProbeSpec, c.HealthProbeSpec)
	setStrings(&config.TrustedProxies, c.TrustedProxies)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.ExportURLValidity, c.ExportURLValidity)

	return nil
}

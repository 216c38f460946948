package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/wxcounter/internal/flagx"
	"github.com/dmitrijs2005/wxcounter/internal/timex"
)

// JsonConfig is the on-disk JSON shape of Config. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	BasePath                    string         `json:"base_path"`
	DatabaseDSN                 string         `json:"database_dsn"`
	DBMaxOpenConns              int            `json:"db_max_open_conns"`
	DBMaxIdleConns              int            `json:"db_max_idle_conns"`
	DBConnMaxLifetime           timex.Duration `json:"db_conn_max_lifetime"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	WxAppID                     string         `json:"wx_app_id"`
	WxAppSecret                 string         `json:"wx_app_secret"`
	WxEndpoint                  string         `json:"wx_endpoint"`
	WxTimeout                   timex.Duration `json:"wx_timeout"`
	SessionKeySecret            string         `json:"session_key_secret"`
	LogFormat                   string         `json:"log_format"`
	LogLevel                    string         `json:"log_level"`
	LoginRateLimit              int            `json:"login_rate_limit"`
	LoginRateBurst              int            `json:"login_rate_burst"`
	HealthProbeSpec             string         `json:"health_probe_spec"`
	TrustedProxies              []string       `json:"trusted_proxies"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	ExportURLValidity           timex.Duration `json:"export_url_validity"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Without the flag nothing is loaded. Keys absent from the file keep
// their current value.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.BasePath, c.BasePath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setInt(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.DBConnMaxLifetime, c.DBConnMaxLifetime.Duration)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	setString(&config.WxAppID, c.WxAppID)
	setString(&config.WxAppSecret, c.WxAppSecret)
	setString(&config.WxEndpoint, c.WxEndpoint)
	setDuration(&config.WxTimeout, c.WxTimeout.Duration)
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
	setDuration(&config.ExportURLValidity, c.ExportURLValidity.Duration)

	return nil
}

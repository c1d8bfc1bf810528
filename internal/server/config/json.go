package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/flagx"
	"github.com/dmitrijs2005/campusgate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields left out of the file keep their current value.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	CleanupInterval              timex.Duration `json:"cleanup_interval"`
	AuditFlushInterval           timex.Duration `json:"audit_flush_interval"`
	BlacklistBackend             string         `json:"blacklist_backend"`
	RedisAddr                    string         `json:"redis_addr"`
	RefreshRateLimit             float64        `json:"refresh_rate_limit"`
	RefreshRateBurst             int            `json:"refresh_rate_burst"`
	CookieSecure                 *bool          `json:"cookie_secure"`
	LogLevel                     string         `json:"log_level"`
	S3AuditBucket                string         `json:"s3_audit_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from -c / -config, or $CAMPUSGATE_CONFIG. If neither
// is set, nothing is loaded. If the file cannot be read or contains invalid
// JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.CleanupInterval, c.CleanupInterval)
	setDuration(&config.AuditFlushInterval, c.AuditFlushInterval)
	setString(&config.BlacklistBackend, c.BlacklistBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	if c.RefreshRateLimit != 0 {
		config.RefreshRateLimit = c.RefreshRateLimit
	}
	if c.RefreshRateBurst != 0 {
		config.RefreshRateBurst = c.RefreshRateBurst
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3AuditBucket, c.S3AuditBucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

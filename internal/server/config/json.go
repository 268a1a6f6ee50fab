package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts either a Go duration string ("15m") or integer
// nanoseconds in JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// JsonConfig is the file representation of Config. Pointer and zero-able
// fields are applied only when present in the file.
type JsonConfig struct {
	EndpointAddrHTTP     string            `json:"endpoint_addr_http"`
	EndpointAddrGRPC     string            `json:"endpoint_addr_grpc"`
	DatabaseDSN          string            `json:"database_dsn"`
	DatabaseTimeout      *Duration         `json:"database_timeout"`
	RedisAddr            string            `json:"redis_addr"`
	SessionSecret        string            `json:"session_secret"`
	MediaSecret          string            `json:"media_secret"`
	SessionTokenTTL      *Duration         `json:"session_token_ttl"`
	MediaTokenTTL        *Duration         `json:"media_token_ttl"`
	MaxLoginAttempts     int               `json:"max_login_attempts"`
	LoginWindow          *Duration         `json:"login_window"`
	BillingWebhookSecret string            `json:"billing_webhook_secret"`
	PriceTiers           map[string]string `json:"price_tiers"`
	BcryptCost           int               `json:"bcrypt_cost"`
	S3RootUser           string            `json:"s3_root_user"`
	S3RootPassword       string            `json:"s3_root_password"`
	S3Bucket             string            `json:"s3_bucket"`
	S3Region             string            `json:"s3_region"`
	S3BaseEndpoint       string            `json:"s3_base_endpoint"`
	MediaURLTTL          *Duration         `json:"media_url_ttl"`
	LogLevel             string            `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, over config.
func parseJson(config *Config) error {
	path := configFileFlag()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setDuration(&config.DatabaseTimeout, c.DatabaseTimeout)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SessionSecret, c.SessionSecret)
	setString(&config.MediaSecret, c.MediaSecret)
	setDuration(&config.SessionTokenTTL, c.SessionTokenTTL)
	setDuration(&config.MediaTokenTTL, c.MediaTokenTTL)
	if c.MaxLoginAttempts != 0 {
		config.MaxLoginAttempts = c.MaxLoginAttempts
	}
	setDuration(&config.LoginWindow, c.LoginWindow)
	setString(&config.BillingWebhookSecret, c.BillingWebhookSecret)
	if c.PriceTiers != nil {
		config.PriceTiers = c.PriceTiers
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.MediaURLTTL, c.MediaURLTTL)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

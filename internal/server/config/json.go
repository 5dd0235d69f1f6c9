package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "15m" strings and integer nanoseconds. Absent fields leave the current
// value untouched.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	RefreshTokenHashKey          string         `json:"refresh_token_hash_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	TokenStore                   string         `json:"token_store"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      *int           `json:"redis_db"`
	LogLevel                     string         `json:"log_level"`
}

func parseJSON(config *Config, args []string) error {

	jsonConfigFile := flagx.ConfigFileFlag(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", jsonConfigFile, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.RefreshTokenHashKey, c.RefreshTokenHashKey)
	setString(&config.TokenStore, c.TokenStore)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"endpoint_addr_grpc":              "GRPC_ADDRESS",
	"endpoint_addr_http":              "HTTP_ADDRESS",
	"database_dsn":                    "DATABASE_DSN",
	"access_token_secret":             "ACCESS_TOKEN_SECRET",
	"refresh_token_secret":            "REFRESH_TOKEN_SECRET",
	"refresh_token_hash_key":          "REFRESH_TOKEN_HASH_KEY",
	"access_token_validity_duration":  "ACCESS_TOKEN_TTL",
	"refresh_token_validity_duration": "REFRESH_TOKEN_TTL",
	"bcrypt_cost":                     "BCRYPT_COST",
	"token_store":                     "TOKEN_STORE",
	"redis_addr":                      "REDIS_ADDR",
	"redis_password":                  "REDIS_PASSWORD",
	"redis_db":                        "REDIS_DB",
	"log_level":                       "LOG_LEVEL",
}

// parseEnv overlays values from the environment. Durations use Go syntax
// ("15m", "168h").
func parseEnv(config *Config) error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	stringFields := map[string]*string{
		"endpoint_addr_grpc":     &config.EndpointAddrGRPC,
		"endpoint_addr_http":     &config.EndpointAddrHTTP,
		"database_dsn":           &config.DatabaseDSN,
		"access_token_secret":    &config.AccessTokenSecret,
		"refresh_token_secret":   &config.RefreshTokenSecret,
		"refresh_token_hash_key": &config.RefreshTokenHashKey,
		"token_store":            &config.TokenStore,
		"redis_addr":             &config.RedisAddr,
		"redis_password":         &config.RedisPassword,
		"log_level":              &config.LogLevel,
	}
	for key, dst := range stringFields {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("access_token_validity_duration") {
		config.AccessTokenValidityDuration = v.GetDuration("access_token_validity_duration")
	}
	if v.IsSet("refresh_token_validity_duration") {
		config.RefreshTokenValidityDuration = v.GetDuration("refresh_token_validity_duration")
	}
	if v.IsSet("bcrypt_cost") {
		config.BcryptCost = v.GetInt("bcrypt_cost")
	}
	if v.IsSet("redis_db") {
		config.RedisDB = v.GetInt("redis_db")
	}

	return nil
}

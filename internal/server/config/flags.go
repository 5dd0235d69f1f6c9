package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/storefront/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-k string   refresh token store: postgres or redis
//	-redis string  Redis address
//	-l string   log level
//
// Secrets are read only from the config file or the environment. Durations
// given in minutes replace the current value only when the flag is present.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-w", "-d", "-t", "-r", "-k", "-redis", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.TokenStore, "k", config.TokenStore, "refresh token store (postgres|redis)")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
	return nil
}

package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/storefront/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Second-based intervals replace the current value only when the flag is
// present.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-i", "-t", "-s"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.SessionDBPath, "s", cfg.SessionDBPath, "local session database path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
		case "t":
			cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
		}
	})
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent fields
// leave the current value untouched.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SessionDBPath       string         `json:"session_db_path"`
}

func parseJSON(cfg *Config, args []string) error {
	jsonConfigFile := flagx.ConfigFileFlag(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", jsonConfigFile, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.SessionDBPath != "" {
		cfg.SessionDBPath = jc.SessionDBPath
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

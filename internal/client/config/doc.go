// Package config loads runtime configuration for the storefront CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-i int      online status check interval (seconds)
//	-t int      per-request timeout (seconds)
//	-s string   path of the local session database
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s",
//	  "session_db_path": "storefront-session.db"
//	}
package config

// Package config loads runtime configuration for the campusgate CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config or $CAMPUSGATE_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the campusgate HTTP API
//	-i int      online status check interval (seconds)
//	-f string   path of the local session database
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "online_check_interval": "3s",
//	  "session_db": "session.db",
//	  "request_timeout": "10s"
//	}
package config

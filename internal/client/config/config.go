package config

import "time"

// Config holds runtime settings for the campusgate CLI.
//
// Fields:
//   - ServerURL: base URL of the campusgate HTTP API.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SessionDB: path of the SQLite file holding the local session.
//   - RequestTimeout: upper bound for a single HTTP attempt.
type Config struct {
	ServerURL           string
	OnlineCheckInterval time.Duration
	SessionDB           string
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.OnlineCheckInterval = 3 * time.Second
	c.SessionDB = "session.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

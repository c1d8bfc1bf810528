package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only -a, -i and -f are looked at; everything else in os.Args is ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the campusgate server")
	fs.StringVar(&cfg.SessionDB, "f", cfg.SessionDB, "local session database file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}

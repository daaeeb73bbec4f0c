package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
)

var knownFlags = []string{"-a", "-o", "-s", "-d", "-r", "-l", "-t", "-log"}

// parseFlags populates selected Config fields from command-line flags.
//
// Note: args are filtered with flagx.FilterArgs first, so flags owned by
// other components (like -c) do not interfere.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the application API")
	fs.StringVar(&cfg.AppOrigin, "o", cfg.AppOrigin, "origin the application is served from")
	fs.StringVar(&cfg.StoreBackend, "s", cfg.StoreBackend, "credential store backend")
	fs.StringVar(&cfg.StoreDSN, "d", cfg.StoreDSN, "DSN of the credential store")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.ProxyListen, "l", cfg.ProxyListen, "proxy listen address")
	fs.DurationVar(&cfg.HTTPTimeout, "t", cfg.HTTPTimeout, "HTTP timeout for API calls")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")

	return fs.Parse(args)
}

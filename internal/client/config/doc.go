// Package config loads runtime configuration for the session client binaries.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the application API
//	-o string     origin the application is served from (defaults to -a)
//	-s string     credential store backend: memory, sqlite, redis, postgres
//	-d string     DSN of the sqlite/postgres store
//	-r string     redis address (host:port)
//	-l string     proxy listen address
//	-t duration   HTTP timeout for API calls
//	-log string   log level
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	api_base_url: http://127.0.0.1:8080
//	store:
//	  backend: sqlite
//	  dsn: sessionkeeper.db
//	session:
//	  short: {inactivity_limit: 30m, warning_lead: 5m}
//	  long:  {inactivity_limit: 8h,  warning_lead: 5m}
//	  idle_poll: 30s
//
// Validate checks every field; in particular each warning lead must be
// below its inactivity limit and the idle poll below both warning leads.
package config

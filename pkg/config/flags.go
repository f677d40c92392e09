package config

import "github.com/spf13/pflag"

// RegisterFlags adds the flags understood by Load. Flag names match config keys
// so posflag can map them without a callback.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("endpoint", DefaultEndpoint, "Data endpoint queried with the current filters")
	f.Int("port", 8080, "Port for the web server")
	f.Bool("open", false, "Open the dashboard in a browser on start")
	f.String("verbosity", "info", "Log level: trace, debug, info, warn, error")
	f.String("log.format", "compact", "Log format: compact or json")
	f.Bool("fetch.discard_stale", false, "Drop responses that resolve after a newer fetch was issued")
	f.String("filters_file", "", "YAML filter preset to apply and watch for changes")
	f.String("snapshot.out", "charts", "Output directory for the snapshot command")
	f.String("snapshot.format", "svg", "Chart file format for the snapshot command: svg or png")
}

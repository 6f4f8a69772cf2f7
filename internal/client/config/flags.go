package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only the flags listed in doc.go are consumed; flagx.FilterArgs drops the
// rest so that REPL arguments do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-d", "-k", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the document store")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.DeviceKeyPath, "k", cfg.DeviceKeyPath, "device key path")
	fs.StringVar(&cfg.RemoteBackend, "b", cfg.RemoteBackend, "remote backend (grpc|s3)")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format (text|json|zap)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}

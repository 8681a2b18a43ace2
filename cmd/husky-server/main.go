// Husky-server is the relay that Husky chat clients log in to.
//
// It answers the preflight check, authorizes users against a shared access
// key and a list of user keys, pairs ("ties") users and relays their
// messages over WebSockets.
//
// Usage:
//
//	husky-server serve [flags]
//
// See 'husky-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/server"
	"github.com/muurk/husky/internal/urls"
	"github.com/muurk/husky/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "husky-server",
	Short: "Husky chat relay",
	Long: `A relay server for the Husky terminal chat client.

Clients first ask GET /preconnect.php for admission, then open a WebSocket
on the same port, log in with the relay access key and their user key, and
tie with another user to chat.

Setup guide: ` + urls.RelaySetup,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	configPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay",
	Long: `Start the Husky relay.

Settings come from, in increasing priority: built-in defaults, the YAML file
given by --config, HUSKY_SERVER_* environment variables and flags.`,
	Example: `  # Two users on the default port
  husky-server serve --access-key s3cret --user alice:wonder --user bob:builder

  # From a config file, announced over mDNS
  husky-server serve --config relay.yaml --advertise

  # Environment only
  HUSKY_SERVER_ACCESS_KEY=s3cret HUSKY_SERVER_USERS=alice:a,bob:b husky-server serve

  # wss/https with your own certificate
  husky-server serve --config relay.yaml --cert fullchain.pem --key privkey.pem`,
	RunE: runServe,
}

// flagKeys maps serve flags to config keys
var flagKeys = map[string]string{
	"name":        "name",
	"host":        "host",
	"port":        "port",
	"access-key":  "access_key",
	"user":        "users",
	"max-clients": "max_clients",
	"rate-limit":  "rate_limit",
	"rate-burst":  "rate_burst",
	"cert":        "cert",
	"key":         "key",
	"advertise":   "advertise",
	"log-level":   "log_level",
}

func init() {
	defaults := server.DefaultConfig()
	f := serveCmd.Flags()

	f.StringVar(&configPath, "config", "", "Path to a YAML config file")
	f.String("name", defaults.Name, "Relay name shown to clients and announced over mDNS")
	f.String("host", defaults.Host, "Listen address")
	f.Int("port", defaults.Port, "Listen port for both preflight and WebSocket")
	f.String("access-key", "", "Shared access key every client must send")
	f.StringSlice("user", nil, "User key as name:password (repeatable)")
	f.Int("max-clients", defaults.MaxClients, "Answer Busy once this many sockets are open (0 = unlimited)")
	f.Float64("rate-limit", defaults.RateLimit, "Frames per second allowed per socket (0 = unlimited)")
	f.Int("rate-burst", defaults.RateBurst, "Frame burst allowed per socket")
	f.String("cert", "", "TLS certificate file (enables wss/https)")
	f.String("key", "", "TLS private key file")
	f.Bool("advertise", false, "Announce the relay over mDNS")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.New()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	cfg, err := server.LoadConfig(v, configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}
	defer logging.Sync()

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}
	return srv.Start()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("husky-server %s\n", version.Full())
	},
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/husky/internal/config"
	"github.com/muurk/husky/internal/discovery"
	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/session"
	"github.com/muurk/husky/internal/tui"
	"github.com/muurk/husky/internal/urls"
)

// Global flags
var (
	configFile string
	serverHost string
	serverPort int
	httpPort   int
	secret     string
	serverName string
	useTLS     bool
	logLevel   string
	logFile    string
)

// Subcommand flags
var (
	scanTimeout int
	scanSave    bool
	scanUse     string
	forceInit   bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default is the user config dir)")
	pf.StringVar(&serverHost, "host", "", "Relay host (overrides config)")
	pf.IntVar(&serverPort, "port", 0, "Relay WebSocket port (overrides config)")
	pf.IntVar(&httpPort, "http-port", 0, "Relay preflight port (overrides config)")
	pf.StringVar(&secret, "secret", "", "Relay access key (overrides config)")
	pf.StringVar(&serverName, "name", "", "Relay display name (overrides config)")
	pf.BoolVar(&useTLS, "tls", false, "Use wss/https (overrides config)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	pf.StringVar(&logFile, "log-file", "", "Log file (default is husky.log in the config dir)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
}

// loadRegistry reads the config file named by --config, or the default one
func loadRegistry() (*config.Registry, string, error) {
	path := configFile
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	reg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", err
	}
	return reg, path, nil
}

// applyOverrides copies changed global flags onto the server profile
func applyOverrides(cmd *cobra.Command, reg *config.Registry) {
	if reg.Server == nil {
		reg.Server = config.DefaultServer()
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		reg.Server.Host = serverHost
	}
	if flags.Changed("port") {
		reg.Server.Port = serverPort
	}
	if flags.Changed("http-port") {
		reg.Server.HTTPPort = httpPort
	}
	if flags.Changed("secret") {
		reg.Server.Secret = secret
	}
	if flags.Changed("name") {
		reg.Server.Name = serverName
	}
	if flags.Changed("tls") {
		reg.Server.TLS = useTLS
	}
}

func setupLogging() error {
	path := logFile
	if path == "" {
		p, err := config.GetLogPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return logging.InitializeWithOutput(logLevel, path)
}

func runChat(cmd *cobra.Command, args []string) error {
	reg, _, err := loadRegistry()
	if err != nil {
		return err
	}
	applyOverrides(cmd, reg)

	if err := setupLogging(); err != nil {
		return err
	}
	defer logging.Sync()

	m := session.NewMachine(reg.SessionOptions())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	model := tui.NewAppModel(m, reg.Server.DisplayName())
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()

	cancel()
	<-m.Done()

	if runErr != nil {
		return fmt.Errorf("chat UI error: %w (see %s)", runErr, urls.TroubleshootingGuide)
	}
	return nil
}

// scanCmd discovers relays on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Husky relays on the network",
	Long: `Scan for Husky relays using mDNS/DNS-SD discovery.

Relays started with --advertise announce themselves on the local network.
Found relays can be remembered in the config file and one of them selected
as the login target.`,
	Example: `  # Scan for 5 seconds (default)
  husky scan

  # Remember everything found
  husky scan --save

  # Remember and log in to "Office chat" from now on
  husky scan --use "Office chat"`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Scan timeout in seconds")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Remember found relays in the config file")
	scanCmd.Flags().StringVar(&scanUse, "use", "", "Wait for the named relay and make it the login target (implies --save)")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for Husky relays (timeout: %ds)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	var relays []*discovery.Relay
	if scanUse != "" {
		// stop at the first answer from the requested relay
		relay, err := scanner.WaitForRelay(cmd.Context(), scanUse)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		relays = []*discovery.Relay{relay}
	} else {
		var err error
		relays, err = scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
	}

	if len(relays) == 0 {
		fmt.Println("No relays found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the relay runs with --advertise")
		fmt.Println("  - Check that multicast (UDP 5353) is allowed")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Printf("\nSee %s\n", urls.Discovery)
		return nil
	}

	fmt.Printf("Found %d relay(s):\n\n", len(relays))
	for i, r := range relays {
		fmt.Printf("%d. %s\n", i+1, r.Instance)
		fmt.Printf("   URL:     %s\n", r.SocketURL())
		if r.Hostname != "" {
			fmt.Printf("   Host:    %s\n", r.Hostname)
		}
		if r.Version != "" {
			fmt.Printf("   Version: %s\n", r.Version)
		}
		fmt.Println()
	}

	if !scanSave && scanUse == "" {
		fmt.Println("Use 'husky scan --use <name>' to log in to one of them")
		return nil
	}

	reg, path, err := loadRegistry()
	if err != nil {
		return err
	}
	for _, r := range relays {
		reg.RememberRelay(r.Instance, config.Relay{
			Host:     r.IP,
			Port:     r.Port,
			HTTPPort: r.HTTPPort,
			TLS:      r.TLS,
			Version:  r.Version,
		})
	}
	if scanUse != "" && !reg.UseRelay(scanUse) {
		return fmt.Errorf("relay %q was not found", scanUse)
	}
	if err := reg.SaveTo(path); err != nil {
		return err
	}

	fmt.Printf("Saved %d relay(s) to %s\n", len(relays), path)
	if scanUse != "" {
		fmt.Printf("Now using %q\n", scanUse)
	}
	return nil
}

// configCmd groups config file helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the client config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := loadRegistry()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		reg := config.NewRegistry()
		applyOverrides(cmd, reg)
		if err := reg.SaveTo(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, path, err := loadRegistry()
		if err != nil {
			return err
		}
		applyOverrides(cmd, reg)

		shown := *reg
		srv := *reg.Server
		srv.Secret = maskSecret(srv.Secret)
		shown.Server = &srv

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Printf("# %s\n%s", path, data)

		if len(reg.Relays) > 0 {
			names := make([]string, 0, len(reg.Relays))
			for name := range reg.Relays {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Printf("# known relays: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server",
	Short: "Save the relay given by --host/--port/--secret/--name/--tls",
	Example: `  husky config set-server --host chat.example.com --port 443 --tls --secret s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, path, err := loadRegistry()
		if err != nil {
			return err
		}
		applyOverrides(cmd, reg)
		if err := reg.SaveTo(path); err != nil {
			return err
		}
		fmt.Printf("Relay set to %s (%s:%d)\n", reg.Server.DisplayName(), reg.Server.Host, reg.Server.Port)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetServerCmd)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", len(s))
}

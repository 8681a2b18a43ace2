// Package config manages the Husky client configuration file.
//
// The file is YAML and stores the relay profile used at login, relays
// remembered from mDNS scans and session timing preferences. Locations
// follow platform conventions:
//   - Linux: $XDG_CONFIG_HOME/husky/config.yaml or $HOME/.config/husky/config.yaml
//   - macOS: $HOME/.config/husky/config.yaml
//   - Windows: %LOCALAPPDATA%\husky\config.yaml
//
// # Example File
//
//	version: 1
//	server:
//	  name: Office chat
//	  host: chat.example.org
//	  port: 8080
//	  secret: s3cret
//	preferences:
//	  settle_delay_ms: 500
//	  drain_interval_ms: 50
//	  dial_timeout_s: 0
//
// # Security
//
// server.secret is the relay's shared access key and the file is written
// with 0600 permissions. The user key ("name:password") is never stored.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m := session.NewMachine(registry.SessionOptions())
package config

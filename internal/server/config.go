package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig,
// e.g. HUSKY_SERVER_ACCESS_KEY.
const EnvPrefix = "HUSKY_SERVER"

// Config holds the relay configuration
type Config struct {
	Name       string   `mapstructure:"name"`        // Advertised display name
	Host       string   `mapstructure:"host"`        // Bind address
	Port       int      `mapstructure:"port"`        // HTTP + WebSocket port
	AccessKey  string   `mapstructure:"access_key"`  // Shared secret every client must send
	Users      []string `mapstructure:"users"`       // "name:password" user keys
	MaxClients int      `mapstructure:"max_clients"` // Preflight answers Busy at this many sockets (0 = unlimited)
	RateLimit  float64  `mapstructure:"rate_limit"`  // Frames per second per socket (0 = unlimited)
	RateBurst  int      `mapstructure:"rate_burst"`
	CertPath   string   `mapstructure:"cert"` // TLS certificate (optional)
	KeyPath    string   `mapstructure:"key"`  // TLS private key (optional)
	Advertise  bool     `mapstructure:"advertise"`
	LogLevel   string   `mapstructure:"log_level"`
}

// DefaultConfig returns the relay defaults
func DefaultConfig() Config {
	return Config{
		Name:       "Husky relay",
		Host:       "0.0.0.0",
		Port:       8080,
		MaxClients: 64,
		RateLimit:  20,
		RateBurst:  40,
	}
}

// LoadConfig fills a Config from defaults, an optional YAML file at path
// and HUSKY_SERVER_* environment variables, in increasing priority. Flags
// bound to v by the caller win over all of them.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := DefaultConfig()

	v.SetDefault("name", cfg.Name)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("access_key", cfg.AccessKey)
	v.SetDefault("users", cfg.Users)
	v.SetDefault("max_clients", cfg.MaxClients)
	v.SetDefault("rate_limit", cfg.RateLimit)
	v.SetDefault("rate_burst", cfg.RateBurst)
	v.SetDefault("cert", cfg.CertPath)
	v.SetDefault("key", cfg.KeyPath)
	v.SetDefault("advertise", cfg.Advertise)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Users = splitUsers(cfg.Users)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitUsers accepts both a YAML list and a single comma-separated
// environment value.
func splitUsers(in []string) []string {
	var out []string
	for _, u := range in {
		for _, part := range strings.Split(u, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the configuration for obvious mistakes
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.AccessKey == "" {
		errs = append(errs, errors.New("access_key is required"))
	}
	if strings.Contains(c.AccessKey, "/") {
		errs = append(errs, errors.New("access_key must not contain '/'"))
	}
	if len(c.Users) == 0 {
		errs = append(errs, errors.New("at least one user is required"))
	}
	for _, u := range c.Users {
		name, _, ok := strings.Cut(u, ":")
		if !ok || name == "" {
			errs = append(errs, fmt.Errorf("user %q must look like name:password", u))
		}
	}
	if (c.CertPath == "") != (c.KeyPath == "") {
		errs = append(errs, errors.New("cert and key must be set together"))
	}
	if c.MaxClients < 0 {
		errs = append(errs, errors.New("max_clients must not be negative"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must not be negative"))
	}

	return errors.Join(errs...)
}

// TLSEnabled reports whether the relay serves https/wss
func (c Config) TLSEnabled() bool {
	return c.CertPath != "" && c.KeyPath != ""
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

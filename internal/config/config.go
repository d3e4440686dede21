// Package config provides configuration parsing and validation for the
// relay server. Settings come from an optional YAML file, positional CLI
// arguments, and environment variables; the environment always wins.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/riftlink/relay/internal/logging"
)

// DefaultPort is used when the bind address omits a port.
const DefaultPort = 41001

// Environment variable names. RELAY_NO_FILE_LOG=1 disables the log file.
const (
	EnvBindAddress     = "RELAY_BIND_ADDRESS"
	EnvCentralURL      = "RELAY_CENTRAL_URL"
	EnvCentralPassword = "RELAY_CENTRAL_PASSWORD"
	EnvLogLevel        = "RELAY_LOG_LEVEL"
	EnvLogFormat       = "RELAY_LOG_FORMAT"
	EnvNoFileLog       = "RELAY_NO_FILE_LOG"
)

// Config represents the complete relay server configuration.
type Config struct {
	BindAddress     string `yaml:"bind_address"`     // IPv4 with optional port
	CentralURL      string `yaml:"central_url"`      // empty = standalone mode
	CentralPassword string `yaml:"central_password"` // shared password for the central server
	LogLevel        string `yaml:"log_level"`        // debug, info, warn, error
	LogFormat       string `yaml:"log_format"`       // text, json
	LogFile         string `yaml:"log_file"`         // path for the file log, empty disables
	HealthAddress   string `yaml:"health_address"`   // metrics/health listener, empty disables
}

// Default returns the configuration used when nothing else is specified:
// standalone mode on the default port.
func Default() Config {
	return Config{
		BindAddress: "0.0.0.0",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// ApplyArgs overlays positional CLI arguments:
//
//	relay run [address [central-url central-password]]
//
// A bind address with no central URL means standalone mode.
func (c *Config) ApplyArgs(args []string) error {
	switch len(args) {
	case 0:
	case 1:
		c.BindAddress = args[0]
	case 3:
		c.BindAddress = args[0]
		c.CentralURL = args[1]
		c.CentralPassword = args[2]
	case 2:
		return fmt.Errorf("not enough arguments: expected the password of the central server")
	default:
		return fmt.Errorf("too many arguments: expected [address [central-url central-password]]")
	}
	return nil
}

// ApplyEnv overlays environment variables. Environment overrides take
// precedence over both the config file and CLI arguments.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBindAddress); v != "" {
		c.BindAddress = v
	}
	if v := os.Getenv(EnvCentralURL); v != "" {
		c.CentralURL = v
	}
	if v := os.Getenv(EnvCentralPassword); v != "" {
		c.CentralPassword = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvNoFileLog); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			c.LogFile = ""
		}
	}
}

// Standalone reports whether no central server is configured.
func (c *Config) Standalone() bool {
	return c.CentralURL == ""
}

// Validate checks the configuration for errors. It is called before any
// socket is bound; a failure here aborts the process.
func (c *Config) Validate() error {
	if _, err := ResolveBindAddress(c.BindAddress); err != nil {
		return err
	}

	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q: possible values are debug, info, warn and error", c.LogLevel)
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: possible values are text and json", c.LogFormat)
	}

	if c.CentralURL != "" && c.CentralPassword == "" {
		return fmt.Errorf("central URL is set but the central password is missing")
	}

	return nil
}

// ResolveBindAddress parses an IPv4 address with an optional port, applying
// DefaultPort when the port is omitted.
func ResolveBindAddress(addr string) (*net.UDPAddr, error) {
	if addr == "" {
		return nil, fmt.Errorf("bind address is empty")
	}

	// Bare IPv4 address without a port.
	if ip := net.ParseIP(addr); ip != nil {
		if ip.To4() == nil {
			return nil, fmt.Errorf("bind address %q is not an IPv4 address", addr)
		}
		return &net.UDPAddr{IP: ip, Port: DefaultPort}, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid bind address %q: provide an IPv4 address with an optional port, for example \"0.0.0.0\" or \"0.0.0.0:%d\"", addr, DefaultPort)
	}

	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("bind address %q is not an IPv4 address", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid port in bind address %q", addr)
	}

	return &net.UDPAddr{IP: ip, Port: port}, nil
}

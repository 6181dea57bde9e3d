// Package config loads the gateway's environment bindings and the
// YAML configuration document that declares sources, destinations,
// and auth tokens.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvBindAddress    = "API_BIND_ADDRESS"
	EnvBindPort       = "API_BIND_PORT"
	EnvBindPath       = "API_BIND_PATH"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvMetricsEnabled = "API_METRICS_ENABLED"
)

// DefaultConfigFile is used when CONFIG_FILE is unset.
const DefaultConfigFile = "/etc/fusion/fusion.yaml"

// ipv4Pattern matches dotted-quad addresses, each octet 0-255.
var ipv4Pattern = regexp.MustCompile(`^((25[0-5]|(2[0-4]|1\d|[1-9]|)\d)\.?\b){4}$`)

// Bindings holds the environment-driven runtime settings.
type Bindings struct {
	ConfigFile     string
	DatabaseURL    string
	BindAddress    string
	BindPort       uint16
	BindPath       string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// FromEnv reads and validates the bindings from the environment.
func FromEnv() (Bindings, error) {
	b := Bindings{
		ConfigFile:     os.Getenv(EnvConfigFile),
		DatabaseURL:    os.Getenv(EnvDatabaseURL),
		BindAddress:    os.Getenv(EnvBindAddress),
		BindPath:       os.Getenv(EnvBindPath),
		LogLevel:       os.Getenv(EnvLogLevel),
		LogFormat:      os.Getenv(EnvLogFormat),
		MetricsEnabled: parseBool(os.Getenv(EnvMetricsEnabled)),
	}

	setDefaults(&b)

	if v := os.Getenv(EnvBindPort); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return Bindings{}, fmt.Errorf("%s must be a 16-bit unsigned integer, got %q", EnvBindPort, v)
		}
		b.BindPort = uint16(port)
	}

	if err := validate(&b); err != nil {
		return Bindings{}, fmt.Errorf("validate bindings: %w", err)
	}

	return b, nil
}

// Addr renders the HTTP listen address as host:port.
func (b Bindings) Addr() string {
	return net.JoinHostPort(b.BindAddress, strconv.Itoa(int(b.BindPort)))
}

func setDefaults(b *Bindings) {
	if b.ConfigFile == "" {
		b.ConfigFile = DefaultConfigFile
	}
	if b.LogLevel == "" {
		b.LogLevel = "info"
	}
	if b.LogFormat == "" {
		b.LogFormat = "json"
	}
	b.BindPath = normalizePrefix(b.BindPath)
}

func validate(b *Bindings) error {
	if _, err := NewFile(b.ConfigFile, FileConfig); err != nil {
		return err
	}
	if b.DatabaseURL == "" {
		return fmt.Errorf("%s is required", EnvDatabaseURL)
	}
	if !ipv4Pattern.MatchString(b.BindAddress) {
		return fmt.Errorf("%s must be an IPv4 dotted quad, got %q", EnvBindAddress, b.BindAddress)
	}
	if b.BindPort == 0 {
		return fmt.Errorf("%s is required", EnvBindPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[b.LogLevel] {
		return fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[b.LogFormat] {
		return fmt.Errorf("%s must be 'json' or 'console'", EnvLogFormat)
	}

	return nil
}

// normalizePrefix shapes the route prefix: leading slash, no trailing
// slash, empty stays empty.
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Package config reads the service configuration from the environment.
//
// Configuration is read once at startup and never reloaded. Invalid values are
// never fatal: each one is replaced by its default, and a warning describing
// the substitution is returned alongside the result.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultPort        = 3000
	DefaultHost        = "0.0.0.0"
	DefaultCORSOrigin  = "*"
	DefaultCompression = CompressionBrotli
)

// DefaultBuildNames are the game builds published under /Build when
// BUILD_NAMES is unset.
var DefaultBuildNames = []string{"build1", "build2"}

// Mode selects development or production behavior.
type Mode int

const (
	Development Mode = iota
	Production
)

func (m Mode) String() string {
	if m == Production {
		return "production"
	}
	return "development"
}

// Compression names the format that the game build was compressed with.
type Compression string

const (
	CompressionBrotli Compression = "br"
	CompressionGzip   Compression = "gzip"
)

// Suffix returns the filename suffix that build artifacts carry for c.
func (c Compression) Suffix() string {
	if c == CompressionGzip {
		return ".gz"
	}
	return ".br"
}

// Config is the process-wide service configuration.
type Config struct {
	Port        int
	Host        string
	Mode        Mode
	CORSOrigins []string
	BuildNames  []string
	Compression Compression
}

// Addr returns the host:port pair to listen on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Production reports whether c selects production mode.
func (c Config) Production() bool { return c.Mode == Production }

// Load builds a Config from the environment variables visible through getenv,
// which is typically os.Getenv.
func Load(getenv func(string) string) (cfg Config, warnings []string) {
	warn := func(format string, v ...any) {
		warnings = append(warnings, fmt.Sprintf(format, v...))
	}

	cfg.Port = DefaultPort
	if raw := getenv("PORT"); raw != "" {
		if port, ok := parsePort(raw); ok {
			cfg.Port = port
		} else {
			warn("PORT %q is not a valid TCP port; using %d", raw, DefaultPort)
		}
	}

	cfg.Host = strings.TrimSpace(getenv("HOST"))
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if strings.EqualFold(strings.TrimSpace(getenv("APP_ENV")), "production") {
		cfg.Mode = Production
	}

	cfg.CORSOrigins = splitList(getenv("CORS_ORIGIN"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{DefaultCORSOrigin}
	}

	cfg.BuildNames = splitList(getenv("BUILD_NAMES"))
	if len(cfg.BuildNames) == 0 {
		cfg.BuildNames = append([]string(nil), DefaultBuildNames...)
	}

	switch raw := Compression(strings.ToLower(strings.TrimSpace(getenv("BUILD_COMPRESSION")))); raw {
	case "":
		cfg.Compression = DefaultCompression
	case CompressionBrotli, CompressionGzip:
		cfg.Compression = raw
	default:
		warn("BUILD_COMPRESSION %q is not supported; using %q", raw, DefaultCompression)
		cfg.Compression = DefaultCompression
	}

	return cfg, warnings
}

// parsePort accepts decimal integers in the range 1-65535.
func parsePort(raw string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

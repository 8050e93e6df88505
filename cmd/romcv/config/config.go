// Package config provides configuration parsing for romcv.
//
// Settings come from command-line flags with environment-variable fallbacks;
// flags take precedence. A YAML run file (-config-file) may declare the
// dataset's parameters and the regression backend of each method.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/HatiCode/romcv/pkg/compress"
	"github.com/HatiCode/romcv/pkg/errstats"
	"github.com/HatiCode/romcv/pkg/partition"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/romerr"
	"github.com/HatiCode/romcv/pkg/tls"
)

// Run modes.
const (
	ModeBuild  = "build"
	ModeExport = "export"
)

// Config holds all romcv configuration.
type Config struct {
	Dir        string
	Mode       string
	MethodName string
	Method     regression.Method
	RegPath    string
	Input      string
	Results    string
	ConfigFile string

	FoldFraction float64
	Tolerance    float64
	Plots        bool

	Storage       string
	ReportTTL     time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	RedisCodec    string

	Listen     string
	GRPCListen string
	Serve      bool
	TLS        tls.Config
	BackendTLS tls.Config

	LogFormat string
	LogLevel  string
}

// ParseFlags parses os.Args and exits with status 2 on invalid configuration.
func ParseFlags() *Config {
	cfg, err := Parse(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
	return cfg
}

// Parse parses args with environment fallbacks and validates the result.
func Parse(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("romcv", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.Dir, "dir", getEnv("ROM_DIR", "."), "Job directory holding rom.in and results")
	fs.StringVar(&cfg.Mode, "mode", getEnv("MODE", ModeBuild), "Run mode: build or export")
	fs.StringVar(&cfg.MethodName, "method", getEnv("METHOD", regression.Kriging.String()), "Regression method")
	fs.StringVar(&cfg.RegPath, "path", getEnv("REG_PATH", ""), "Regression executable for the selected method")
	fs.StringVar(&cfg.Input, "input", getEnv("ROM_INPUT", ""), "Training-input table (default <dir>/rom.in)")
	fs.StringVar(&cfg.Results, "results", getEnv("ROM_RESULTS", ""), "Ground-truth results table (default <dir>/results)")
	fs.StringVar(&cfg.ConfigFile, "config-file", getEnv("CONFIG_FILE", ""), "YAML run file")

	fs.Float64Var(&cfg.FoldFraction, "fold-fraction", getEnvFloat("FOLD_FRACTION", partition.DefaultFoldFraction), "Share of simulations held out per fold")
	fs.Float64Var(&cfg.Tolerance, "tolerance", getEnvFloat("TOLERANCE", errstats.DefaultTolerance), "Magnitude at or below which a reference value counts as zero")
	fs.BoolVar(&cfg.Plots, "plots", getEnvBool("PLOTS", false), "Write parity plots per output")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Report storage: memory or redis")
	fs.DurationVar(&cfg.ReportTTL, "report-ttl", getEnvDuration("REPORT_TTL", 0), "In-memory report TTL (0 keeps reports for the process lifetime)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 7*24*time.Hour), "Redis report TTL")
	fs.StringVar(&cfg.RedisCodec, "redis-codec", getEnv("REDIS_CODEC", string(compress.Zstd)), "Report compression: none, zstd, s2 or lz4")

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":8083"), "gRPC health listen address")
	fs.BoolVar(&cfg.Serve, "serve", getEnvBool("SERVE", false), "Keep serving the report after the run")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for the HTTP server")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	fs.BoolVar(&cfg.BackendTLS.Enabled, "backend-tls-enabled", getEnvBool("BACKEND_TLS_ENABLED", false), "Enable mTLS for HTTP regression backends")
	fs.StringVar(&cfg.BackendTLS.CertFile, "backend-tls-cert-file", getEnv("BACKEND_TLS_CERT_FILE", ""), "Client certificate for HTTP backends")
	fs.StringVar(&cfg.BackendTLS.KeyFile, "backend-tls-key-file", getEnv("BACKEND_TLS_KEY_FILE", ""), "Client private key for HTTP backends")
	fs.StringVar(&cfg.BackendTLS.CAFile, "backend-tls-ca-file", getEnv("BACKEND_TLS_CA_FILE", ""), "CA certificate for HTTP backends")

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, romerr.Configf("%v", err)
	}

	if cfg.Input == "" {
		cfg.Input = filepath.Join(cfg.Dir, "rom.in")
	}
	if cfg.Results == "" {
		cfg.Results = filepath.Join(cfg.Dir, "results")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and resolves the method.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return romerr.Configf("dir cannot be empty")
	}
	if c.Mode != ModeBuild && c.Mode != ModeExport {
		return romerr.Configf("invalid mode %q (must be %s or %s)", c.Mode, ModeBuild, ModeExport)
	}

	m, err := regression.ParseMethod(c.MethodName)
	if err != nil {
		return err
	}
	c.Method = m

	if math.IsNaN(c.FoldFraction) || c.FoldFraction <= 0 || c.FoldFraction >= 1 {
		return romerr.Configf("fold fraction %v must be in (0, 1)", c.FoldFraction)
	}
	if math.IsNaN(c.Tolerance) || c.Tolerance < 0 {
		return romerr.Configf("tolerance %v must be >= 0", c.Tolerance)
	}

	switch c.Storage {
	case "memory":
		if c.ReportTTL < 0 {
			return romerr.Configf("report-ttl %v must be >= 0", c.ReportTTL)
		}
	case "redis":
		if c.RedisAddr == "" {
			return romerr.Configf("redis-addr is required when storage=redis")
		}
		if c.RedisDB < 0 {
			return romerr.Configf("redis-db must be >= 0")
		}
	default:
		return romerr.Configf("invalid storage %q (must be memory or redis)", c.Storage)
	}
	if _, err := compress.ParseType(c.RedisCodec); err != nil {
		return romerr.Configf("redis-codec: %v", err)
	}

	if c.Serve && c.Listen == "" {
		return romerr.Configf("listen address is required with -serve")
	}
	if err := c.TLS.Validate(); err != nil {
		return romerr.Configf("tls: %v", err)
	}
	if err := c.BackendTLS.Validate(); err != nil {
		return romerr.Configf("backend tls: %v", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// This file contains environment variable utilities for configuration override.

package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

// isFlagSet checks if a flag was explicitly set on the command line.
// This is used to determine whether to apply environment variable overrides.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isFlagSetAny checks if any of the specified flags were explicitly set.
// This is useful for aliased flags where either the short or long form may be used.
func isFlagSetAny(fs *flag.FlagSet, names ...string) bool {
	for _, name := range names {
		if isFlagSet(fs, name) {
			return true
		}
	}
	return false
}

// envOverride declares a single environment variable override.
// Each entry maps an env key (without the LOOKFORGE_ prefix) to the CLI flag
// name(s) it corresponds to and a function that applies the env value.
type envOverride struct {
	envKey string
	flags  []string
	apply  func(*AppConfig, string)
}

func durationOverride(set func(*AppConfig, time.Duration)) func(*AppConfig, string) {
	return func(c *AppConfig, v string) {
		if parsed, err := time.ParseDuration(v); err == nil {
			set(c, parsed)
		}
	}
}

func intOverride(set func(*AppConfig, int)) func(*AppConfig, string) {
	return func(c *AppConfig, v string) {
		if parsed, err := strconv.Atoi(v); err == nil {
			set(c, parsed)
		}
	}
}

// envOverrides is the declarative table of all environment variable overrides.
var envOverrides = []envOverride{
	// Numeric overrides
	{"VIDEO_SECONDS", []string{"video-seconds"}, intOverride(func(c *AppConfig, n int) { c.VideoSeconds = n })},
	{"REDIS_DB", []string{"redis-db"}, intOverride(func(c *AppConfig, n int) { c.RedisDB = n })},

	// Duration overrides
	{"TIMEOUT", []string{"timeout"}, durationOverride(func(c *AppConfig, d time.Duration) { c.Timeout = d })},
	{"RETENTION", []string{"retention"}, durationOverride(func(c *AppConfig, d time.Duration) { c.Retention = d })},
	{"SHUTDOWN_TIMEOUT", []string{"shutdown-timeout"}, durationOverride(func(c *AppConfig, d time.Duration) { c.ShutdownTimeout = d })},

	// String overrides
	{"CHARACTER", []string{"character"}, func(c *AppConfig, v string) { c.CharacterURL = v }},
	{"PRODUCT", []string{"product"}, func(c *AppConfig, v string) { c.ProductURL = v }},
	{"STYLE", []string{"style"}, func(c *AppConfig, v string) { c.Style = v }},
	{"OUTPUT", []string{"output"}, func(c *AppConfig, v string) { c.Output = v }},
	{"ASPECT", []string{"aspect"}, func(c *AppConfig, v string) { c.AspectRatio = v }},
	{"JSON", []string{"json", "o"}, func(c *AppConfig, v string) { c.OutputFile = v }},
	{"LOG_LEVEL", []string{"log-level"}, func(c *AppConfig, v string) { c.LogLevel = v }},
	{"CATALOG", []string{"catalog"}, func(c *AppConfig, v string) { c.CatalogPath = v }},
	{"ADDR", []string{"addr"}, func(c *AppConfig, v string) { c.Addr = v }},
	{"ALLOWED_ORIGINS", []string{"allowed-origins"}, func(c *AppConfig, v string) { c.AllowedOrigins = splitList(v) }},
	{"MONGO_URI", []string{"mongo-uri"}, func(c *AppConfig, v string) { c.MongoURI = v }},
	{"MONGO_DB", []string{"mongo-db"}, func(c *AppConfig, v string) { c.MongoDatabase = v }},
	{"REDIS_ADDR", []string{"redis-addr"}, func(c *AppConfig, v string) { c.RedisAddr = v }},
	{"REDIS_PASSWORD", []string{"redis-password"}, func(c *AppConfig, v string) { c.RedisPassword = v }},
	{"S3_BUCKET", []string{"s3-bucket"}, func(c *AppConfig, v string) { c.S3Bucket = v }},
	{"S3_REGION", []string{"s3-region"}, func(c *AppConfig, v string) { c.S3Region = v }},
	{"S3_ENDPOINT", []string{"s3-endpoint"}, func(c *AppConfig, v string) { c.S3Endpoint = v }},
	{"S3_PREFIX", []string{"s3-prefix"}, func(c *AppConfig, v string) { c.S3Prefix = v }},

	// Boolean overrides
	{"SERVE", []string{"serve"}, func(c *AppConfig, v string) { c.Serve = parseBoolEnv(v, c.Serve) }},
	{"TUI", []string{"tui"}, func(c *AppConfig, v string) { c.TUI = parseBoolEnv(v, c.TUI) }},
	{"QUIET", []string{"quiet", "q"}, func(c *AppConfig, v string) { c.Quiet = parseBoolEnv(v, c.Quiet) }},
	{"NO_COLOR", []string{"no-color"}, func(c *AppConfig, v string) { c.NoColor = parseBoolEnv(v, c.NoColor) }},
}

// parseBoolEnv parses a boolean environment variable value.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
// Returns defaultVal if the value is not recognized.
func parseBoolEnv(val string, defaultVal bool) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

// applyEnvOverrides applies environment variable values to the configuration
// for any flags that were not explicitly set on the command line.
// This implements the priority: CLI flags > Environment variables > Defaults.
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	for _, o := range envOverrides {
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		if val := os.Getenv(EnvPrefix + o.envKey); val != "" {
			o.apply(config, val)
		}
	}
}

// Package config parses the lookforge command line and environment into an
// AppConfig.
package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/pipeline"
)

// EnvPrefix is prepended to every environment variable read by the configuration.
const EnvPrefix = "LOOKFORGE_"

// Defaults.
const (
	DefaultAddr            = ":8080"
	DefaultCatalogPath     = "configs/providers.yaml"
	DefaultTimeout         = 10 * time.Minute
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMongoDatabase   = "lookforge"
	DefaultS3Prefix        = "assets/"
	DefaultRetention       = 5 * time.Minute
)

// AppConfig aggregates all settings of one process.
type AppConfig struct {
	// Modes.
	Serve bool
	TUI   bool

	// One-shot generation inputs.
	CharacterURL string
	ProductURL   string
	Style        string
	Output       string
	AspectRatio  string
	VideoSeconds int
	OutputFile   string
	Quiet        bool
	NoColor      bool

	// Runtime.
	Timeout     time.Duration
	LogLevel    string
	CatalogPath string
	Retention   time.Duration

	// HTTP server.
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	// Backends. Empty values select in-process implementations.
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Prefix      string
}

// ParseConfig parses args with a dedicated FlagSet, applies LOOKFORGE_*
// environment overrides for flags not given explicitly, and validates the
// result. flag.ErrHelp is returned unchanged when -h was requested.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)

	var cfg AppConfig
	var origins string
	fs.BoolVar(&cfg.Serve, "serve", false, "Run the HTTP API server.")
	fs.BoolVar(&cfg.TUI, "tui", false, "Run one generation in the interactive dashboard.")
	fs.StringVar(&cfg.CharacterURL, "character", "", "URL of the character (model) photo.")
	fs.StringVar(&cfg.ProductURL, "product", "", "URL of the product photo.")
	fs.StringVar(&cfg.Style, "style", "", "Visual style, e.g. editorial, streetwear.")
	fs.StringVar(&cfg.Output, "output", "image", "Final artifact: image or video.")
	fs.StringVar(&cfg.AspectRatio, "aspect", "", "Aspect ratio: 1:1, 16:9 or 9:16.")
	fs.IntVar(&cfg.VideoSeconds, "video-seconds", 0, "Clip length for video output.")
	fs.StringVar(&cfg.OutputFile, "json", "", "Write the generation outcome as JSON to this file.")
	fs.StringVar(&cfg.OutputFile, "o", "", "Shorthand for --json.")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Print only the result.")
	fs.BoolVar(&cfg.Quiet, "q", false, "Shorthand for --quiet.")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable coloured output.")
	fs.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "Maximum duration of one generation.")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error.")
	fs.StringVar(&cfg.CatalogPath, "catalog", DefaultCatalogPath, "Path of the provider catalog YAML.")
	fs.DurationVar(&cfg.Retention, "retention", DefaultRetention, "How long finished sessions stay readable.")
	fs.StringVar(&cfg.Addr, "addr", DefaultAddr, "HTTP listen address.")
	fs.StringVar(&origins, "allowed-origins", "*", "Comma-separated CORS origins.")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", DefaultShutdownTimeout, "Graceful shutdown budget.")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection string.")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", DefaultMongoDatabase, "MongoDB database name.")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for cross-node progress events.")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password.")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number.")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket for generated assets.")
	fs.StringVar(&cfg.S3Region, "s3-region", "us-east-1", "S3 region.")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "Custom S3 endpoint (MinIO, LocalStack).")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", DefaultS3Prefix, "Object key prefix.")

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	if fs.NArg() > 0 {
		return AppConfig{}, apperrors.NewConfigError("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	cfg.AllowedOrigins = splitList(origins)

	applyEnvOverrides(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errWriter, "configuration error: %v\n", err)
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c AppConfig) Validate() error {
	if c.Serve && c.TUI {
		return apperrors.NewConfigError("--serve and --tui are mutually exclusive")
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("--timeout must be positive, got %s", c.Timeout)
	}
	if c.Retention < 0 {
		return apperrors.NewConfigError("--retention must not be negative")
	}
	switch c.Output {
	case "image", "video":
	default:
		return apperrors.NewConfigError("--output must be image or video, got %q", c.Output)
	}
	if c.VideoSeconds < 0 {
		return apperrors.NewConfigError("--video-seconds must not be negative")
	}
	if c.CatalogPath == "" {
		return apperrors.NewConfigError("--catalog is required")
	}
	if !c.Serve && (c.CharacterURL == "" || c.ProductURL == "") {
		return apperrors.NewConfigError("--character and --product are required unless --serve is set")
	}
	if c.MongoURI != "" && c.MongoDatabase == "" {
		return apperrors.NewConfigError("--mongo-db is required with --mongo-uri")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Job returns the generation job described by the one-shot inputs.
func (c AppConfig) Job() pipeline.Job {
	return pipeline.Job{
		CharacterImageURL: c.CharacterURL,
		ProductImageURL:   c.ProductURL,
		Style:             c.Style,
		Output:            pipeline.Output(c.Output),
		AspectRatio:       c.AspectRatio,
		VideoSeconds:      c.VideoSeconds,
	}
}

// Package config loads and validates the tunables shared by the Nayru CLI
// and HTTP API: the upstream Kokoro URL, default voice/speed, bind address,
// and logging verbosity. Flags take precedence over environment variables
// loaded from .env, which take precedence over built-in defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/nayru/internal/domain"
)

// Environment variable names recognized alongside their flag equivalents.
const (
	EnvKokoroURL = "NAYRU_KOKORO_URL"
	EnvVoice     = "NAYRU_VOICE"
	EnvSpeed     = "NAYRU_SPEED"
	EnvAddr      = "NAYRU_ADDR"
	EnvDiskCache = "NAYRU_DISK_CACHE"
	EnvCacheDir  = "NAYRU_CACHE_DIR"
)

// Config is the fully resolved, validated set of tunables the engine and
// server are constructed from.
type Config struct {
	domain.Config

	Addr      string
	DiskCache bool
	CacheDir  string
	LogLevel  string // "off", "normal", "verbose"
	LogFile   string
}

// Load reads .env (if present), registers flags on fs, parses args, and
// returns a validated Config. fs is typically flag.CommandLine; tests pass
// a fresh flag.FlagSet to avoid global flag pollution.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	_ = godotenv.Load()

	kokoroURL := fs.String("kokoro-url", envOr(EnvKokoroURL, ""), "base URL of the upstream Kokoro TTS server")
	voice := fs.String("voice", envOr(EnvVoice, "af_heart"), "default voice id")
	speed := fs.Float64("speed", envOrFloat(EnvSpeed, 1.0), "default speech speed")
	addr := fs.String("addr", envOr(EnvAddr, "127.0.0.1:2003"), "address for the HTTP API to bind")
	port := fs.Int("port", 0, "shorthand for -addr 127.0.0.1:<port>")
	diskCache := fs.Bool("disk-cache", envOrBool(EnvDiskCache, true), "persist synthesized audio to an on-disk cache")
	cacheDir := fs.String("cache-dir", envOr(EnvCacheDir, ".nayru-cache"), "directory for the on-disk audio cache")
	verbose := fs.Bool("verbose", false, "enable verbose/debug logging")
	quiet := fs.Bool("quiet", false, "disable all logging")
	logFile := fs.String("log-file", "", "file to write logs to (default: stderr)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	bindAddr := *addr
	if *port != 0 {
		bindAddr = fmt.Sprintf("127.0.0.1:%d", *port)
	}

	level := "normal"
	if *verbose {
		level = "verbose"
	}
	if *quiet {
		level = "off"
	}

	cfg := Config{
		Config: domain.Config{
			KokoroURL: *kokoroURL,
			Voice:     *voice,
			Speed:     float32(*speed),
		},
		Addr:      bindAddr,
		DiskCache: *diskCache,
		CacheDir:  *cacheDir,
		LogLevel:  level,
		LogFile:   *logFile,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the engine assumes hold for any live
// Config. Load calls it for flag and environment input; the engine's
// SetConfig (used by HTTP set_config and /speak) applies the same checks
// through its own validate function.
func (c Config) Validate() error {
	if c.KokoroURL == "" {
		return fmt.Errorf("%w: kokoro-url (or %s) is required", domain.ErrInvalidConfig, EnvKokoroURL)
	}
	if c.Voice == "" {
		return fmt.Errorf("%w: voice must not be empty", domain.ErrInvalidConfig)
	}
	if c.Speed < domain.MinSpeed || c.Speed > domain.MaxSpeed {
		return fmt.Errorf("%w: speed %.2f out of range [%.1f, %.1f]", domain.ErrInvalidConfig, c.Speed, domain.MinSpeed, domain.MaxSpeed)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

package startup

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-preparser/internal/logging"
	"media-preparser/internal/preparser"
	"media-preparser/internal/workers"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Duration is a time.Duration read from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration.
type Config struct {
	Preparser  PreparserConfig  `toml:"preparser"`
	Paths      PathsConfig      `toml:"paths"`
	Server     ServerSettings   `toml:"server"`
	Network    NetworkConfig    `toml:"network"`
	Thumbnails ThumbnailsConfig `toml:"thumbnails"`

	// Derived values, filled in by Load.
	Types              preparser.Type `toml:"-"`
	ParserWorkers      int            `toml:"-"`
	ThumbnailerWorkers int            `toml:"-"`
	DatabasePath       string         `toml:"-"`
	ThumbnailDir       string         `toml:"-"`
	ArtDir             string         `toml:"-"`
	// Source is the config file read, or "" for built-in defaults.
	Source string `toml:"-"`
}

// PreparserConfig sizes the preparser.
type PreparserConfig struct {
	Types              []string `toml:"types"`
	ParserThreads      int      `toml:"parser_threads"`
	ThumbnailerThreads int      `toml:"thumbnailer_threads"`
	Timeout            Duration `toml:"timeout"`
	MaxSubitems        int      `toml:"max_subitems"`
}

// PathsConfig locates directories and external tools.
type PathsConfig struct {
	MediaDir    string `toml:"media_dir"`
	CacheDir    string `toml:"cache_dir"`
	DatabaseDir string `toml:"database_dir"`
	FFmpeg      string `toml:"ffmpeg"`
	FFprobe     string `toml:"ffprobe"`
}

// ServerSettings configures the HTTP listeners.
type ServerSettings struct {
	Port            string `toml:"port"`
	MetricsPort     string `toml:"metrics_port"`
	MetricsEnabled  bool   `toml:"metrics_enabled"`
	LogHealthChecks bool   `toml:"log_health_checks"`
}

// NetworkConfig configures the network metadata fetcher.
type NetworkConfig struct {
	Endpoint    string   `toml:"endpoint"`
	Rate        float64  `toml:"rate"`
	Burst       int      `toml:"burst"`
	ResponseTTL Duration `toml:"response_ttl"`
}

// ThumbnailsConfig configures the thumbnailer.
type ThumbnailsConfig struct {
	Size    int  `toml:"size"`
	Quality int  `toml:"quality"`
	Vips    bool `toml:"vips"`
}

// DefaultConfig returns the configuration described by the embedded example.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ExampleConfig returns the annotated example configuration file.
func ExampleConfig() []byte {
	return append([]byte(nil), exampleConf...)
}

// CreateConfigFile writes the example configuration to path. It refuses to
// overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load builds the configuration: defaults, then the TOML file at path if
// non-empty, then environment overrides read through getenv. Derived values
// are resolved last.
func Load(path string, getenv func(string) string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		md, err := toml.Decode(string(data), config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		for _, key := range md.Undecoded() {
			logging.Warn("Unknown config key %q in %s", key.String(), path)
		}
		config.Source = path
	}

	env := envReader{getenv: getenv}
	config.applyEnv(&env)
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if err := config.resolve(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(env *envReader) {
	if v := env.str("PREPARSER_TYPES"); v != "" {
		c.Preparser.Types = strings.Split(v, ",")
	}
	env.intVar(&c.Preparser.ParserThreads, "PARSER_THREADS")
	env.intVar(&c.Preparser.ThumbnailerThreads, "THUMBNAILER_THREADS")
	env.durationVar(&c.Preparser.Timeout.Duration, "PREPARSE_TIMEOUT")
	env.intVar(&c.Preparser.MaxSubitems, "MAX_SUBITEMS")

	env.strVar(&c.Paths.MediaDir, "MEDIA_DIR")
	env.strVar(&c.Paths.CacheDir, "CACHE_DIR")
	env.strVar(&c.Paths.DatabaseDir, "DATABASE_DIR")
	env.strVar(&c.Paths.FFmpeg, "FFMPEG_PATH")
	env.strVar(&c.Paths.FFprobe, "FFPROBE_PATH")

	env.strVar(&c.Server.Port, "PORT")
	env.strVar(&c.Server.MetricsPort, "METRICS_PORT")
	env.boolVar(&c.Server.MetricsEnabled, "METRICS_ENABLED")
	env.boolVar(&c.Server.LogHealthChecks, "LOG_HEALTH_CHECKS")

	env.strVar(&c.Network.Endpoint, "META_API_URL")
	env.floatVar(&c.Network.Rate, "META_API_RATE")
	env.intVar(&c.Network.Burst, "META_API_BURST")
	env.durationVar(&c.Network.ResponseTTL.Duration, "META_API_TTL")

	env.intVar(&c.Thumbnails.Size, "THUMBNAIL_SIZE")
	env.intVar(&c.Thumbnails.Quality, "THUMBNAIL_QUALITY")
	env.boolVar(&c.Thumbnails.Vips, "VIPS_ENABLED")
}

func (c *Config) resolve() error {
	types, err := preparser.ParseTypes(c.Preparser.Types)
	if err != nil {
		return err
	}
	if types.Has(preparser.TypeFetchMetaNet) && c.Network.Endpoint == "" {
		logging.Debug("No metadata endpoint configured, disabling network fetcher")
		types &^= preparser.TypeFetchMetaNet
	}
	if types.Domains() == 0 {
		return fmt.Errorf("%w: no domain left enabled", preparser.ErrInvalidConfig)
	}
	c.Types = types

	if c.Preparser.ParserThreads < 0 || c.Preparser.ThumbnailerThreads < 0 {
		return fmt.Errorf("%w: thread counts must not be negative", preparser.ErrInvalidConfig)
	}
	if c.Preparser.Timeout.Duration < 0 {
		return fmt.Errorf("%w: negative timeout", preparser.ErrInvalidConfig)
	}
	c.ParserWorkers = workers.Resolve(c.Preparser.ParserThreads, workers.ForIO, preparser.MaxThreads)
	c.ThumbnailerWorkers = workers.Resolve(c.Preparser.ThumbnailerThreads, workers.ForCPU, preparser.MaxThreads)

	for _, dir := range []*string{&c.Paths.MediaDir, &c.Paths.CacheDir, &c.Paths.DatabaseDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("failed to resolve directory path %s: %w", *dir, err)
		}
		*dir = abs
	}
	c.DatabasePath = filepath.Join(c.Paths.DatabaseDir, "artcache.db")
	c.ThumbnailDir = filepath.Join(c.Paths.CacheDir, "thumbnails")
	c.ArtDir = filepath.Join(c.Paths.CacheDir, "art")
	return nil
}

// envReader applies environment overrides, collecting parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key string) string {
	return strings.TrimSpace(e.getenv(key))
}

func (e *envReader) strVar(dst *string, key string) {
	if v := e.str(key); v != "" {
		*dst = v
	}
}

func (e *envReader) intVar(dst *int, key string) {
	v := e.str(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = n
}

func (e *envReader) floatVar(dst *float64, key string) {
	v := e.str(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = f
}

func (e *envReader) durationVar(dst *time.Duration, key string) {
	v := e.str(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return
	}
	*dst = d
}

// boolVar logs unparseable input and keeps the current value.
func (e *envReader) boolVar(dst *bool, key string) {
	v := e.str(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, v, *dst)
		return
	}
	*dst = b
}

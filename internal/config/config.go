package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/render"
)

// BaseMapConfig holds the inputs of the base-map builder.
type BaseMapConfig struct {
	BathymetrySource string
	CoastlineSource  string
	IceSource        string
	TrimLatitude     float64
	BorderWidth      float64
	MeridianStep     float64
	ParallelStep     float64
}

// RemoteConfig points at an S3-compatible bucket holding raw inputs.
type RemoteConfig struct {
	Endpoint string
	Bucket   string
	Prefix   string
	Timeout  time.Duration
}

// Enabled reports whether a remote store is configured.
func (r RemoteConfig) Enabled() bool { return r.Endpoint != "" && r.Bucket != "" }

// Config holds all settings, populated from environment variables.
type Config struct {
	CacheDir    string
	MirrorDir   string
	CatalogPath string

	BaseMap BaseMapConfig
	Remote  RemoteConfig

	FontFamily       string
	FontSize         float64
	TargetCellSize   float64
	Workers          int
	WriteEmptyLayers bool

	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	ExportWidth      int
	ExportHeight     int
	DisplayCacheSize int

	// Overrides merges the optional catalog file with <DATASET>_SOURCE
	// variables. Environment variables win.
	Overrides map[domain.DatasetID]catalog.Override
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	remoteTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("REMOTE_TIMEOUT", "30s"))
	if err != nil || remoteTimeout <= 0 {
		return nil, errors.New("invalid REMOTE_TIMEOUT")
	}

	var p parser
	cfg := &Config{
		CacheDir:    sharedcfg.EnvOrDefault("CACHE_DIR", "data/layers"),
		MirrorDir:   sharedcfg.EnvOrDefault("MIRROR_DIR", "data/raw"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		BaseMap: BaseMapConfig{
			BathymetrySource: sharedcfg.EnvOrDefault("BATHYMETRY_SOURCE", "bathymetry/bathy.asc"),
			CoastlineSource:  os.Getenv("COASTLINE_SOURCE"),
			IceSource:        os.Getenv("ICE_SOURCE"),
			TrimLatitude:     p.floatEnv("TRIM_LATITUDE", -45),
			BorderWidth:      p.floatEnv("BORDER_WIDTH", 2),
			MeridianStep:     30,
			ParallelStep:     15,
		},
		Remote: RemoteConfig{
			Endpoint: strings.TrimRight(os.Getenv("REMOTE_ENDPOINT"), "/"),
			Bucket:   os.Getenv("REMOTE_BUCKET"),
			Prefix:   os.Getenv("REMOTE_PREFIX"),
			Timeout:  remoteTimeout,
		},
		FontFamily:       sharedcfg.EnvOrDefault("FONT_FAMILY", "Helvetica"),
		FontSize:         p.floatEnv("FONT_SIZE", 14),
		TargetCellSize:   p.floatEnv("TARGET_CELL_SIZE", 0),
		Workers:          p.intEnv("WORKERS", 1),
		WriteEmptyLayers: p.boolEnv("WRITE_EMPTY_LAYERS", false),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "polar-layer-updates"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		ExportWidth:      p.intEnv("EXPORT_WIDTH", 1200),
		ExportHeight:     p.intEnv("EXPORT_HEIGHT", 1200),
		DisplayCacheSize: p.intEnv("DISPLAY_CACHE_SIZE", 4),
	}
	if p.err != nil {
		return nil, p.err
	}
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(raw)
	}

	if cfg.CatalogPath != "" {
		cfg.Overrides, err = LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}
	cfg.applySourceEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.CacheDir == "":
		return errors.New("CACHE_DIR is required")
	case c.BaseMap.BathymetrySource == "":
		return errors.New("BATHYMETRY_SOURCE is required")
	case c.BaseMap.TrimLatitude >= 0 || c.BaseMap.TrimLatitude <= -90:
		return errors.New("TRIM_LATITUDE must be between -90 and 0")
	case c.BaseMap.BorderWidth < 0:
		return errors.New("BORDER_WIDTH must not be negative")
	case c.FontSize <= 0:
		return errors.New("FONT_SIZE must be positive")
	case c.TargetCellSize < 0:
		return errors.New("TARGET_CELL_SIZE must not be negative")
	case c.Workers < 1:
		return errors.New("WORKERS must be at least 1")
	case c.ExportWidth < render.MinSize || c.ExportHeight < render.MinSize:
		return fmt.Errorf("EXPORT_WIDTH and EXPORT_HEIGHT must be at least %d", render.MinSize)
	case c.DisplayCacheSize < 1:
		return errors.New("DISPLAY_CACHE_SIZE must be at least 1")
	case (c.Remote.Endpoint == "") != (c.Remote.Bucket == ""):
		return errors.New("REMOTE_ENDPOINT and REMOTE_BUCKET must be set together")
	case len(c.KafkaBrokers) > 0 && c.KafkaTopic == "":
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// applySourceEnv folds BIOREGIONS_SOURCE and friends into Overrides.
func (c *Config) applySourceEnv() {
	for _, id := range domain.Datasets() {
		v := os.Getenv(strings.ToUpper(string(id)) + "_SOURCE")
		if v == "" {
			continue
		}
		if c.Overrides == nil {
			c.Overrides = make(map[domain.DatasetID]catalog.Override)
		}
		o := c.Overrides[id]
		o.Source = v
		c.Overrides[id] = o
	}
}

// catalogFile is the on-disk shape of CATALOG_PATH.
type catalogFile struct {
	Datasets map[string]catalog.Override `yaml:"datasets"`
}

// LoadCatalog reads per-dataset overrides from a YAML file.
func LoadCatalog(path string) (map[domain.DatasetID]catalog.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CATALOG_PATH: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse CATALOG_PATH %s: %w", path, err)
	}
	out := make(map[domain.DatasetID]catalog.Override, len(f.Datasets))
	for key, o := range f.Datasets {
		id, err := domain.ParseDatasetID(key)
		if err != nil {
			return nil, fmt.Errorf("CATALOG_PATH %s: %w", path, err)
		}
		out[id] = o
	}
	return out, nil
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) floatEnv(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", key, s)
		return def
	}
	return v
}

func (p *parser) intEnv(key string, def int) int {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", key, s)
		return def
	}
	return v
}

func (p *parser) boolEnv(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.err = fmt.Errorf("invalid %s: %q", key, s)
		return def
	}
	return v
}

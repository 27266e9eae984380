package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"facesort/internal/faces"
)

// DefaultExtensions is the image extension set scanned when none is
// configured. Lowercase, with leading dot.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp", ".gif"}

type Config struct {
	Embedding EmbeddingConfig
	Scan      ScanConfig
	Match     MatchConfig
	Cache     CacheConfig
	Paths     PathsConfig
	Serve     ServeConfig
}

type EmbeddingConfig struct {
	URL string `yaml:"url"` // face embedding service, defaults to http://localhost:8000
}

type ScanConfig struct {
	Tolerance   float64       `yaml:"tolerance"`     // face distance threshold, default 0.6
	Workers     int           `yaml:"workers"`       // extraction worker pool size
	FileTimeout time.Duration `yaml:"file_timeout"`  // per-file extraction budget
	Extensions  []string      `yaml:"extensions"`    // image extensions to consider
	MinFileSize int64         `yaml:"min_file_size"` // skip files smaller than this
}

type MatchConfig struct {
	Policy string `yaml:"policy"` // "first" or "nearest"
}

type CacheConfig struct {
	MaxAge time.Duration `yaml:"max_age"` // entries older than this are evicted
}

type PathsConfig struct {
	StateDir string `yaml:"state_dir"` // holds cache, session, registry and logs
}

type ServeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheFile returns the encoding cache location.
func (p *PathsConfig) CacheFile() string { return filepath.Join(p.StateDir, "encodings.gob") }

// SessionFile returns the scan session location.
func (p *PathsConfig) SessionFile() string { return filepath.Join(p.StateDir, "session.gob") }

// PeopleFile returns the named-people registry location.
func (p *PathsConfig) PeopleFile() string { return filepath.Join(p.StateDir, "people.json") }

// LogFile returns the rotating log file location.
func (p *PathsConfig) LogFile() string { return filepath.Join(p.StateDir, "facesort.log") }

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float with a default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration with a default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func defaultStateDir() string {
	if dir := os.Getenv("FACESORT_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".facesort"
	}
	return filepath.Join(home, ".facesort")
}

// DefaultWorkers caps the extraction pool at 8 regardless of core count;
// the embedding service saturates well below that.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Load builds the configuration from environment variables and, when a
// facesort.yaml exists (in the working directory or named by
// FACESORT_CONFIG), overlays it on top.
func Load() (*Config, error) {
	cfg := &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("FACESORT_EMBEDDING_URL"),
		},
		Scan: ScanConfig{
			Tolerance:   envFloat("FACESORT_TOLERANCE", faces.DefaultTolerance),
			Workers:     envInt("FACESORT_WORKERS", DefaultWorkers()),
			FileTimeout: envDuration("FACESORT_FILE_TIMEOUT", 30*time.Second),
			Extensions:  append([]string(nil), DefaultExtensions...),
			MinFileSize: 1024,
		},
		Match: MatchConfig{
			Policy: os.Getenv("FACESORT_MATCH_POLICY"),
		},
		Cache: CacheConfig{
			MaxAge: envDuration("FACESORT_CACHE_MAX_AGE", 30*24*time.Hour),
		},
		Paths: PathsConfig{
			StateDir: defaultStateDir(),
		},
		Serve: ServeConfig{
			Host: "127.0.0.1",
			Port: envInt("FACESORT_PORT", 8422),
		},
	}

	path := os.Getenv("FACESORT_CONFIG")
	if path == "" {
		path = "facesort.yaml"
	}
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors Config for YAML; only set fields override.
type fileConfig struct {
	Embedding *EmbeddingConfig `yaml:"embedding"`
	Scan      *ScanConfig      `yaml:"scan"`
	Match     *MatchConfig     `yaml:"match"`
	Cache     *CacheConfig     `yaml:"cache"`
	Paths     *PathsConfig     `yaml:"paths"`
	Serve     *ServeConfig     `yaml:"serve"`
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.Embedding != nil && fc.Embedding.URL != "" {
		c.Embedding.URL = fc.Embedding.URL
	}
	if fc.Scan != nil {
		if fc.Scan.Tolerance > 0 {
			c.Scan.Tolerance = fc.Scan.Tolerance
		}
		if fc.Scan.Workers > 0 {
			c.Scan.Workers = fc.Scan.Workers
		}
		if fc.Scan.FileTimeout > 0 {
			c.Scan.FileTimeout = fc.Scan.FileTimeout
		}
		if len(fc.Scan.Extensions) > 0 {
			c.Scan.Extensions = fc.Scan.Extensions
		}
		if fc.Scan.MinFileSize > 0 {
			c.Scan.MinFileSize = fc.Scan.MinFileSize
		}
	}
	if fc.Match != nil && fc.Match.Policy != "" {
		c.Match.Policy = fc.Match.Policy
	}
	if fc.Cache != nil && fc.Cache.MaxAge > 0 {
		c.Cache.MaxAge = fc.Cache.MaxAge
	}
	if fc.Paths != nil && fc.Paths.StateDir != "" {
		c.Paths.StateDir = fc.Paths.StateDir
	}
	if fc.Serve != nil {
		if fc.Serve.Host != "" {
			c.Serve.Host = fc.Serve.Host
		}
		if fc.Serve.Port > 0 {
			c.Serve.Port = fc.Serve.Port
		}
	}
	return nil
}

// Validate rejects configurations the rest of the system must not see.
func (c *Config) Validate() error {
	if !faces.ValidTolerance(c.Scan.Tolerance) {
		return fmt.Errorf("tolerance %.2f out of range [%.1f, %.1f]",
			c.Scan.Tolerance, faces.MinTolerance, faces.MaxTolerance)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Scan.Workers)
	}
	if _, err := faces.ParseMatchPolicy(c.Match.Policy); err != nil {
		return err
	}
	return nil
}

// MatchPolicy returns the parsed match policy; Validate has already
// rejected unknown values.
func (c *Config) MatchPolicy() faces.MatchPolicy {
	p, _ := faces.ParseMatchPolicy(c.Match.Policy)
	return p
}

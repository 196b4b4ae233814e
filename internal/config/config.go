// Package config loads the YAML configuration of the modeldex binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverRedis  = "redis"
	DriverMilvus = "milvus"
	DriverMemory = "memory"
)

// Cache drivers.
const (
	CacheRedis  = "redis"
	CacheBadger = "badger"
	CacheNone   = "none"
)

// Config holds the modeldex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Search     SearchConfig     `yaml:"search"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Index      IndexConfig      `yaml:"index"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store settings.
type DatabaseConfig struct {
	Driver           string       `yaml:"driver"` // redis, milvus, memory (default: redis)
	Addrs            []string     `yaml:"addrs"`
	Password         string       `yaml:"password"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Milvus           MilvusConfig `yaml:"milvus"`
	// CatalogFile is seeded into the memory store at startup.
	CatalogFile string `yaml:"catalog_file"`
}

// MilvusConfig holds milvus connection settings.
type MilvusConfig struct {
	Address          string `yaml:"address"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	HealthCollection string `yaml:"health_collection"`
}

// CacheConfig holds response and embedding cache settings.
type CacheConfig struct {
	Driver     string `yaml:"driver"` // redis, badger, none (default: none)
	TTLSec     int    `yaml:"ttl_sec"`
	BadgerPath string `yaml:"badger_path"`
	InMemory   bool   `yaml:"in_memory"`
}

// IndexConfig holds HNSW index settings used when seeding.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	// Vectorizer selects the entry of Vectorizers used for queries and seeding.
	Vectorizer  string `yaml:"vectorizer"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// ProviderConfig holds API provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// RerankerConfig holds context reranker settings.
type RerankerConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
	TimeoutMs int     `yaml:"timeout_ms"`
}

// SearchConfig holds search defaults and fan-out tuning.
type SearchConfig struct {
	Collections         []string `yaml:"collections"`
	DefaultLimit        int      `yaml:"default_limit"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	HybridWeight        *float64 `yaml:"hybrid_weight"`
	MaxFanout           int      `yaml:"max_fanout"`
	StoreTimeoutMs      int      `yaml:"store_timeout_ms"`
	ApproximateEF       int      `yaml:"approximate_ef"`
	QueryCacheTTLSec    int      `yaml:"query_cache_ttl_sec"`
}

// ClusteringConfig holds clustering engine settings.
type ClusteringConfig struct {
	Workers       int   `yaml:"workers"`
	PoolThreshold int   `yaml:"pool_threshold"`
	MaxClusters   int   `yaml:"max_clusters"`
	Seed          int64 `yaml:"seed"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML after ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheNone
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 1800
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 5000
	}
	if c.Reranker.TimeoutMs <= 0 {
		c.Reranker.TimeoutMs = 3000
	}
	if c.Reranker.Burst <= 0 {
		c.Reranker.Burst = 1
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxFanout <= 0 {
		c.Search.MaxFanout = 8
	}
	if c.Search.StoreTimeoutMs <= 0 {
		c.Search.StoreTimeoutMs = 3000
	}
	if c.Search.ApproximateEF <= 0 {
		c.Search.ApproximateEF = 32
	}
	if c.Search.QueryCacheTTLSec <= 0 {
		c.Search.QueryCacheTTLSec = 600
	}
	if c.Clustering.Workers <= 0 {
		c.Clustering.Workers = runtime.NumCPU()
	}
	if c.Clustering.PoolThreshold <= 0 {
		c.Clustering.PoolThreshold = 64
	}
	if c.Clustering.MaxClusters <= 0 {
		c.Clustering.MaxClusters = 10
	}
	if c.Clustering.Seed == 0 {
		c.Clustering.Seed = 42
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "modeldex:"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "modeldex"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverMilvus:
		if c.Database.Milvus.Address == "" {
			return fmt.Errorf("database.milvus.address is required for driver %q", DriverMilvus)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of redis, milvus, memory, got %q", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case CacheNone, CacheBadger:
	case CacheRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("cache.driver %q needs database.addrs", CacheRedis)
		}
	default:
		return fmt.Errorf("cache.driver must be one of redis, badger, none, got %q", c.Cache.Driver)
	}
	if c.Cache.Driver == CacheBadger && c.Cache.BadgerPath == "" && !c.Cache.InMemory {
		return fmt.Errorf("cache.badger_path is required unless cache.in_memory is set")
	}

	if name := c.Embedding.Vectorizer; name != "" {
		v, ok := c.Embedding.Vectorizers[name]
		if !ok {
			return fmt.Errorf("embedding.vectorizer %q is not defined", name)
		}
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined", name, v.Provider)
		}
	}
	if c.Reranker.Enabled {
		if _, ok := c.Embedding.Providers[c.Reranker.Provider]; !ok {
			return fmt.Errorf("reranker.provider %q is not defined in embedding.providers", c.Reranker.Provider)
		}
		if c.Reranker.Model == "" {
			return fmt.Errorf("reranker.model is required when the reranker is enabled")
		}
	}

	if t := c.Search.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("search.similarity_threshold must be within [0,1], got %v", *t)
	}
	if w := c.Search.HybridWeight; w != nil && (*w < 0 || *w > 1) {
		return fmt.Errorf("search.hybrid_weight must be within [0,1], got %v", *w)
	}
	if slices.Contains(c.Search.Collections, "") {
		return fmt.Errorf("search.collections must not contain empty names")
	}
	if c.Clustering.MaxClusters < 2 {
		return fmt.Errorf("clustering.max_clusters must be at least 2, got %d", c.Clustering.MaxClusters)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

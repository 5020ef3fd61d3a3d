package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every setting the aggregation service needs to boot.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
	Cache   CacheConfig   `yaml:"cache"`
	Sources SourcesConfig `yaml:"sources"`
	Seeds   SeedsConfig   `yaml:"seeds"`
	Warmer  WarmerConfig  `yaml:"warmer"`
}

// ServerConfig controls the inbound listeners.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTPConfig tunes the single outbound HTTP client shared by every source.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
	// RateLimit caps outbound requests per second; zero disables pacing.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend      string        `yaml:"backend"` // memory | valkey | none
	MaxEntries   int           `yaml:"maxEntries"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// SourceConfig is one upstream endpoint and its revalidation interval.
type SourceConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// SourcesConfig lists every upstream feed.
type SourcesConfig struct {
	FoodInspections   SourceConfig `yaml:"foodInspections"`
	RodentInspections SourceConfig `yaml:"rodentInspections"`
	ServiceRequests   SourceConfig `yaml:"serviceRequests"`
	Covid             SourceConfig `yaml:"covid"`
	Census            SourceConfig `yaml:"census"`
	Places            SourceConfig `yaml:"places"`
	AirNow            SourceConfig `yaml:"airNow"`

	SocrataAppToken string   `yaml:"socrataAppToken"`
	CensusAPIKey    string   `yaml:"censusAPIKey"`
	AirNowAPIKey    string   `yaml:"airNowAPIKey"`
	AirNowZips      []string `yaml:"airNowZips"`
}

// SeedsConfig optionally replaces the bundled seed tables.
type SeedsConfig struct {
	Path string `yaml:"path"`
}

// WarmerConfig controls the background cache warmer.
type WarmerConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load initialises Config from defaults, an optional YAML file, dotenv files and the environment.
func Load(path string) (*Config, error) {
	// Real environment variables win; missing dotenv files are fine.
	_ = godotenv.Load(dotenvFiles()...)

	if path == "" {
		path = os.Getenv("HEALTHFEEDS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func dotenvFiles() []string {
	var files []string
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			files = append(files, name)
		}
	}
	return files
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "healthfeeds/1.0",
			RateBurst: 5,
		},
		Cache: CacheConfig{
			Backend:      "memory",
			MaxEntries:   512,
			Prefix:       "healthfeeds:",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Sources: SourcesConfig{
			FoodInspections:   SourceConfig{URL: "https://data.cityofnewyork.us/resource/43nn-pn8j.json", TTL: time.Hour},
			RodentInspections: SourceConfig{URL: "https://data.cityofnewyork.us/resource/p937-wjvj.json", TTL: time.Hour},
			ServiceRequests:   SourceConfig{URL: "https://data.cityofnewyork.us/resource/fhrw-4uyv.json", TTL: time.Hour},
			Covid:             SourceConfig{URL: "https://data.cityofnewyork.us/resource/rc75-m7u3.json", TTL: 24 * time.Hour},
			Census:            SourceConfig{URL: "https://api.census.gov/data/2022/acs/acs5", TTL: 30 * 24 * time.Hour},
			Places:            SourceConfig{URL: "https://chronicdata.cdc.gov/resource/cwsq-ngmh.json", TTL: 7 * 24 * time.Hour},
			AirNow:            SourceConfig{URL: "https://www.airnowapi.org/aq/observation/zipCode/current/", TTL: time.Hour},
			AirNowZips:        []string{"10001", "10451", "11201"},
		},
		Warmer: WarmerConfig{Enabled: false, Timeout: 2 * time.Minute},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEALTHFEEDS_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("HEALTHFEEDS_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("HEALTHFEEDS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("HEALTHFEEDS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HEALTHFEEDS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if d, ok := envDuration("HEALTHFEEDS_HTTP_TIMEOUT"); ok {
		cfg.HTTP.Timeout = d
	}
	if v := os.Getenv("HEALTHFEEDS_HTTP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RateLimit = f
		}
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("HEALTHFEEDS_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("HEALTHFEEDS_SEEDS_PATH"); v != "" {
		cfg.Seeds.Path = v
	}
	if v := os.Getenv("HEALTHFEEDS_WARMER_ENABLED"); v != "" {
		cfg.Warmer.Enabled = isTrue(v)
	}
	if v := os.Getenv("HEALTHFEEDS_MOCK_UPSTREAM"); v != "" {
		cfg.Sources.pointAt(strings.TrimRight(v, "/"))
	}

	if v := os.Getenv("SOCRATA_APP_TOKEN"); v != "" {
		cfg.Sources.SocrataAppToken = v
	}
	if v := os.Getenv("CENSUS_API_KEY"); v != "" {
		cfg.Sources.CensusAPIKey = v
	}
	if v := os.Getenv("AIRNOW_API_KEY"); v != "" {
		cfg.Sources.AirNowAPIKey = v
	}
}

// pointAt redirects every source to a single local mock upstream.
func (s *SourcesConfig) pointAt(base string) {
	s.FoodInspections.URL = base + "/resource/43nn-pn8j.json"
	s.RodentInspections.URL = base + "/resource/p937-wjvj.json"
	s.ServiceRequests.URL = base + "/resource/fhrw-4uyv.json"
	s.Covid.URL = base + "/resource/rc75-m7u3.json"
	s.Census.URL = base + "/data/2022/acs/acs5"
	s.Places.URL = base + "/resource/cwsq-ngmh.json"
	s.AirNow.URL = base + "/aq/observation/zipCode/current/"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

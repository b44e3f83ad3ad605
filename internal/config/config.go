package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Common holds upstream parameters shared by every service.
type Common struct {
	OikotieBaseURL  string
	UpstreamTimeout time.Duration
	FetchCap        int
	FetchBatchSize  int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr        string
	DefaultPageSize int
	MaxPageSize     int
	RedisAddr       string
	CacheTTL        time.Duration
	SnapshotPath    string
}

// Snapshot configures the one-shot catalog dump binary.
type Snapshot struct {
	Common
	OutputPath string
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:          common,
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPageSize: getInt("API_PAGE_SIZE", 50),
		MaxPageSize:     getInt("API_MAX_PAGE_SIZE", 500),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		CacheTTL:        getDuration("CACHE_TTL", "5m"),
		SnapshotPath:    getEnv("SNAPSHOT_PATH", "apartments.json"),
	}

	if c.DefaultPageSize <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPageSize <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive")
	}

	return c, nil
}

// LoadSnapshot builds a Snapshot config from environment variables.
func LoadSnapshot() (*Snapshot, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Snapshot{
		Common:     common,
		OutputPath: getEnv("SNAPSHOT_PATH", "apartments.json"),
	}

	if c.OutputPath == "" {
		return nil, fmt.Errorf("SNAPSHOT_PATH must not be empty")
	}

	return c, nil
}

func loadCommon() (Common, error) {
	c := Common{
		OikotieBaseURL:  getEnv("OIKOTIE_BASE_URL", "https://asunnot.oikotie.fi"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", "15s"),
		FetchCap:        getInt("FETCH_CAP", 5000),
		FetchBatchSize:  getInt("FETCH_BATCH_SIZE", 1000),
	}

	if c.FetchCap <= 0 {
		return Common{}, fmt.Errorf("FETCH_CAP must be positive")
	}
	if c.FetchBatchSize <= 0 {
		return Common{}, fmt.Errorf("FETCH_BATCH_SIZE must be positive")
	}
	if c.FetchBatchSize > c.FetchCap {
		return Common{}, fmt.Errorf("FETCH_BATCH_SIZE cannot exceed FETCH_CAP")
	}
	if c.UpstreamTimeout <= 0 {
		return Common{}, fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

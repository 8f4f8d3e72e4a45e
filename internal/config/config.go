package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	RawDir    string
	OutputDir string
	SiteDir   string

	FeedServiceURL   string
	FeedPageSize     int
	FeedMinIssued    string
	FeedRateLimitRPS int
	FeedTimeoutMs    int

	SupplementalPath    string
	LargeUnitsThreshold int
	StatusMapPath       string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawDir:    getEnv("RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "data", "processed")),
		SiteDir:   getEnv("SITE_DIR", filepath.Join(cwd, "site")),

		FeedServiceURL:   getEnv("FEED_SERVICE_URL", "https://services1.arcgis.com/zdB7qR0BtYrg0Xpl/arcgis/rest/services/ODC_DEV_RESIDENTIALCONSTPERMIT_P/FeatureServer/316/query"),
		FeedPageSize:     getEnvInt("FEED_PAGE_SIZE", 2000),
		FeedMinIssued:    getEnv("FEED_MIN_ISSUED", "2018-01-01"),
		FeedRateLimitRPS: getEnvInt("FEED_RATE_LIMIT_RPS", 5),
		FeedTimeoutMs:    getEnvInt("FEED_TIMEOUT_MS", 60000),

		SupplementalPath:    getEnv("SUPPLEMENTAL_PATH", filepath.Join(cwd, "data", "supplemental", "proposed_large_projects.csv")),
		LargeUnitsThreshold: getEnvInt("LARGE_UNITS_THRESHOLD", 100),
		StatusMapPath:       getEnv("STATUS_MAP_PATH", ""),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Package config resolves finscrape settings from the environment, an
// optional .env file and an optional YAML sites file.
//
// Precedence, highest first: command-line flags (applied by the cli package),
// process environment, .env file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/finscrape/finscrape/internal/fetch"
	"github.com/finscrape/finscrape/internal/site"
)

const (
	EnvSite      = "FINSCRAPE_SITE"
	EnvTicker    = "FINSCRAPE_TICKER"
	EnvAddr      = "FINSCRAPE_ADDR"
	EnvTimeout   = "FINSCRAPE_TIMEOUT"
	EnvSitesFile = "FINSCRAPE_SITES_FILE"
	EnvLogLevel  = "FINSCRAPE_LOG_LEVEL"
	EnvUserAgent = "FINSCRAPE_USER_AGENT"

	DefaultSite     = "yahoo"
	DefaultAddr     = "0.0.0.0:5000"
	DefaultLogLevel = "info"
	DefaultEnvFile  = ".env"
)

// Config holds resolved settings.
type Config struct {
	Site      string
	Ticker    string
	Addr      string
	Timeout   time.Duration
	SitesFile string
	LogLevel  string
	UserAgent string
}

// SitesFile is the YAML document read from SitesFile.
//
//	sites:
//	  yahoo:
//	    selector:
//	      version: "2024-02-01"
//	      container: {tag: section, class: "fin-table"}
//	      row: {tag: div, class: "row"}
type SitesFile struct {
	Sites map[string]site.Override `yaml:"sites"`
}

// Load reads envFile when it exists, then resolves settings from the environment.
// A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Site:      getenv(EnvSite, DefaultSite),
		Ticker:    getenv(EnvTicker, site.DefaultTicker),
		Addr:      getenv(EnvAddr, DefaultAddr),
		Timeout:   fetch.Timeout,
		SitesFile: os.Getenv(EnvSitesFile),
		LogLevel:  getenv(EnvLogLevel, DefaultLogLevel),
		UserAgent: os.Getenv(EnvUserAgent),
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", EnvTimeout, v)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// LoadSitesFile parses a YAML sites file.
func LoadSitesFile(path string) (*SitesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sites file: %w", err)
	}

	var f SitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sites file: %w", err)
	}
	return &f, nil
}

// Catalogue returns the builtin sites with SitesFile overrides applied.
func (c *Config) Catalogue() (*site.Catalogue, error) {
	cat := site.Default()
	if strings.TrimSpace(c.SitesFile) == "" {
		return cat, nil
	}

	f, err := LoadSitesFile(c.SitesFile)
	if err != nil {
		return nil, err
	}
	if err := cat.Apply(f.Sites); err != nil {
		return nil, err
	}
	return cat, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

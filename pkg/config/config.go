// Package config holds the dashboard configuration.
//
// Default() is the compiled-in configuration object. A YAML file, a .env
// file and LABMAP_* environment variables can override any field; flags
// in package main win over all of them.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"labmap/pkg/auth"
	"labmap/pkg/facets"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
)

// Config is the main application configuration struct.
type Config struct {
	Credentials    auth.Credentials `mapstructure:"credentials"`
	MapAccessToken string           `mapstructure:"map_access_token"`
	DataSourceURL  string           `mapstructure:"data_source_url"`

	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Map       MapConfig       `mapstructure:"map"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DashboardConfig picks one of the dashboard layouts.
type DashboardConfig struct {
	// Facet is "network", "region" or "none".
	Facet string `mapstructure:"facet"`
	// Cardinality is "multi" or "single".
	Cardinality string `mapstructure:"cardinality"`
	// EmptySelection is "keep" or "revert".
	EmptySelection string `mapstructure:"empty_selection"`
	// FacetNoun labels the filter button ("2 Networks selected").
	FacetNoun    string `mapstructure:"facet_noun"`
	NotAvailable string `mapstructure:"not_available"`
	ResultLimit  int    `mapstructure:"result_limit"`
	// Locale formats the record counter.
	Locale string `mapstructure:"locale"`
}

// MapConfig is the initial camera and tile setup.
type MapConfig struct {
	TileURL        string  `mapstructure:"tile_url"`
	DefaultLat     float64 `mapstructure:"default_lat"`
	DefaultLon     float64 `mapstructure:"default_lon"`
	DefaultZoom    int     `mapstructure:"default_zoom"`
	ClusterMaxZoom int     `mapstructure:"cluster_max_zoom"`
	ClusterRadius  float64 `mapstructure:"cluster_radius"`
	ClusterCache   int     `mapstructure:"cluster_cache"`
}

// SessionConfig holds cookie keys and limits. Keys are hex encoded.
// MaxActive bounds how many sessions keep dashboard state in memory.
type SessionConfig struct {
	HashKey     string        `mapstructure:"hash_key"`
	BlockKey    string        `mapstructure:"block_key"`
	Secure      bool          `mapstructure:"secure"`
	Lifetime    time.Duration `mapstructure:"lifetime"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MaxActive   int           `mapstructure:"max_active"`
}

// LoggingConfig selects the zap encoder, level and optional file sink.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default is the compiled-in configuration. The credentials are
// placeholders: real deployments override them.
func Default() Config {
	return Config{
		Credentials: auth.Credentials{
			AllowedEmails: []string{"viewer@example.com"},
			Password:      "change-me",
		},
		MapAccessToken: "",
		DataSourceURL:  "./labs_with_coordinates.json",
		Dashboard: DashboardConfig{
			Facet:          "network",
			Cardinality:    "multi",
			EmptySelection: "keep",
			FacetNoun:      "Network",
			NotAvailable:   labs.DefaultNotAvailable,
			ResultLimit:    50,
			Locale:         "en",
		},
		Map: MapConfig{
			TileURL:        "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			DefaultLat:     -25.2744,
			DefaultLon:     133.7751,
			DefaultZoom:    4,
			ClusterMaxZoom: 14,
			ClusterRadius:  50,
			ClusterCache:   256,
		},
		Session: SessionConfig{
			Lifetime:    12 * time.Hour,
			IdleTimeout: 2 * time.Hour,
			MaxActive:   10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataSourceURL) == "" {
		errs = append(errs, errors.New("data_source_url is required"))
	} else if u, err := url.Parse(c.DataSourceURL); err != nil {
		errs = append(errs, fmt.Errorf("data_source_url: %w", err))
	} else if u.Scheme == "ftp" {
		errs = append(errs, errors.New("data_source_url: ftp is not supported"))
	}

	allowed := 0
	for _, e := range c.Credentials.AllowedEmails {
		if strings.TrimSpace(e) != "" {
			allowed++
		}
	}
	if allowed == 0 {
		errs = append(errs, errors.New("credentials.allowed_emails must list at least one identity"))
	}
	if c.Credentials.Password == "" {
		errs = append(errs, errors.New("credentials.password is required"))
	}

	if _, err := facets.Parse(c.Dashboard.Facet); err != nil {
		errs = append(errs, err)
	}
	if _, err := facets.ParseCardinality(c.Dashboard.Cardinality); err != nil {
		errs = append(errs, err)
	}
	if _, err := filter.ParseEmptyPolicy(c.Dashboard.EmptySelection); err != nil {
		errs = append(errs, err)
	}
	if c.Dashboard.ResultLimit < 0 {
		errs = append(errs, errors.New("dashboard.result_limit must not be negative"))
	}

	if c.Map.DefaultLat < -90 || c.Map.DefaultLat > 90 || c.Map.DefaultLon < -180 || c.Map.DefaultLon > 180 {
		errs = append(errs, fmt.Errorf("map default center %v,%v is out of range", c.Map.DefaultLat, c.Map.DefaultLon))
	}
	if c.Map.DefaultZoom < 0 || c.Map.DefaultZoom > 22 {
		errs = append(errs, fmt.Errorf("map.default_zoom %d is out of range", c.Map.DefaultZoom))
	}

	if c.Session.HashKey != "" {
		if k, err := hex.DecodeString(c.Session.HashKey); err != nil || len(k) < 32 {
			errs = append(errs, errors.New("session.hash_key must be at least 32 hex-encoded bytes"))
		}
	}
	if c.Session.BlockKey != "" {
		if k, err := hex.DecodeString(c.Session.BlockKey); err != nil || (len(k) != 16 && len(k) != 24 && len(k) != 32) {
			errs = append(errs, errors.New("session.block_key must be 16, 24 or 32 hex-encoded bytes"))
		}
	}
	return errors.Join(errs...)
}

// SessionKeys decodes the cookie keys. Missing keys are generated, which
// means sessions do not survive a restart; the bool reports that case.
func (c *Config) SessionKeys() (hashKey, blockKey []byte, generated bool, err error) {
	if c.Session.HashKey == "" {
		hashKey, err = randomKey(32)
		generated = true
	} else {
		hashKey, err = hex.DecodeString(c.Session.HashKey)
	}
	if err != nil {
		return nil, nil, false, err
	}
	if c.Session.BlockKey == "" {
		blockKey, err = randomKey(32)
		generated = true
	} else {
		blockKey, err = hex.DecodeString(c.Session.BlockKey)
	}
	if err != nil {
		return nil, nil, false, err
	}
	return hashKey, blockKey, generated, nil
}

func randomKey(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return b, nil
}

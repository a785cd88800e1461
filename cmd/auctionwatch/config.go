package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/liveauction/bidpolicy"
)

// TierConfig is one bid-increment tier as written in the config file.
// Prices are decimal strings; max_price is omitted on the top tier.
type TierConfig struct {
	MinPrice  string  `yaml:"min_price"`
	MaxPrice  *string `yaml:"max_price"`
	Increment string  `yaml:"increment"`
}

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"api"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Websocket struct {
		URL string `yaml:"url"`
	} `yaml:"websocket"`
	StreamID        string       `yaml:"stream_id"`
	PollIntervalSec int          `yaml:"poll_interval_sec"`
	Tiers           []TierConfig `yaml:"bid_increment_tiers"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Env-only configuration is fine.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Env overrides for the values that differ per environment.
	config.API.BaseURL = getEnv("AUCTION_API_URL", config.API.BaseURL)
	config.API.Token = getEnv("AUCTION_API_TOKEN", config.API.Token)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.Websocket.URL = getEnv("STREAM_WS_URL", config.Websocket.URL)
	config.StreamID = getEnv("STREAM_ID", config.StreamID)
	config.PollIntervalSec = getEnvAsInt("POLL_INTERVAL_SEC", config.PollIntervalSec)

	return &config, nil
}

func (c *Config) pollInterval() time.Duration {
	if c.PollIntervalSec <= 0 {
		return 0
	}
	return time.Duration(c.PollIntervalSec) * time.Second
}

// buildPolicy converts configured tiers into a validated policy, falling
// back to the standard table when the config carries none.
func buildPolicy(tiers []TierConfig) (*bidpolicy.Policy, error) {
	if len(tiers) == 0 {
		return bidpolicy.Default(), nil
	}
	out := make([]bidpolicy.Tier, 0, len(tiers))
	for i, tc := range tiers {
		minPrice, err := decimal.NewFromString(tc.MinPrice)
		if err != nil {
			return nil, fmt.Errorf("tier %d: bad min_price: %w", i, err)
		}
		increment, err := decimal.NewFromString(tc.Increment)
		if err != nil {
			return nil, fmt.Errorf("tier %d: bad increment: %w", i, err)
		}
		tier := bidpolicy.Tier{MinPrice: minPrice, Increment: increment}
		if tc.MaxPrice != nil {
			maxPrice, err := decimal.NewFromString(*tc.MaxPrice)
			if err != nil {
				return nil, fmt.Errorf("tier %d: bad max_price: %w", i, err)
			}
			tier.MaxPrice = &maxPrice
		}
		out = append(out, tier)
	}
	return bidpolicy.NewPolicy(out)
}

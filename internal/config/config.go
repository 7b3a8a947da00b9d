// Package config handles application configuration from a .env file, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reelpress/internal/model"
)

// Config holds the application configuration.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	DatabasePath string `yaml:"database_path"`
	MediaDir     string `yaml:"media_dir"`
	// SiteURL is the public base URL of published items, used in shared links.
	SiteURL string `yaml:"site_url"`

	HTTP        HTTPConfig        `yaml:"http"`
	TMDB        TMDBConfig        `yaml:"tmdb"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Batch       BatchConfig       `yaml:"batch"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Facebook    FacebookConfig    `yaml:"facebook"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// HTTPConfig configures the JSON API.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TMDBConfig configures the metadata client.
type TMDBConfig struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Language string        `yaml:"language"`
	Region   string        `yaml:"region"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BatchConfig configures the batch coordinator.
type BatchConfig struct {
	ItemDelay  time.Duration `yaml:"item_delay"`
	ItemBudget time.Duration `yaml:"item_budget"`
}

// TelegramConfig configures the admin bot and the channel cross-poster.
type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	ChannelID    int64   `yaml:"channel_id"`
	AllowedUsers []int64 `yaml:"allowed_users"`
}

// FacebookConfig configures the page cross-poster.
type FacebookConfig struct {
	PageID      string `yaml:"page_id"`
	AccessToken string `yaml:"access_token"`
	GraphURL    string `yaml:"graph_url"`
}

// RabbitMQConfig configures the item event publisher. An empty URL disables it.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	Queue      string `yaml:"queue"`
	RoutingKey string `yaml:"routing_key"`
}

// FeedConfig is one discovery feed.
type FeedConfig struct {
	Name string     `yaml:"name"`
	URL  string     `yaml:"url"`
	Kind model.Kind `yaml:"kind"`
}

// DiscoveryConfig configures feed-driven discovery.
type DiscoveryConfig struct {
	Feeds   []FeedConfig   `yaml:"feeds"`
	Filters []model.Filter `yaml:"filters"`
}

// MaintenanceConfig configures the cleanup sweeper.
type MaintenanceConfig struct {
	Interval       time.Duration `yaml:"interval"`
	BatchRetention time.Duration `yaml:"batch_retention"`
	TrashRetention time.Duration `yaml:"trash_retention"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		DatabasePath: "./data/reelpress.db",
		MediaDir:     "./data/media",
		HTTP:         HTTPConfig{Addr: ":8080"},
		TMDB: TMDBConfig{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "en-US",
			Region:   "US",
			Timeout:  15 * time.Second,
		},
		OpenAI: OpenAIConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 2000,
			Timeout:   60 * time.Second,
		},
		Batch: BatchConfig{
			ItemDelay:  2 * time.Second,
			ItemBudget: 90 * time.Second,
		},
		Facebook: FacebookConfig{GraphURL: "https://graph.facebook.com/v19.0"},
		RabbitMQ: RabbitMQConfig{
			Exchange:   "reelpress.items",
			Queue:      "reelpress.items.created",
			RoutingKey: "item.created",
		},
		Maintenance: MaintenanceConfig{
			Interval:       6 * time.Hour,
			BatchRetention: 7 * 24 * time.Hour,
			TrashRetention: 30 * 24 * time.Hour,
		},
	}
}

// Load reads configuration from .env, the YAML file named by CONFIG_PATH and the environment.
func Load() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.MediaDir, "MEDIA_DIR")
	setString(&c.SiteURL, "SITE_URL")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.HTTP.APIKey, "API_KEY")
	setString(&c.TMDB.APIKey, "TMDB_API_KEY")
	setString(&c.TMDB.Language, "TMDB_LANGUAGE")
	setString(&c.TMDB.Region, "TMDB_REGION")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Facebook.PageID, "FACEBOOK_PAGE_ID")
	setString(&c.Facebook.AccessToken, "FACEBOOK_ACCESS_TOKEN")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")

	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		c.HTTP.AllowedOrigins = splitList(raw)
	}
	if raw := os.Getenv("TELEGRAM_CHANNEL_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHANNEL_ID %q: %w", raw, err)
		}
		c.Telegram.ChannelID = id
	}
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		var users []int64
		for _, s := range splitList(raw) {
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			users = append(users, uid)
		}
		c.Telegram.AllowedUsers = users
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"BATCH_ITEM_DELAY", &c.Batch.ItemDelay},
		{"BATCH_ITEM_BUDGET", &c.Batch.ItemBudget},
		{"MAINTENANCE_INTERVAL", &c.Maintenance.Interval},
		{"BATCH_RETENTION", &c.Maintenance.BatchRetention},
		{"TRASH_RETENTION", &c.Maintenance.TrashRetention},
	} {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	return nil
}

// IsUserAllowed checks whether a Telegram user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.Telegram.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

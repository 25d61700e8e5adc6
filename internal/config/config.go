package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models homeward.yml.
type Config struct {
	Marketplace struct {
		Name string `yaml:"name"`
	} `yaml:"marketplace"`
	Rehoming struct {
		InterventionCoolingHours int `yaml:"intervention_cooling_hours"`
		RequestCoolingHours      int `yaml:"request_cooling_hours"`
		DraftExpiryDays          int `yaml:"draft_expiry_days"`
	} `yaml:"rehoming"`
	Listing struct {
		ModerationEnabled *bool `yaml:"moderation_enabled"`
		DurationDays      int   `yaml:"duration_days"`
		MaxAdoptionFee    int   `yaml:"max_adoption_fee"`
		MinPhotos         int   `yaml:"min_photos"`
		MinStoryChars     int   `yaml:"min_story_chars"`
	} `yaml:"listing"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// ModerationEnabled defaults to true when unset.
func (c *Config) ModerationEnabled() bool {
	if c.Listing.ModerationEnabled == nil {
		return true
	}
	return *c.Listing.ModerationEnabled
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with hw init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.Name == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	if c.Rehoming.InterventionCoolingHours < 0 {
		return fmt.Errorf("config.rehoming.intervention_cooling_hours cannot be negative")
	}
	if c.Rehoming.RequestCoolingHours < 0 {
		return fmt.Errorf("config.rehoming.request_cooling_hours cannot be negative")
	}
	if c.Rehoming.DraftExpiryDays < 0 {
		return fmt.Errorf("config.rehoming.draft_expiry_days cannot be negative")
	}
	if c.Listing.DurationDays <= 0 {
		return fmt.Errorf("config.listing.duration_days must be positive")
	}
	if c.Listing.MaxAdoptionFee < 0 {
		return fmt.Errorf("config.listing.max_adoption_fee cannot be negative")
	}
	if c.Listing.MinPhotos < 0 {
		return fmt.Errorf("config.listing.min_photos cannot be negative")
	}
	if c.Listing.MinStoryChars < 0 {
		return fmt.Errorf("config.listing.min_story_chars cannot be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds cannot be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "homeward.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

// Default returns the default Config struct for a marketplace.
func Default(name string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, name))).Decode(&cfg)
	cfg.Marketplace.Name = name
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  name: %s

rehoming:
  # Cooling-off window started when an owner acknowledges the intervention
  # questionnaire (skipped for immediate urgency).
  intervention_cooling_hours: 48
  # Shorter timer between request creation and confirmation.
  request_cooling_hours: 24
  # Drafts untouched for this long are swept to expired.
  draft_expiry_days: 30

listing:
  moderation_enabled: true
  duration_days: 90
  max_adoption_fee: 300
  min_photos: 5
  min_story_chars: 1000
`

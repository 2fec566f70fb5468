package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models bugforge.yml.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Mentions struct {
		// Resolution controls how @mention tokens become notification
		// targets: "members" matches team member names, "raw" stores
		// the token as typed.
		Resolution string `yaml:"resolution"`
	} `yaml:"mentions"`
	Activity struct {
		FeedLimit      int `yaml:"feed_limit"`
		ActorFeedLimit int `yaml:"actor_feed_limit"`
	} `yaml:"activity"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"secret,omitempty"`
	Actions        []string `yaml:"actions" json:"actions,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with bf project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	switch c.Mentions.Resolution {
	case "", "members", "raw":
	default:
		return fmt.Errorf("config.mentions.resolution must be 'members' or 'raw'")
	}
	if c.Activity.FeedLimit < 0 || c.Activity.ActorFeedLimit < 0 {
		return fmt.Errorf("config.activity limits must be non-negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be non-negative", i)
		}
	}
	return nil
}

// FeedLimit returns the activity feed page size, defaulting to 100.
func (c *Config) FeedLimit() int {
	if c.Activity.FeedLimit > 0 {
		return c.Activity.FeedLimit
	}
	return 100
}

// ActorFeedLimit returns the per-actor feed page size, defaulting to 50.
func (c *Config) ActorFeedLimit() int {
	if c.Activity.ActorFeedLimit > 0 {
		return c.Activity.ActorFeedLimit
	}
	return 50
}

// ResolveMentions reports whether mention tokens should be matched against
// team members before falling back to the raw token.
func (c *Config) ResolveMentions() bool {
	return c.Mentions.Resolution != "raw"
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "bugforge.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID, projectID)
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

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(projectID))).Decode(&cfg)
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

const defaultTemplate = `project:
  id: %s
  name: %s

mentions:
  resolution: members

activity:
  feed_limit: 100
  actor_feed_limit: 50
`

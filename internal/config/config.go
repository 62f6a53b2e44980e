package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"groundcontrol/internal/domain"
)

const fileName = "groundcontrol.yml"

// Config models groundcontrol.yml. Tokens and secrets live here and are
// injected into the components that need them; nothing reads them from
// ambient process state.
type Config struct {
	Actors struct {
		// Watched is the remote collaborator whose mentions and
		// assignments trigger notifications.
		Watched string `yaml:"watched"`
	} `yaml:"actors"`
	Notifications struct {
		Telegram struct {
			Token  string `yaml:"token"`
			ChatID string `yaml:"chat_id"`
		} `yaml:"telegram"`
		Webhooks []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
	GitHub struct {
		Secret string `yaml:"secret"`
	} `yaml:"github"`
	Server struct {
		JWTSecret        string `yaml:"jwt_secret"`
		AllowActorHeader bool   `yaml:"allow_actor_header"`
	} `yaml:"server"`
}

type WebhookConfig struct {
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
	Enabled *bool  `yaml:"enabled"`
}

// Path returns the config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".groundcontrol", fileName)
}

// Load reads config from workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Actors.Watched == "" {
		cfg.Actors.Watched = domain.ActorSage
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration: sage is watched, header
// auth is allowed, no delivery targets.
func Default() *Config {
	cfg := &Config{}
	cfg.Actors.Watched = domain.ActorSage
	cfg.Server.AllowActorHeader = true
	return cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if !domain.ValidAssignee(c.Actors.Watched) || c.Actors.Watched == domain.ActorUnassigned {
		return fmt.Errorf("config.actors.watched must name a known actor")
	}
	if (c.Notifications.Telegram.Token == "") != (c.Notifications.Telegram.ChatID == "") {
		return fmt.Errorf("config.notifications.telegram requires both token and chat_id")
	}
	for i, hook := range c.Notifications.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
	}
	return nil
}

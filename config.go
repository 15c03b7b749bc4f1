package discord

import (
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-yaml"
)

// Config contains configuration variables for the Bridge and its Adapter.
type Config struct {
	// CacheSize is the number of recent messages kept per channel.
	// Zero disables message caching, so edit and delete events carry no prior content.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// Intents declares the Gateway Intents every connected bot requests.
	Intents discordgo.Intent `json:"intents" yaml:"intents"`

	// ConnectTimeout bounds the connection handshake.
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`

	// ActionTimeout bounds each outbound action such as sending a message or changing a role.
	ActionTimeout time.Duration `json:"action_timeout" yaml:"action_timeout"`

	// DirectChannelTTL is how long a resolved private channel is reused for a user.
	DirectChannelTTL time.Duration `json:"direct_channel_ttl" yaml:"direct_channel_ttl"`

	// HelpCommand is the command string that triggers help on the go-sarah Adapter.
	HelpCommand string `json:"help_command" yaml:"help_command"`

	// AbortCommand is the command string that triggers context cancellation on the go-sarah Adapter.
	AbortCommand string `json:"abort_command" yaml:"abort_command"`
}

// NewConfig creates and returns a new Config instance with default settings.
func NewConfig() *Config {
	return &Config{
		CacheSize: 20,
		Intents: discordgo.IntentsGuilds |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsMessageContent,
		ConnectTimeout:   30 * time.Second,
		ActionTimeout:    15 * time.Second,
		DirectChannelTTL: time.Hour,
		HelpCommand:      ".help",
		AbortCommand:     ".abort",
	}
}

// LoadConfig reads a YAML file on top of NewConfig's defaults.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(buf, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if config.CacheSize < 0 {
		return nil, fmt.Errorf("%w: cache_size must be non-negative, got %d", ErrInvalidArgument, config.CacheSize)
	}

	return config, nil
}

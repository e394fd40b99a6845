package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Backend mode selection values.
const (
	ModeAuto   = "auto"   // Prefer remote when authenticated, else native
	ModeNative = "native" // Always control the local player app
	ModeRemote = "remote" // Always use the Spotify Web API
)

// Config holds application configuration
type Config struct {
	// Backend selection mode: auto, native, or remote
	Mode string

	// Which local player app the native backend controls: spotify or music
	Player string

	// Command used to launch the coding assistant in wrap mode
	AssistantCommand string

	// Idle timeout in milliseconds before typing inactivity pauses playback
	IdleTimeoutMS int

	// Spotify API credentials
	Spotify SpotifyConfig
}

// SpotifyConfig holds Spotify specific configuration
type SpotifyConfig struct {
	ClientID string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("mode", ModeAuto)
	v.SetDefault("player", "spotify")
	v.SetDefault("assistant_command", "claude")
	v.SetDefault("idle_timeout_ms", 6000)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	v.SetEnvPrefix("SIDETRACK")
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		Mode:             v.GetString("mode"),
		Player:           v.GetString("player"),
		AssistantCommand: v.GetString("assistant_command"),
		IdleTimeoutMS:    v.GetInt("idle_timeout_ms"),
		Spotify: SpotifyConfig{
			ClientID: v.GetString("spotify.client_id"),
		},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "sidetrack")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the data directory used for daemon state and the
// playback history database. Creates the directory if it doesn't exist.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "sidetrack")
	_ = os.MkdirAll(dataDir, 0755)

	return dataDir
}

// TokenPath returns the path of the persisted delegated-authorization token.
func TokenPath() string {
	return filepath.Join(getConfigDir(), "token.json")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("mode", c.Mode)
	v.Set("player", c.Player)
	v.Set("assistant_command", c.AssistantCommand)
	v.Set("idle_timeout_ms", c.IdleTimeoutMS)
	v.Set("spotify.client_id", c.Spotify.ClientID)

	// Write to file
	return v.WriteConfigAs(configFile)
}

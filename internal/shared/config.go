package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// The file doubles as the token store: access tokens and the selected device are written back into it.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Playback    PlaybackConfig    `toml:"playback"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted session.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// PlaybackConfig holds the playback device. An empty DeviceID means "auto-select the first device".
type PlaybackConfig struct {
	DeviceID string `toml:"device_id"`
}

// AuthConfig controls the authorization flow.
type AuthConfig struct {
	// PersistRefreshToken writes the refresh token next to the access token so the session survives restarts.
	// When false only the access token is stored and the first expiry after a restart forces a new login.
	PersistRefreshToken    bool `toml:"persist_refresh_token"`
	TimeoutSeconds         int  `toml:"timeout_seconds"`
	RefreshIntervalSeconds int  `toml:"refresh_interval_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Timeout returns the authorization timeout, falling back to 30 seconds.
func (a AuthConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the refresh timer interval, falling back to 3500 seconds.
func (a AuthConfig) RefreshInterval() time.Duration {
	if a.RefreshIntervalSeconds <= 0 {
		return 3500 * time.Second
	}
	return time.Duration(a.RefreshIntervalSeconds) * time.Second
}

// PlaybackSettings is the durable state the player needs between runs.
type PlaybackSettings struct {
	ClientID     string
	ClientSecret string
	DeviceID     string
	AccessToken  string
}

// Settings returns a snapshot of the playback settings held in c.
func (c *Config) Settings() PlaybackSettings {
	return PlaybackSettings{
		ClientID:     c.Credentials.Spotify.ClientID,
		ClientSecret: c.Credentials.Spotify.ClientSecret,
		DeviceID:     c.Playback.DeviceID,
		AccessToken:  c.Credentials.Spotify.AccessToken,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values in the file override the embedded defaults; keys missing from the file keep their default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// EncodeConfig renders config as canonical TOML.
func EncodeConfig(config *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveConfig atomically replaces the file at path with the canonical encoding of config.
func SaveConfig(path string, config *Config) error {
	data, err := EncodeConfig(config)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to restrict config permissions: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigStore owns a [Config] and writes every mutation back to disk.
//
// An empty path keeps the store in memory.
type ConfigStore struct {
	mu     sync.Mutex
	path   string
	config *Config
}

// NewConfigStore wraps config; mutations are persisted to path.
func NewConfigStore(path string, config *Config) *ConfigStore {
	if config == nil {
		config = DefaultConfig()
	}
	return &ConfigStore{path: path, config: config}
}

// OpenConfigStore loads the config at path, or starts from defaults when the file does not exist yet.
func OpenConfigStore(path string) (*ConfigStore, error) {
	if _, err := os.Stat(path); err != nil {
		return NewConfigStore(path, nil), nil
	}

	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewConfigStore(path, config), nil
}

// Path returns the backing file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// Config returns a copy of the current configuration.
func (s *ConfigStore) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.config
}

// Settings returns the current [PlaybackSettings] snapshot.
func (s *ConfigStore) Settings() PlaybackSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Settings()
}

// Update applies fn to the configuration and persists the result.
func (s *ConfigStore) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.config)
	if s.path == "" {
		return nil
	}
	return SaveConfig(s.path, s.config)
}

// SaveDevice persists the selected playback device.
func (s *ConfigStore) SaveDevice(deviceID string) error {
	return s.Update(func(c *Config) {
		c.Playback.DeviceID = deviceID
	})
}

// SaveTokens persists the session tokens.
//
// The refresh token is only written when [AuthConfig.PersistRefreshToken] is set.
func (s *ConfigStore) SaveTokens(accessToken, refreshToken string) error {
	return s.Update(func(c *Config) {
		c.Credentials.Spotify.AccessToken = accessToken
		if c.Auth.PersistRefreshToken {
			c.Credentials.Spotify.RefreshToken = refreshToken
		} else {
			c.Credentials.Spotify.RefreshToken = ""
		}
	})
}

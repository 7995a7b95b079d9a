// Package config loads the viewer configuration from built-in defaults, an
// optional YAML file and VIEWER_* environment variables, in that order.
// Command-line flags are applied on top by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/signaling"
	"github.com/rescp17/intrusionViewer/pkg/transfer"
)

const (
	appDirName     = "intrusionviewer"
	configFileName = "config.yaml"
	// EnvPrefix is the prefix of every environment variable the viewer reads.
	EnvPrefix = "VIEWER"
)

// Default public servers used for NAT traversal.
var (
	DefaultSTUNServers = []string{
		"stun:stun.l.google.com:19302",
		"stun:stun.relay.metered.ca:80",
	}
	DefaultTURNServers = []string{
		"turn:global.relay.metered.ca:80",
		"turn:global.relay.metered.ca:80?transport=tcp",
		"turn:global.relay.metered.ca:443",
		"turns:global.relay.metered.ca:443?transport=tcp",
	}
)

var validate = validator.New()

type Config struct {
	SignalURL     string         `yaml:"signal_url" envconfig:"SIGNAL_URL" validate:"required,url"`
	Identity      string         `yaml:"identity" envconfig:"IDENTITY" validate:"required"`
	ICEServers    []string       `yaml:"ice_servers" envconfig:"ICE_SERVERS" validate:"dive,required"`
	TURN          TURNConfig     `yaml:"turn" envconfig:"TURN"`
	DefaultAmount int            `yaml:"default_amount" envconfig:"DEFAULT_AMOUNT" validate:"min=1,max=1000"`
	SaveDir       string         `yaml:"save_dir" envconfig:"SAVE_DIR" validate:"required"`
	PlayerDir     string         `yaml:"player_dir" envconfig:"PLAYER_DIR" validate:"required"`
	PlayerCommand string         `yaml:"player_command" envconfig:"PLAYER_COMMAND"`
	Transfer      TransferConfig `yaml:"transfer" envconfig:"TRANSFER"`
	Live          LiveConfig     `yaml:"live" envconfig:"LIVE"`
	Relay         RelayConfig    `yaml:"relay" envconfig:"RELAY"`
	LogLevel      string         `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// TURNConfig holds relay servers and the credentials shared by all of them.
// TURN servers are only used when both credentials are set.
type TURNConfig struct {
	URLs       []string `yaml:"urls" envconfig:"URLS" validate:"dive,required"`
	Username   string   `yaml:"username" envconfig:"USERNAME"`
	Credential string   `yaml:"credential" envconfig:"CREDENTIAL"`
}

type TransferConfig struct {
	StallTimeout time.Duration `yaml:"stall_timeout" envconfig:"STALL_TIMEOUT" validate:"min=0"`
	MaxClipBytes int64         `yaml:"max_clip_bytes" envconfig:"MAX_CLIP_BYTES" validate:"min=1"`
}

// LiveConfig controls what happens to the live video track.
// An empty RecordPath discards the media after reading it.
type LiveConfig struct {
	RecordPath string `yaml:"record_path" envconfig:"RECORD_PATH"`
}

type RelayConfig struct {
	Listen   string `yaml:"listen" envconfig:"LISTEN" validate:"required,hostname_port"`
	Announce bool   `yaml:"announce" envconfig:"ANNOUNCE"`
}

// ICEServer is one STUN or TURN entry ready for the peer connection.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Default returns the built-in configuration.
func Default() Config {
	videos := filepath.Join(userDir(), "Videos", "intrusions")
	return Config{
		SignalURL:     "ws://localhost:8765/ws",
		Identity:      signaling.ViewerID,
		ICEServers:    append([]string(nil), DefaultSTUNServers...),
		TURN:          TURNConfig{URLs: append([]string(nil), DefaultTURNServers...)},
		DefaultAmount: transfer.DefaultAmount,
		SaveDir:       videos,
		PlayerDir:     filepath.Join(os.TempDir(), appDirName, "players"),
		Transfer: TransferConfig{
			StallTimeout: transfer.DefaultStallTimeout,
			MaxClipBytes: transfer.DefaultMaxClipBytes,
		},
		Relay: RelayConfig{
			Listen:   ":8765",
			Announce: true,
		},
		LogLevel: "info",
	}
}

func userDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// DefaultPath returns the config file location, honouring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName, configFileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path means DefaultPath, which may be missing; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, fmt.Errorf("failed to locate config file: %w", err)
		}
		path = p
	}
	if err := cfg.LoadFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path; keys absent from the file keep their value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays VIEWER_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	c.SaveDir = util.ExpandHome(c.SaveDir)
	c.PlayerDir = util.ExpandHome(c.PlayerDir)
	c.Live.RecordPath = util.ExpandHome(c.Live.RecordPath)

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !strings.HasPrefix(c.SignalURL, "ws://") && !strings.HasPrefix(c.SignalURL, "wss://") {
		return fmt.Errorf("invalid configuration: signal_url must use ws:// or wss://, got %q", c.SignalURL)
	}
	for _, u := range c.ICEServers {
		if !hasScheme(u, "stun:", "stuns:", "turn:", "turns:") {
			return fmt.Errorf("invalid configuration: ice server %q is not a stun or turn url", u)
		}
	}
	for _, u := range c.TURN.URLs {
		if !hasScheme(u, "turn:", "turns:") {
			return fmt.Errorf("invalid configuration: turn server %q is not a turn url", u)
		}
	}
	if (c.TURN.Username == "") != (c.TURN.Credential == "") {
		return errors.New("invalid configuration: turn username and credential must be set together")
	}
	if c.SaveDir == c.PlayerDir {
		return errors.New("invalid configuration: save_dir and player_dir must differ")
	}
	return c.TransferSettings().Validate()
}

func hasScheme(u string, schemes ...string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(u, s) {
			return true
		}
	}
	return false
}

// ICEServerList returns the STUN servers plus, when credentials are set, the TURN servers.
func (c Config) ICEServerList() []ICEServer {
	servers := make([]ICEServer, 0, len(c.ICEServers)+len(c.TURN.URLs))
	for _, u := range c.ICEServers {
		servers = append(servers, ICEServer{URLs: []string{u}})
	}
	if c.TURN.Username == "" || c.TURN.Credential == "" {
		return servers
	}
	for _, u := range c.TURN.URLs {
		servers = append(servers, ICEServer{URLs: []string{u}, Username: c.TURN.Username, Credential: c.TURN.Credential})
	}
	return servers
}

// TransferSettings returns the transfer manager configuration.
func (c Config) TransferSettings() transfer.Config {
	tc := transfer.DefaultConfig()
	tc.DefaultAmount = c.DefaultAmount
	tc.StallTimeout = c.Transfer.StallTimeout
	tc.MaxClipBytes = c.Transfer.MaxClipBytes
	return tc
}

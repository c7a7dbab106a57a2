package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const DefaultConfigFile = "sppark.json"

// LinkKind selects how frames reach the arm.
type LinkKind string

const (
	// LinkSerial talks to the controller board's line protocol.
	LinkSerial LinkKind = "serial"
	// LinkServoBus writes frames straight to Feetech bus servos.
	LinkServoBus LinkKind = "servobus"
)

// Defaults for a fresh configuration.
const (
	DefaultBaudRate       = 115200
	DefaultStateFile      = "sppark-state.json"
	DefaultTriggerPattern = `(?i)\b(TRIGGER|SENSOR|OBJ|OBJECT)\b`
	DefaultHelloCommand   = "show"
)

// Config holds the console configuration
type Config struct {
	Port           string      `json:"port" mapstructure:"port"`
	BaudRate       int         `json:"baud_rate" mapstructure:"baud_rate"`
	Link           LinkKind    `json:"link" mapstructure:"link"`
	StateFile      string      `json:"state_file" mapstructure:"state_file"`
	TriggerPattern string      `json:"trigger_pattern" mapstructure:"trigger_pattern"`
	HelloCommand   string      `json:"hello_command" mapstructure:"hello_command"`
	LogLevel       string      `json:"log_level,omitempty" mapstructure:"log_level"`
	Calibration    Calibration `json:"calibration,omitempty" mapstructure:"calibration"`
}

// DefaultConfig returns a configuration with every default applied and no
// port selected.
func DefaultConfig() *Config {
	return &Config{
		BaudRate:       DefaultBaudRate,
		Link:           LinkSerial,
		StateFile:      DefaultStateFile,
		TriggerPattern: DefaultTriggerPattern,
		HelloCommand:   DefaultHelloCommand,
		LogLevel:       "info",
	}
}

// IsConfigured returns true if a port has been selected
func (c *Config) IsConfigured() bool {
	return c.Port != ""
}

// Validate checks fields that have no usable default.
func (c *Config) Validate() error {
	switch c.Link {
	case LinkSerial, LinkServoBus:
	default:
		return fmt.Errorf("link %q: want %q or %q", c.Link, LinkSerial, LinkServoBus)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Every key can
// be overridden from the environment with an SPPARK_ prefix, e.g.
// SPPARK_PORT=/dev/ttyUSB0.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("SPPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("port", def.Port)
	v.SetDefault("baud_rate", def.BaudRate)
	v.SetDefault("link", string(def.Link))
	v.SetDefault("state_file", def.StateFile)
	v.SetDefault("trigger_pattern", def.TriggerPattern)
	v.SetDefault("hello_command", def.HelloCommand)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	return ConfigExistsAt(DefaultConfigFile)
}

// ConfigExistsAt returns true if a config file exists at path
func ConfigExistsAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

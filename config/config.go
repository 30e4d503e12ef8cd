package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TomlDuration lets durations be written as "30s" in the config file
type TomlDuration struct {
	time.Duration
}

func (d *TomlDuration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// TomlClient configures the subscription client
type TomlClient struct {
	ServerUrl      string       `toml:"server_url"`
	Timeout        TomlDuration `toml:"timeout"`
	GenericError   string       `toml:"generic_error"`
	WorkingMessage string       `toml:"working_message"`
}

// TomlServer configures the reference subscription service
type TomlServer struct {
	Listen         string       `toml:"listen"`
	Database       string       `toml:"database"`
	ResolveTimeout TomlDuration `toml:"resolve_timeout"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	LogLevel string     `toml:"log_level"`
	Client   TomlClient `toml:"client"`
	Server   TomlServer `toml:"server"`
}

func Default() *TomlConfig {
	return &TomlConfig{
		LogLevel: "info",
		Client: TomlClient{
			ServerUrl:      "http://localhost:3000",
			Timeout:        TomlDuration{60 * time.Second},
			GenericError:   "Something went wrong.",
			WorkingMessage: "Working...",
		},
		Server: TomlServer{
			Listen:         ":3000",
			Database:       "ugly.db",
			ResolveTimeout: TomlDuration{30 * time.Second},
		},
	}
}

// LoadConfig reads path on top of the defaults. Keys missing from the file
// keep their default value.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/resolving/chatsync/internal/chat"
)

// Load reads a YAML config file, expands ${ENV} references, and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, chat.ErrConfig("failed to read config file", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes a single YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, chat.ErrConfig("config file is empty", nil)
		}
		return nil, chat.ErrConfig("failed to parse config", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, chat.ErrConfig("expected a single config document", nil)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"regeval/logger"
	"regeval/tracking"
)

const DefaultPath = "config.yaml"

type Config struct {
	Tracking tracking.StoreConfig `yaml:"tracking"`
	Dataset  struct {
		Encoding string `yaml:"encoding"`
	} `yaml:"dataset"`
	Log logger.Config `yaml:"log"`
}

// Load decodes the YAML file at path. A missing file at DefaultPath yields the zero config,
// which every consumer fills with its own defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &config, nil
}

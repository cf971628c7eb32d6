package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/drallgood/bookfinder/internal/logger"
)

// LoadFromFile loads configuration from a YAML file.
// Fields missing from the file are left at their zero value.
func LoadFromFile(path string) (*Config, error) {
	log := logger.Get()

	if !filepath.IsAbs(path) {
		abspath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abspath
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	log.Debug("Reading config file", map[string]interface{}{
		"path":      path,
		"file_size": fileInfo.Size(),
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Error("Failed to unmarshal YAML config", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

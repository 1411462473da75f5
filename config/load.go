package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from the optional YAML file at path, then applies
// environment overrides. A missing file is not an error; the environment and
// defaults are enough to run.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if strings.TrimSpace(path) != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			if err := cleanenv.ReadEnv(cfg); err != nil {
				return nil, err
			}
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

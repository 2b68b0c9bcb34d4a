package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. Its absence is not an error.
const DefaultConfigFile = "docrepo.yaml"

// Config is the optional config file. Command line flags override it.
type Config struct {
	// Database is the SQLite file used by seed and query.
	Database string `yaml:"database"`

	// Specs is the CUE descriptor directory.
	Specs string `yaml:"specs"`

	Generate GenerateConfig `yaml:"generate"`
}

// GenerateConfig holds defaults for the generate command.
type GenerateConfig struct {
	Package string `yaml:"package"`
	Output  string `yaml:"output"`
}

// LoadConfig reads path, or DefaultConfigFile when path is empty. Relative
// paths inside the file are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.Database, &cfg.Specs, &cfg.Generate.Output} {
		if *p != "" && !filepath.IsAbs(*p) && *p != ":memory:" {
			*p = filepath.Join(base, *p)
		}
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the in-memory representation of ~/.catmatch/catmatch.yaml.
//
// Model backend settings are not stored here; they live in the environment or
// ~/.catmatch/.env because they may carry credentials.
type Config struct {
	Query        string   `yaml:"query,omitempty"`
	CandidateDir string   `yaml:"candidate_dir"`
	Output       string   `yaml:"output"`
	IndexDir     string   `yaml:"index_dir,omitempty"`
	Extensions   []string `yaml:"extensions,omitempty"`
}

// HomeDir returns the absolute path to catmatch's home directory.
// CATMATCH_HOME overrides the default ~/.catmatch.
func HomeDir() (string, error) {
	if v := os.Getenv("CATMATCH_HOME"); v != "" {
		return ExpandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".catmatch"), nil
}

// ConfigPath returns the absolute path to the default config file.
func ConfigPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "catmatch.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the Config used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		CandidateDir: "./handdrawn_cats",
		Output:       "match_result.csv",
		Extensions:   []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"},
	}
}

// Load reads and parses the config file at path. An empty path means the
// default location.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns DefaultConfig when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save marshals cfg and writes it to path (the default location when empty).
func Save(path string, cfg *Config) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.Query, &c.CandidateDir, &c.Output, &c.IndexDir} {
		v, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings are the appliance connection settings saved by `configure`.
type Settings struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	Protocol        string `yaml:"protocol"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	RefreshInterval int    `yaml:"refresh_interval"`
	Insecure        bool   `yaml:"insecure,omitempty"`
}

// DefaultSettings mirrors the defaults offered by the configure prompt.
func DefaultSettings() Settings {
	return Settings{
		Port:            "443",
		Protocol:        "https",
		RefreshInterval: 30,
	}
}

type document struct {
	Settings *Settings `yaml:"settings,omitempty"`
	MockMode *bool     `yaml:"mock_mode,omitempty"`
}

// Store persists settings and the mock-mode flag in a small YAML file.
// Missing files read as empty.
type Store struct {
	path string
}

// NewStore creates a Store at path, or at the default location when path is
// empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "settings.yaml")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// LoadSettings returns the saved settings, or nil if none were saved.
func (s *Store) LoadSettings() (*Settings, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Settings, nil
}

// SaveSettings replaces the saved settings.
func (s *Store) SaveSettings(settings Settings) error {
	return s.update(func(d *document) { d.Settings = &settings })
}

// LoadMockMode returns the saved mock-mode flag. It defaults to true when
// nothing was saved.
func (s *Store) LoadMockMode() (bool, error) {
	doc, err := s.read()
	if err != nil {
		return true, err
	}
	if doc.MockMode == nil {
		return true, nil
	}
	return *doc.MockMode, nil
}

// SaveMockMode stores the mock-mode flag.
func (s *Store) SaveMockMode(enabled bool) error {
	return s.update(func(d *document) { d.MockMode = &enabled })
}

func (s *Store) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) update(mutate func(*document)) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	mutate(&doc)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	// The file holds the appliance password.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

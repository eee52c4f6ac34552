// Package tomlfile stores preferences in a TOML file.
package tomlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcdev12/emdrtap/go/internal/prefs"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName    = "config"
	configType    = "toml"
	PathKey       = "preferences.path"
	fileMode      = 0o600
	dirMode       = 0o700
	configDir     = ".emdrtap"
	prefsFile     = "preferences.toml"
	tempPattern   = ".preferences-*.toml.tmp"
	schemaVersion = 1
)

type fileSchema struct {
	Version        int      `toml:"version"`
	SpeedSlider    *float64 `toml:"lastSpeedSliderValue,omitempty"`
	DurationPreset *int     `toml:"lastDurationPresetIndex,omitempty"`
	Icon           *int     `toml:"lastIconIndex,omitempty"`
}

type Store struct {
	path string
	mu   sync.RWMutex
}

var _ prefs.Store = (*Store)(nil)

// New resolves the preferences path from cfg, falling back to
// ~/.emdrtap/preferences.toml.
func New(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, configDir))
	cfg.SetDefault(PathKey, filepath.Join(homeDir, configDir, prefsFile))

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	path := cfg.GetString(PathKey)
	if path == "" {
		return nil, errors.New("preferences path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve preferences path: %w", err)
	}

	return &Store{path: filepath.Clean(abs)}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (prefs.Preferences, error) {
	if err := ctx.Err(); err != nil {
		return prefs.Preferences{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p := prefs.Defaults()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return prefs.Preferences{}, fmt.Errorf("read preferences file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return prefs.Preferences{}, fmt.Errorf("decode preferences file: %w", err)
	}
	if file.Version > schemaVersion {
		return prefs.Preferences{}, fmt.Errorf("preferences file version %d is newer than supported %d", file.Version, schemaVersion)
	}

	if file.SpeedSlider != nil {
		p.SpeedSlider = *file.SpeedSlider
	}
	if file.DurationPreset != nil {
		p.DurationPreset = *file.DurationPreset
	}
	if file.Icon != nil {
		p.Icon = *file.Icon
	}
	return p, nil
}

func (s *Store) Save(ctx context.Context, p prefs.Preferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file := fileSchema{
		Version:        schemaVersion,
		SpeedSlider:    &p.SpeedSlider,
		DurationPreset: &p.DurationPreset,
		Icon:           &p.Icon,
	}
	return s.write(file)
}

func (s *Store) write(file fileSchema) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode preferences file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp preferences file: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp preferences file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp preferences file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp preferences file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace preferences file: %w", err)
	}
	cleanup = false
	return nil
}

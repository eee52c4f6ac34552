package tomlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/emdrtap/go/internal/prefs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "preferences.toml")
	cfg := viper.New()
	cfg.Set(PathKey, path)

	s, err := New(cfg)
	require.NoError(t, err)
	return s, path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	p, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, prefs.Defaults(), p)
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	want := prefs.Preferences{SpeedSlider: 0.25, DurationPreset: 2, Icon: 5}
	require.NoError(t, s.Save(context.Background(), want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lastDurationPresetIndex = 2")
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("version = 1\nlastIconIndex = 3\n"), 0o600))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Icon)
	assert.Equal(t, prefs.Defaults().SpeedSlider, got.SpeedSlider)
}

func TestRejectsNewerSchema(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("version = 99\n"), 0o600))

	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, prefs.Defaults()), context.Canceled)
}

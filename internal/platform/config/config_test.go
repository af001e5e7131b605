package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 3, cfg.Game.CapacityA)
	assert.Equal(t, 5, cfg.Game.CapacityB)
	assert.Equal(t, 4, cfg.Game.Target)
	assert.Equal(t, 30, cfg.Game.TimeLimit)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	doc := `
game:
  capacity_a: 4
  capacity_b: 9
  target: 6
  time_limit: 45
countdown:
  interval: 250ms
  manual: true
tuning:
  profile: stress
  max_sessions: 10
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Game.CapacityB)
	assert.Equal(t, 250*time.Millisecond, cfg.Countdown.Interval)
	assert.True(t, cfg.Countdown.Manual)
	assert.True(t, cfg.Game.StrictSolvability, "untouched keys keep their default")
	assert.Equal(t, ProfileStress, cfg.Tuning.Profile)
	assert.Equal(t, 8192, cfg.Tuning.EventChannelBuffer)
	assert.Equal(t, 10, cfg.Tuning.MaxSessions)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  target: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Target")
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tuning:\n  profile: turbo\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := Default()
	cfg.Game.TimeLimit = 90
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Game.TimeLimit)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, Save(path, Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c Config) {
			select {
			case changes <- c:
			default:
			}
		}, nil)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := Default()
	updated.Game.Target = 2
	require.NoError(t, Save(path, updated))

	select {
	case c := <-changes:
		assert.Equal(t, 2, c.Game.Target)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

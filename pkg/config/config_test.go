//go:build unit || !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, uint16(8000), cfg.API.Port)
	assert.Equal(t, "boltdb", cfg.Store.Type)
	assert.Equal(t, 4, cfg.Orchestrator.Workers)
	assert.True(t, cfg.Backends.Simulator.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Orchestrator.RunTimeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `api:
  port: 9999
store:
  type: inmemory
orchestrator:
  workers: 2
  run_timeout: 1h
backends:
  ionq:
    enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, uint16(9999), cfg.API.Port)
	assert.Equal(t, "inmemory", cfg.Store.Type)
	assert.Equal(t, 2, cfg.Orchestrator.Workers)
	assert.Equal(t, time.Hour, cfg.Orchestrator.RunTimeout)
	assert.False(t, cfg.Backends.IonQ.Enabled)
	// unset keys keep their defaults
	assert.True(t, cfg.Backends.IBM.Enabled)
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
}

func TestLoadEmptyPathReadsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("api:\n  port: 9123\n"), 0600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint16(9123), cfg.API.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("QUBI_API_PORT", "7001")
	t.Setenv("QUBI_STORE_PATH", "/tmp/other.db")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, uint16(7001), cfg.API.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
}

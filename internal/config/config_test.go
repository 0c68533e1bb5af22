// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linhash.yaml")
	contents := "path: /tmp/custom.db\nkeysize: 16\nvalsize: 32\nlock: false\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Config{Path: "/tmp/custom.db", KeySize: 16, ValSize: 32, Lock: false}, cfg)
}

func TestLoad_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("LINHASH_PATH", "/tmp/from-env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env.db", cfg.Path)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

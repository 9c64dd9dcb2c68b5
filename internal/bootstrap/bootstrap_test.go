package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.toml")
	content := `
token = "secret-token"
license = "LIC-1"
engine_address = "10.0.0.5:8100"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, "LIC-1", cfg.License)
	assert.Equal(t, "10.0.0.5:8100", cfg.EngineAddress)
	assert.Equal(t, ":10001", cfg.CommandAddress, "unspecified fields keep their default")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  path: catalog.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/state.json", cfg.Storage.StatePath)
	assert.Equal(t, "data/storefront.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 5, cfg.Playback.MaxFreePlays)
	assert.Equal(t, 70, cfg.Playback.DefaultVolume)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.SpotifyEnabled())
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
storage:
  state_path: /tmp/state.json
  database_path: /tmp/orders.db
catalog:
  path: /etc/numba/catalog.yaml
playback:
  max_free_plays: 3
  default_volume: 50
spotify:
  client_id: id
  client_secret: secret
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/tmp/state.json", cfg.Storage.StatePath)
	assert.Equal(t, 3, cfg.Playback.MaxFreePlays)
	assert.Equal(t, 50, cfg.Playback.DefaultVolume)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("SERVER_ADDR", ":7070")

	path := writeConfig(t, `
catalog:
  path: catalog.yaml
spotify:
  client_id: file-id
  client_secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "max free plays out of range",
			content: `
catalog:
  path: catalog.yaml
playback:
  max_free_plays: -1
`,
			errMsg: "MaxFreePlays",
		},
		{
			name: "volume above 100",
			content: `
catalog:
  path: catalog.yaml
playback:
  default_volume: 150
`,
			errMsg: "DefaultVolume",
		},
		{
			name: "unknown log level",
			content: `
catalog:
  path: catalog.yaml
logging:
  level: loud
`,
			errMsg: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg,
				"error message should mention the problematic field")
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engraver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
feed:
  location: https://shop.example/orders.csv
  format: delimited
db:
  path: /var/lib/engraver/orders.db
paths:
  templates: /srv/templates
  assets: /srv/assets
  workdir: /tmp/engraver
renderer:
  command: lightburn
  args: ["--headless"]
  timeout: 90s
  settle_delay: 500ms
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/orders.csv", cfg.Feed.Location)
	assert.Equal(t, "delimited", cfg.Feed.Format)
	assert.Equal(t, "/var/lib/engraver/orders.db", cfg.DB.Path)
	assert.Equal(t, "/srv/templates", cfg.Paths.Templates)
	assert.Equal(t, "lightburn", cfg.Renderer.Command)
	assert.Equal(t, []string{"--headless"}, cfg.Renderer.Args)
	assert.Equal(t, 90*time.Second, cfg.Renderer.Timeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Renderer.SettleDelay.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_AbsentFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
feed:
  location: orders.csv
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "engraver.db", cfg.DB.Path)
	assert.Equal(t, "templates", cfg.Paths.Templates)
	assert.Equal(t, 2*time.Minute, cfg.Renderer.Timeout.Std())
	assert.Equal(t, 200*time.Millisecond, cfg.Renderer.SettleDelay.Std())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Feed.Format, "format absent means infer from the feed")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
feed:
  location: orders.csv
  fromat: delimited
`)

	_, err := Load(path)
	require.Error(t, err, "a typo must fail loudly, not silently keep a default")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing feed location",
			content: "db:\n  path: x.db\n",
			wantErr: "feed.location is required",
		},
		{
			name:    "bad feed format",
			content: "feed:\n  location: orders.csv\n  format: excel\n",
			wantErr: "feed.format",
		},
		{
			name:    "bad log level",
			content: "feed:\n  location: orders.csv\nlog:\n  level: loud\n",
			wantErr: "log.level",
		},
		{
			name:    "bad duration",
			content: "feed:\n  location: orders.csv\nrenderer:\n  timeout: ninety\n",
			wantErr: "invalid duration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")

	cfg, err := Parse(nil)

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url: https://api.example.com
timeout: 3s
token: secret
push_url: wss://push.example.com/ws
journal_path: /var/lib/repsync/journal.db
metrics_addr: 127.0.0.1:9090
dedup:
  key_window: 2s
  content_window: 500ms
`))

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout.Std())
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "wss://push.example.com/ws", cfg.PushURL)
	assert.Equal(t, "/var/lib/repsync/journal.db", cfg.JournalPath)
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	assert.Equal(t, 2*time.Second, cfg.Dedup.KeyWindow.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Dedup.ContentWindow.Std())
}

func TestParse_TokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	cfg, err := Parse([]byte("base_url: http://localhost:9000\n"))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestParse_FileTokenWinsOverEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	cfg, err := Parse([]byte("token: from-file\n"))

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Token)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("base_urll: http://x\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_urll")
}

func TestParse_RejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("timeout: soon\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestValidate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"base url scheme", func(c *Config) { c.BaseURL = "ftp://example.com" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout_ms"},
		{"push url scheme", func(c *Config) { c.PushURL = "http://example.com" }, "push_url"},
		{"metrics addr without port", func(c *Config) { c.MetricsAddr = "localhost" }, "metrics_addr"},
		{"negative window", func(c *Config) { c.Dedup.KeyWindow = Duration(-time.Second) }, "key_window_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Details, tt.field)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://10.0.0.2:8080\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8080", cfg.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDuration_MarshalYAML(t *testing.T) {
	v, err := Duration(1500 * time.Millisecond).MarshalYAML()

	require.NoError(t, err)
	assert.Equal(t, "1.5s", v)
}

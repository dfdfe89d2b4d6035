package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"whisperchat/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "!", cfg.PublicPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, time.Minute, cfg.Sessions.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Groups.Lifetime)
	assert.Equal(t, config.AuditNone, cfg.Audit.Mode)
	assert.Equal(t, 72*time.Hour, cfg.Server.TokenTTL)
	assert.Empty(t, cfg.Server.AdminToken)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, config.DefaultPublicPrefix, cfg.PublicPrefix)
	assert.Equal(t, config.DefaultWordListPath, cfg.Groups.WordList.Path)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
public_prefix: "#"
sessions:
  ttl: 10m
  sweep_interval: 15s
groups:
  lifetime: 2h
  wordlist:
    path: words.txt
formats:
  dm: "{sender} > {receiver}: {message}"
messages:
  dm-start: "Now talking to {target}"
`)

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "#", cfg.PublicPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 15*time.Second, cfg.Sessions.SweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.Groups.Lifetime)
	assert.Equal(t, "words.txt", cfg.Groups.WordList.Path)
	// Untouched nested fields keep their defaults.
	assert.Equal(t, config.DefaultWordListURL, cfg.Groups.WordList.URL)
	assert.Equal(t, "{sender} > {receiver}: {message}", cfg.Formats["dm"])
	assert.Equal(t, "Now talking to {target}", cfg.Messages["dm-start"])
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "sessions:\n  ttl: 10m\n")
	t.Setenv("WHISPER_SESSIONS_TTL", "45m")
	t.Setenv("WHISPER_PUBLIC_PREFIX", ">>")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, ">>", cfg.PublicPrefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "empty prefix", mutate: func(c *config.Config) { c.PublicPrefix = "" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *config.Config) { c.Sessions.TTL = 0 }, wantErr: true},
		{name: "unknown audit mode", mutate: func(c *config.Config) { c.Audit.Mode = "syslog" }, wantErr: true},
		{name: "unknown audit kind", mutate: func(c *config.Config) { c.Audit.Kinds = []string{"shout"} }, wantErr: true},
		{name: "file mode without dir", mutate: func(c *config.Config) {
			c.Audit.Mode = config.AuditFile
			c.Audit.Dir = ""
		}, wantErr: true},
		{name: "database mode without dsn", mutate: func(c *config.Config) { c.Audit.Mode = config.AuditDatabase }, wantErr: true},
		{name: "redis mode with both", mutate: func(c *config.Config) {
			c.Audit.Mode = config.AuditRedis
			c.Database.DSN = "host=localhost"
			c.Redis.Addr = "localhost:6379"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("listen", ":8080", "")
	cmd.Flags().String("data-dir", "./data", "")
	cmd.Flags().String("log-level", "info", "")
	cmd.Flags().String("log-file", "", "")
	return cmd
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BUCKETVIEW_AUTH_JWT_SECRET", "test-jwt-secret")
	t.Setenv("BUCKETVIEW_AUTH_ENCRYPTION_KEY", "test-encryption-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(newTestCommand())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EnableTLS)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, 5, cfg.Auth.LoginMaxAttempts)
	assert.Equal(t, 3600, cfg.Auth.LoginWindowSeconds)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BUCKETVIEW_LISTEN", ":9090")
	t.Setenv("BUCKETVIEW_AUTH_TOKEN_TTL_MINUTES", "15")

	cfg, err := Load(newTestCommand())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 15, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, "test-jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "test-encryption-key", cfg.Auth.EncryptionKey)
}

func TestLoadFromFlags(t *testing.T) {
	setRequiredEnv(t)

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("listen", ":7070"))
	require.NoError(t, cmd.Flags().Set("data-dir", "/var/lib/bucketview"))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "/var/lib/bucketview", cfg.DataDir)
}

func TestLoadFromConfigFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":6060"
log_level: debug
auth:
  token_ttl_minutes: 30
`), 0o644))

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", path))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.Auth.TokenTTLMinutes)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("BUCKETVIEW_AUTH_JWT_SECRET", "")
	t.Setenv("BUCKETVIEW_AUTH_ENCRYPTION_KEY", "")

	_, err := Load(newTestCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadRequiresTLSFiles(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BUCKETVIEW_ENABLE_TLS", "true")

	_, err := Load(newTestCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file")
}

func TestLoadMissingConfigFile(t *testing.T) {
	setRequiredEnv(t)

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", "/nonexistent/config.yaml"))

	_, err := Load(cmd)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_DefaultsFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "WalletService", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 10*time.Second, cfg.Batch.RowTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, "disk", cfg.Assets.Backend)
	assert.True(t, cfg.IsDev())
}

func TestLoad_ProductionRequiresStores(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_ShortSecretRejected(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
app:
  env: local
server:
  port: ":9090"
auth:
  jwt_secret: "` + testSecret + `"
batch:
  max_rows: 10
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 10, cfg.Batch.MaxRows)
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	cfg := Config{
		App:    AppConfig{Env: "dev"},
		Auth:   AuthConfig{JWTSecret: testSecret},
		Assets: AssetsConfig{Backend: "s3"},
		Batch:  BatchConfig{MaxRows: 1, RowTimeout: time.Second, ParseTimeout: time.Second},
	}
	require.Error(t, cfg.Validate())

	cfg.Assets.Bucket = "wallet-assets"
	require.NoError(t, cfg.Validate())
}

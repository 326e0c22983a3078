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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/uploads.db", cfg.Database.Path)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 200*time.Millisecond, cfg.Upload.ProgressInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AVATAR_STORAGE_BUCKET", "avatars")
	t.Setenv("AVATAR_STORAGE_REGION", "sa-east-1")
	t.Setenv("AVATAR_STORAGE_ACCESSKEYID", "AKIA")
	t.Setenv("AVATAR_STORAGE_SECRETACCESSKEY", "secret")
	t.Setenv("AVATAR_UPLOAD_PROGRESSINTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "avatars", cfg.Storage.Bucket)
	assert.Equal(t, "sa-east-1", cfg.Storage.Region)
	assert.Equal(t, "AKIA", cfg.Storage.AccessKeyID)
	assert.Equal(t, "secret", cfg.Storage.SecretAccessKey)
	assert.Equal(t, time.Second, cfg.Upload.ProgressInterval)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Storage.Region = "us-east-1"
	cfg.Upload.MaxBytes = 1
	assert.EqualError(t, cfg.Validate(), "storage bucket is required")

	cfg.Storage.Bucket = "avatars"
	cfg.Storage.AccessKeyID = "AKIA"
	assert.Error(t, cfg.Validate())

	cfg.Storage.SecretAccessKey = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Upload.MaxBytes = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nAVATAR_TEST_A=\"from-file\"\nAVATAR_TEST_B=from-file\ninvalid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("AVATAR_TEST_B", "from-env")
	t.Setenv("AVATAR_TEST_A", "")
	require.NoError(t, os.Unsetenv("AVATAR_TEST_A"))

	loadDotEnv(path)
	t.Cleanup(func() { _ = os.Unsetenv("AVATAR_TEST_A") })

	assert.Equal(t, "from-file", os.Getenv("AVATAR_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("AVATAR_TEST_B"))
}

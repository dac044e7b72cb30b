package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-value")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 10, cfg.MaxFilesPerUpload)
	assert.Equal(t, 3, cfg.DriveBatchSize)
	assert.Equal(t, time.Second, cfg.DriveBatchDelay)
	assert.True(t, cfg.AuthRequired)
	assert.False(t, cfg.CaptchaStrict)
	assert.False(t, cfg.B2Enabled())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-value")
	t.Setenv("DATABASE_DRIVER", "MONGO")
	t.Setenv("DRIVE_BATCH_SIZE", "5")
	t.Setenv("DRIVE_BATCH_DELAY", "250ms")
	t.Setenv("CAPTCHA_STRICT", "true")
	t.Setenv("B2_APPLICATION_KEY_ID", "key")
	t.Setenv("B2_APPLICATION_KEY", "secret")
	t.Setenv("B2_BUCKET_NAME", "bucket")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.DatabaseDriver)
	assert.Equal(t, 5, cfg.DriveBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.DriveBatchDelay)
	assert.True(t, cfg.CaptchaStrict)
	assert.True(t, cfg.B2Enabled())
}

func TestFromEnvErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {},
		"bad duration":    {"JWT_SECRET": "x", "DRIVE_BATCH_DELAY": "soon"},
		"bad int":         {"JWT_SECRET": "x", "MAX_FILE_SIZE": "ten"},
		"zero batch":      {"JWT_SECRET": "x", "DRIVE_BATCH_SIZE": "0"},
		"unknown driver":  {"JWT_SECRET": "x", "DATABASE_DRIVER": "oracle"},
		"half google cfg": {"JWT_SECRET": "x", "GOOGLE_CLIENT_ID": "id"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "[NOT SET]", maskSecret(""))
	assert.Equal(t, "[HIDDEN]", maskSecret("short"))
	assert.Equal(t, "abcd***6789", maskSecret("abcdef0123456789"))
	assert.Equal(t, "[CREDENTIALS_HIDDEN]@db:5432/app", maskConnectionString("postgres://u:p@db:5432/app"))
}

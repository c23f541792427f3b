package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.ReminderStore)
	assert.Equal(t, time.Minute, cfg.ReminderSweepInterval)
	assert.Equal(t, "not-going", cfg.DefaultRSVP)
	assert.Equal(t, "noop", cfg.Mailer.Provider)
	assert.Equal(t, "noop", cfg.Blob.Provider)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("REMINDER_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REGISTRATION_DEFAULT_RSVP", "going")
	t.Setenv("BLOB_PROVIDER", "s3")
	t.Setenv("S3_BUCKET", "images")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "redis", cfg.ReminderStore)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "going", cfg.DefaultRSVP)
	assert.Equal(t, "s3", cfg.Blob.Provider)
	assert.Equal(t, "images", cfg.Blob.S3Bucket)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "v", line["k"])
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_JSONOverDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server": {"port": "8080"},
		"reports": {"strict_coordinates": true, "custom_statuses": ["Escalated"]}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "uploads", cfg.Server.UploadsDir)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.True(t, cfg.Reports.StrictCoordinates)
	assert.Equal(t, []string{"Escalated"}, cfg.Reports.CustomStatuses)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "9090"
storage:
  driver: postgres
database:
  host: db
  dbname: reports
rabbitmq:
  enabled: true
auth:
  jwt_secret: s3cret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "host=db port=5432 user=postgres password= dbname=reports sslmode=disable", cfg.Database.DSN())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"server": {"port": "8080"}}`)
	t.Setenv("PORT", "7000")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.True(t, cfg.RabbitMQ.Enabled)
}

func TestLoadConfig_BadEnvBool(t *testing.T) {
	path := writeFile(t, "config.json", `{}`)
	t.Setenv("RABBITMQ_ENABLED", "sometimes")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_UnknownDriver(t *testing.T) {
	path := writeFile(t, "config.json", `{"storage": {"driver": "mongo"}}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"server":`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	for _, key := range []string{"PORT", "UPLOADS_DIR", "STORAGE_DRIVER", "REPORTS_FILE", "LOG_LEVEL",
		"JWT_SECRET", "DB_HOST", "DB_PASSWORD", "RABBITMQ_HOST", "RABBITMQ_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, found, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)
}

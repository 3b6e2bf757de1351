package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.HttpServer.Port)
	assert.Equal(t, 15*time.Second, cfg.HttpServer.TimeoutRead)
	assert.Equal(t, int64(8), cfg.HttpServer.MaxUploadMB)
	assert.Equal(t, "9090", cfg.GrpcServer.Port)
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, "inventorypro_products_v1", cfg.Store.Key)
	assert.Equal(t, "data/inventory.db", cfg.Store.BoltPath)
	assert.Equal(t, "exports", cfg.Inventory.ExportDir)
	assert.Equal(t, "json", cfg.Inventory.ExportFormat)
	assert.True(t, cfg.Inventory.RecomputeStatusOnAdjust)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("STORE_KEY", "custom_key")
	t.Setenv("RECOMPUTE_STATUS_ON_ADJUST", "false")
	t.Setenv("HTTP_SERVER_TIMEOUT_READ", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "custom_key", cfg.Store.Key)
	assert.False(t, cfg.Inventory.RecomputeStatusOnAdjust)
	assert.Equal(t, 3*time.Second, cfg.HttpServer.TimeoutRead)
}

func TestLoad_PostgresRequiresConnectionSettings(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_HOST", "localhost")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")

	t.Setenv("POSTGRES_USER", "inventory")
	t.Setenv("POSTGRES_DBNAME", "inventory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=inventory password= dbname=inventory sslmode=disable", cfg.Postgres.DSN())
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid STORE_BACKEND "redis"`)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("HTTP_SERVER_TIMEOUT_READ", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process configuration")
}

func TestValidate_EmptyKey(t *testing.T) {
	cfg := Config{Store: StoreConfig{Backend: BackendMemory}}
	assert.EqualError(t, cfg.Validate(), "STORE_KEY must not be empty")
}

func TestLoad_InvalidExportFormat(t *testing.T) {
	t.Setenv("EXPORT_FORMAT", "xlsx")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid EXPORT_FORMAT "xlsx"`)

	t.Setenv("EXPORT_FORMAT", "csv")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Inventory.ExportFormat)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Source)
	assert.Equal(t, "flight_weather.csv", cfg.CSVPath)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-flight-weather", cfg.KafkaTopic)
	assert.Equal(t, 10000, cfg.ChunkSize)
	assert.Equal(t, 1500, cfg.FlightBatchSize)
	assert.Equal(t, 1000, cfg.RankBatchSize)
	assert.Equal(t, 4, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 60*time.Second, cfg.GatePollInterval)
	assert.Equal(t, 30*time.Minute, cfg.GateTimeout)
	assert.Equal(t, 58*time.Minute, cfg.IngestInterval)
	assert.Equal(t, 2*time.Minute, cfg.ClassifyInterval)
	assert.Equal(t, int64(42), cfg.ClusterSeed)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("SOURCE", "kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-feed")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("RETRY_ATTEMPTS", "2")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("GATE_POLL_INTERVAL", "5s")
	t.Setenv("CLUSTER_SEED", "7")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DatabaseDSN)
	assert.Equal(t, "kafka", cfg.Source)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-feed", cfg.KafkaTopic)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.GatePollInterval)
	assert.Equal(t, int64(7), cfg.ClusterSeed)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_YAMLFileWithEnvWinning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "source: csv\ncsvPath: /data/extract.csv\nchunkSize: 2500\nlogLevel: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("CHUNK_SIZE", "123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/extract.csv", cfg.CSVPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Environment beats the file.
	assert.Equal(t, 123, cfg.ChunkSize)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"bad chunk size", "CHUNK_SIZE", "ten"},
		{"zero chunk size", "CHUNK_SIZE", "0"},
		{"bad retry delay", "RETRY_DELAY", "soon"},
		{"zero retry attempts", "RETRY_ATTEMPTS", "0"},
		{"bad gate poll", "GATE_POLL_INTERVAL", "-1s"},
		{"unknown source", "SOURCE", "ftp"},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_KafkaSourceRequiresTopic(t *testing.T) {
	t.Setenv("SOURCE", "kafka")
	t.Setenv("KAFKA_TOPIC", "")

	// Default topic applies, so this passes; clearing brokers must fail.
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "raw-flight-weather", cfg.KafkaTopic)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Second, cfg.OutboxPeriod)
	assert.Equal(t, 1000, cfg.MaxPageSize)
	assert.Empty(t, cfg.APIKeys)
	assert.False(t, cfg.UseKafka)
	assert.False(t, cfg.TrustForwardedProto)
	assert.Equal(t, HistoryPrimary, cfg.HistorySource)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("USE_KAFKA", "true")
	t.Setenv("OUTBOX_PERIOD", "250ms")
	t.Setenv("MAX_PAGE_SIZE", "50")
	t.Setenv("API_KEYS", "abc:1,def:2")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com")
	t.Setenv("TRUST_FORWARDED_PROTO", "true")
	t.Setenv("CLICKHOUSE_ADDR", "localhost:9000")
	t.Setenv("HISTORY_SOURCE", "ClickHouse")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.UseKafka)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPeriod)
	assert.Equal(t, 50, cfg.MaxPageSize)
	assert.Equal(t, map[string]int64{"abc": 1, "def": 2}, cfg.APIKeys)
	assert.Equal(t, "https://api.example.com", cfg.PublicBaseURL)
	assert.True(t, cfg.TrustForwardedProto)
	assert.Equal(t, HistoryClickHouse, cfg.HistorySource)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"unknown store":   {"STORE", "oracle"},
		"zero page size":  {"MAX_PAGE_SIZE", "0"},
		"api key no sep":  {"API_KEYS", "abc"},
		"api key account": {"API_KEYS", "abc:x"},
		"history source":  {"HISTORY_SOURCE", "replica"},
		"history no addr": {"HISTORY_SOURCE", "clickhouse"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}

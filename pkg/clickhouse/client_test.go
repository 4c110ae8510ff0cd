package clickhouse

import (
	"context"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsMapsSettings(t *testing.T) {
	cfg := &ClientConfig{Port: 8123, Database: "finvalue", User: "u", Password: "p"}
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithHTTP(true),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}

	o := options(cfg)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Equal(t, []string{"ch.local:8123"}, o.Addr)
	assert.Equal(t, "finvalue", o.Auth.Database)
	assert.Equal(t, 30, o.Settings["max_execution_time"])
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 1, o.Settings["wait_for_async_insert"])
}

func TestOptionsIgnoresEmptyOverrides(t *testing.T) {
	cfg := &ClientConfig{Port: 9000, Database: "default"}
	WithPort(0)(cfg)
	WithDatabase("")(cfg)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, ch.Native, options(cfg).Protocol)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}

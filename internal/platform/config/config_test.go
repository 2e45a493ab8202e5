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
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, BackendPostgres, cfg.Engine.LedgerBackend)
	assert.Equal(t, BackendPostgres, cfg.Engine.StoreBackend)
	assert.Equal(t, 3, cfg.Engine.TransitionMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Engine.ReserveTimeout)
	assert.Equal(t, time.Minute, cfg.Engine.SweepInterval)
	assert.Equal(t, "booking.lifecycle", cfg.RabbitMQ.Exchange)
	assert.True(t, cfg.NeedsDatabase())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENGINE_LEDGER_BACKEND", "Redis")
	t.Setenv("ENGINE_STORE_BACKEND", "memory")
	t.Setenv("ENGINE_RESERVE_TIMEOUT", "750ms")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Engine.LedgerBackend)
	assert.Equal(t, BackendMemory, cfg.Engine.StoreBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.ReserveTimeout)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr())
	assert.False(t, cfg.NeedsDatabase())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": ""},
			want: "JWT_SECRET is required",
		},
		{
			name: "unknown ledger",
			env:  map[string]string{"JWT_SECRET": "x", "ENGINE_LEDGER_BACKEND": "etcd"},
			want: `unknown ledger backend "etcd"`,
		},
		{
			name: "postgres ledger without postgres store",
			env:  map[string]string{"JWT_SECRET": "x", "ENGINE_STORE_BACKEND": "memory"},
			want: "postgres ledger requires the postgres store",
		},
		{
			name: "zero attempts",
			env:  map[string]string{"JWT_SECRET": "x", "ENGINE_TRANSITION_MAX_ATTEMPTS": "0"},
			want: "ENGINE_TRANSITION_MAX_ATTEMPTS must be >= 1",
		},
		{
			name: "bad port",
			env:  map[string]string{"JWT_SECRET": "x", "SERVER_PORT": "70000"},
			want: "invalid server port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nENGINE_MAX_PARTICIPANTS=12\n"), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 12, cfg.Engine.MaxParticipants)

	_, err = LoadWithPath(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{User: "app", Password: "pw", Host: "db", Port: 5432, DBName: "tours", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:pw@db:5432/tours?sslmode=disable", d.DSN())
}

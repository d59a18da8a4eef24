package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   PoolConfig
		want PoolConfig
	}{
		{
			name: "zero value",
			want: PoolConfig{
				MaxOpenConns:    defaultMaxOpenConns,
				MaxIdleConns:    defaultMaxOpenConns,
				ConnMaxLifetime: defaultConnMaxLifetime,
				ConnMaxIdleTime: defaultConnMaxIdleTime,
			},
		},
		{
			name: "idle capped by open",
			in:   PoolConfig{MaxOpenConns: 4, MaxIdleConns: 10, ConnMaxLifetime: time.Minute},
			want: PoolConfig{
				MaxOpenConns:    4,
				MaxIdleConns:    4,
				ConnMaxLifetime: time.Minute,
				ConnMaxIdleTime: defaultConnMaxIdleTime,
			},
		},
		{
			name: "explicit values kept",
			in:   PoolConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Second},
			want: PoolConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}

func TestOpen_RejectsMalformedDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "postgres://artcart@localhost:notaport/artcart")
	require.ErrorContains(t, err, "parse postgres dsn")
}

func TestOptions(t *testing.T) {
	t.Parallel()

	var o options
	for _, opt := range []Option{
		WithPool(PoolConfig{MaxOpenConns: 3}),
		WithApplicationName("artcart-storefront"),
	} {
		opt(&o)
	}
	require.Equal(t, 3, o.pool.MaxOpenConns)
	require.Equal(t, "artcart-storefront", o.appName)
}

func TestStore_NilIsClosed(t *testing.T) {
	t.Parallel()

	var store *Store
	require.ErrorIs(t, store.Ping(context.Background()), errStoreClosed)
	require.NoError(t, store.Close())
}

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashwinyue/next-linker/internal/config"
)

func TestOpen_Disabled(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Enabled: false}, false)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewPoolSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want poolSettings
	}{
		{
			name: "configured",
			cfg:  config.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 4, MaxLifetime: 300},
			want: poolSettings{maxOpen: 10, maxIdle: 4, lifetime: 5 * time.Minute},
		},
		{
			name: "idle clamped to open",
			cfg:  config.DatabaseConfig{MaxOpenConns: 2, MaxIdleConns: 5},
			want: poolSettings{maxOpen: 2, maxIdle: 2},
		},
		{
			name: "unset open",
			cfg:  config.DatabaseConfig{MaxIdleConns: -1},
			want: poolSettings{maxOpen: 25, maxIdle: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newPoolSettings(tt.cfg))
		})
	}
}

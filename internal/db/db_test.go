package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/config"
	"maintenance-backend/internal/model"
)

func TestInit_SQLiteMigrates(t *testing.T) {
	db, err := Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	for _, entity := range model.All() {
		assert.True(t, db.Migrator().HasTable(entity), "%T", entity)
	}
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestInit_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		msg  string
	}{
		{"missing dsn", config.DatabaseConfig{Driver: "postgres"}, "dsn is required"},
		{"unknown driver", config.DatabaseConfig{Driver: "oracle", DSN: "x"}, `unsupported database driver "oracle"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(&tt.cfg, nil)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

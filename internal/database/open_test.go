package database

import (
	"testing"

	"github.com/BaSui01/agentguard/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			d, err := Dialector(config.DatabaseConfig{Driver: driver, Name: "audit"})
			require.NoError(t, err)
			assert.Equal(t, driver, d.Name())
		})
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	pm, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	defer pm.Close()

	assert.Equal(t, 1, pm.GetStats().MaxOpenConnections)
	require.NoError(t, pm.Ping(t.Context()))
}

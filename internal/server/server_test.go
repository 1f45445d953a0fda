package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
)

func TestEngineConfigTranslation(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.IngestWorkers = 4
	cfg.Engine.IngestQueueSize = 64
	cfg.Engine.ReadDeadline = 250 * time.Millisecond
	cfg.Engine.ContextCharLimit = 2000
	cfg.Engine.MessageWindow = 5
	cfg.Engine.TurnWindow = 8

	engCfg := EngineConfig(cfg)
	assert.Equal(t, 4, engCfg.NumWorkers)
	assert.Equal(t, 64, engCfg.QueueSize)
	assert.Equal(t, 250*time.Millisecond, engCfg.ReadDeadline)
	assert.Equal(t, 2000, engCfg.ContextCharLimit)
	assert.Equal(t, 5, engCfg.MessageWindow)
	assert.Equal(t, 8, engCfg.TurnWindow)
}

func TestEngineConfigFillsDefaults(t *testing.T) {
	engCfg := EngineConfig(&config.Config{})
	assert.Equal(t, engine.DefaultConfig(), engCfg)
}

func TestOpenStoreRejectsUnknownEngine(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Engine = "cassandra"

	_, err := OpenStore(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Engine = "sqlite"
	cfg.Storage.DataPath = t.TempDir()

	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

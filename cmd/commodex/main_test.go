package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/commodex/internal/config"
)

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	t.Setenv("COMMODEX_ADMIN_ACCOUNT", "root")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})
	require.NoError(t, cmd.Execute())

	var cfg config.Config
	require.NoError(t, json.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, "root", cfg.AdminAccount)
	assert.Equal(t, "commodex", cfg.EngineAccount)
}

func TestOpenLedgerSeedsMemory(t *testing.T) {
	ctx := context.Background()
	l, db, err := openLedger(ctx, zap.NewNop(), config.LedgerConfig{Driver: "memory", Seed: map[string]uint64{"alice": 42}})
	require.NoError(t, err)
	assert.Nil(t, db)
	bal, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), bal)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 2, cfg.Blot.Players)
	assert.Equal(t, 301, cfg.Blot.MatchTarget)

	bb, err := cfg.Poker.BigBlindAmount()
	require.NoError(t, err)
	assert.Equal(t, "2", bb.String())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("room:\n  next_hand_delay: 250ms\npoker:\n  big_blind: \"0.5\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("CARDROOM_BLOT_MATCH_TARGET", "151")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Room.NextHandDelay)
	assert.Equal(t, 151, cfg.Blot.MatchTarget)
	bb, err := cfg.Poker.BigBlindAmount()
	require.NoError(t, err)
	assert.Equal(t, "0.5", bb.String())
}

func TestLoadConfig_BadBigBlind(t *testing.T) {
	t.Setenv("CARDROOM_POKER_BIG_BLIND", "two")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LZB-126/gold-miner/pkg/config"
)

func resetLogging(t *testing.T) {
	t.Helper()

	origLogger := log.Logger
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = origLogger
		zerolog.SetGlobalLevel(origLevel)
	})
}

func TestLogFlagsAreRegistered(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-json"))
}

func TestLogFlagsOverrideConfig(t *testing.T) {
	resetLogging(t)

	cfg = config.Config{}
	require.NoError(t, rootCmd.ParseFlags([]string{"--log-level", "debug", "--log-json"}))
	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestLogLevelFlagIsValidated(t *testing.T) {
	resetLogging(t)

	cfg = config.Config{}
	require.NoError(t, rootCmd.ParseFlags([]string{"--log-level", "loud"}))
	t.Cleanup(func() {
		require.NoError(t, rootCmd.PersistentFlags().Set("log-level", "info"))
	})

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()
	assert.Equal(t, "conductord", cmd.Use)

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "conductor.yaml", flag.DefValue)

	require.NotNil(t, cmd.Flags().Lookup("config-dir"))
	require.NotNil(t, cmd.Flags().Lookup("log-level"))
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error", "bogus"} {
		assert.NotNil(t, newLogger(level))
	}
}

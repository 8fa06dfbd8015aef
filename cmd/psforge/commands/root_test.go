package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "psforge", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "deploy")
	assert.Contains(t, names, "image")
	assert.Contains(t, names, "cleanup")
	assert.Contains(t, names, "version")
}

func TestDeployFlags(t *testing.T) {
	cmd := Deploy()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)

	for _, name := range []string{"region", "stack-name", "skip-images", "yes"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}

	skip := cmd.Flags().Lookup("skip-images")
	require.NotNil(t, skip)
	assert.Equal(t, "false", skip.DefValue)
}

func TestCleanupFlags(t *testing.T) {
	cmd := Cleanup()

	for _, name := range []string{"config", "region", "stack-name", "delete-images", "delete-keys", "force"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "2026-08-31")
	cmd := Version()

	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
	assert.Equal(t, "1.2.3", version)
}

package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/provisioning"
)

func TestImageRunsCoordinator(t *testing.T) {
	images, _, _, _ := stubDeployDeps(t)
	var gotSkip bool
	orig := newImageCoordinator
	newImageCoordinator = func(configPath string, skipImages bool) provisioning.Phase {
		gotSkip = skipImages
		return orig(configPath, skipImages)
	}

	require.NoError(t, Image(context.Background(), ""))
	assert.True(t, images.ran)
	assert.False(t, gotSkip, "image command always builds")
}

func TestImageCoordinatorFailure(t *testing.T) {
	images, _, _, _ := stubDeployDeps(t)
	images.err = errors.New("build instance unreachable")

	err := Image(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

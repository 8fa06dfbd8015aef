package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/provisioning/destroy"
)

type cleanupMock struct {
	ran  bool
	opts destroy.Options
	err  error
	cfg  *config.Config
}

func (m *cleanupMock) Provision(pctx *provisioning.Context) error {
	m.ran = true
	m.cfg = pctx.Config
	return m.err
}

func stubCleanupDeps(t *testing.T) *cleanupMock {
	t.Helper()

	origFind := findConfigFile
	origLoad := loadConfigFile
	origCloud := newCloudClient
	origStore := newObjectStore
	origDestroyer := newDestroyer
	origConfirm := confirmCleanup
	t.Cleanup(func() {
		findConfigFile = origFind
		loadConfigFile = origLoad
		newCloudClient = origCloud
		newObjectStore = origStore
		newDestroyer = origDestroyer
		confirmCleanup = origConfirm
	})

	findConfigFile = func(explicit string) (string, error) { return "psforge.yaml", nil }
	loadConfigFile = func(path string) (*config.Config, error) { return stubConfig(), nil }
	newCloudClient = func(_ context.Context, _ string, _ *config.Timeouts) (awsplatform.CloudManager, error) {
		return &awsplatform.MockClient{}, nil
	}
	newObjectStore = func(_ context.Context, _ string) (s3platform.ObjectStore, error) {
		return s3platform.NewMockStore(), nil
	}
	confirmCleanup = func(stackName string) (bool, error) { return true, nil }

	mock := &cleanupMock{}
	newDestroyer = func(opts destroy.Options) Provisioner {
		mock.opts = opts
		return mock
	}
	return mock
}

func TestCleanupRunsDestroyer(t *testing.T) {
	mock := stubCleanupDeps(t)

	require.NoError(t, Cleanup(context.Background(), CleanupOptions{Force: true}))
	assert.True(t, mock.ran)
	assert.False(t, mock.opts.DeleteImages)
	assert.False(t, mock.opts.DeleteKeys)
}

func TestCleanupPassesDeleteFlags(t *testing.T) {
	mock := stubCleanupDeps(t)

	opts := CleanupOptions{Force: true, DeleteImages: true, DeleteKeys: true}
	require.NoError(t, Cleanup(context.Background(), opts))
	assert.True(t, mock.opts.DeleteImages)
	assert.True(t, mock.opts.DeleteKeys)
}

func TestCleanupConfirmationDeclined(t *testing.T) {
	mock := stubCleanupDeps(t)
	confirmCleanup = func(stackName string) (bool, error) { return false, nil }

	require.NoError(t, Cleanup(context.Background(), CleanupOptions{}))
	assert.False(t, mock.ran, "declining the prompt must not destroy anything")
}

func TestCleanupForceSkipsConfirmation(t *testing.T) {
	mock := stubCleanupDeps(t)
	confirmCleanup = func(stackName string) (bool, error) {
		t.Fatal("confirmation must not be shown with --force")
		return false, nil
	}

	require.NoError(t, Cleanup(context.Background(), CleanupOptions{Force: true}))
	assert.True(t, mock.ran)
}

func TestCleanupOverrides(t *testing.T) {
	mock := stubCleanupDeps(t)

	opts := CleanupOptions{Force: true, Region: "us-west-2", StackName: "other-stack"}
	require.NoError(t, Cleanup(context.Background(), opts))

	require.NotNil(t, mock.cfg)
	assert.Equal(t, "us-west-2", mock.cfg.Region)
	assert.Equal(t, "other-stack", mock.cfg.StackName)
}

func TestCleanupPartialFailureSurfaces(t *testing.T) {
	mock := stubCleanupDeps(t)
	partial := &provisioning.TeardownPartialFailure{}
	partial.Add("stack", errors.New("DELETE_FAILED"))
	mock.err = partial

	err := Cleanup(context.Background(), CleanupOptions{Force: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup incomplete")
	assert.Contains(t, err.Error(), "stack")
}

package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

type fakeBuilder struct {
	role config.Role
	err  error
}

func (f *fakeBuilder) Build(ctx *provisioning.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	imageID := "ami-" + string(f.role)
	if err := ctx.State.SetImage(f.role, imageID); err != nil {
		return "", err
	}
	return imageID, nil
}

func coordinatorTestContext(t *testing.T, cloud *awsplatform.MockClient, store *s3platform.MockStore) (*provisioning.Context, string) {
	t.Helper()
	t.Chdir(t.TempDir())

	srcDir := filepath.Join(".", "source")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "deploy.sh"), []byte("#!/bin/sh\n"), 0o644))

	configPath := "psforge.yaml"
	require.NoError(t, os.WriteFile(configPath, []byte("stack_name: ps-test\n"), 0o644))

	cfg := &config.Config{
		Region:            "eu-west-1",
		StackName:         "ps-test",
		KeyPairName:       "ps-test-key",
		SourceDir:         srcDir,
		BaseImage:         "ami-base",
		BuildInstanceType: "t3.medium",
		SSHUser:           "ubuntu",
		Builds: map[string]config.BuildSpec{
			"signalling": {Script: "./provision.sh signalling"},
			"matchmaker": {Script: "./provision.sh matchmaker"},
			"frontend":   {Script: "./provision.sh frontend"},
		},
	}
	ctx := provisioning.NewContext(context.Background(), cfg, cloud, store)
	ctx.Timeouts = fastTimeouts()
	return ctx, configPath
}

func fakeBuilderFactory(failRole config.Role, failErr error) func(config.Role, string) roleBuilder {
	return func(role config.Role, script string) roleBuilder {
		if role == failRole {
			return &fakeBuilder{role: role, err: failErr}
		}
		return &fakeBuilder{role: role}
	}
}

func TestCoordinatorBuildsAllRoles(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	store := s3platform.NewMockStore()
	ctx, configPath := coordinatorTestContext(t, cloud, store)

	c := NewCoordinator(configPath, false)
	c.newBuilder = fakeBuilderFactory("", nil)

	require.NoError(t, c.Run(ctx))

	images := ctx.State.Images()
	require.Len(t, images, 3)
	for _, role := range config.Roles() {
		assert.Equal(t, "ami-"+string(role), images[role])
	}

	// Image IDs are written back for later skip-mode runs.
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ami-signalling")
	assert.Contains(t, string(data), "stack_name: ps-test")

	// Environment is gone after a successful run.
	assert.Contains(t, cloud.Calls, "DeleteSecurityGroup")
	assert.Contains(t, store.Calls, "DeleteBucket")
}

func TestCoordinatorTearsDownOnBuildFailure(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	store := s3platform.NewMockStore()
	ctx, configPath := coordinatorTestContext(t, cloud, store)

	c := NewCoordinator(configPath, false)
	c.newBuilder = fakeBuilderFactory(config.RoleMatchmaker, errors.New("provisioning script failed"))

	err := c.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image builds failed")

	// Sibling builds still completed.
	_, ok := ctx.State.Image(config.RoleSignalling)
	assert.True(t, ok)
	_, ok = ctx.State.Image(config.RoleFrontend)
	assert.True(t, ok)

	assert.Contains(t, cloud.Calls, "DeleteSecurityGroup")
	assert.Contains(t, cloud.Calls, "DeleteInstanceProfile")
	assert.Contains(t, store.Calls, "DeleteBucket")
}

func TestCoordinatorMissingBaseImageFailsBeforeCloud(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	store := s3platform.NewMockStore()
	ctx, configPath := coordinatorTestContext(t, cloud, store)
	ctx.Config.BaseImage = ""

	c := NewCoordinator(configPath, false)
	c.newBuilder = fakeBuilderFactory("", nil)

	err := c.Run(ctx)
	require.Error(t, err)

	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "base_image", cfgErr.Field)

	assert.Empty(t, cloud.Calls, "missing base image must fail before any cloud call")
	assert.Empty(t, store.Calls)
}

func TestCoordinatorMissingBuildInstanceTypeFailsBeforeCloud(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx, configPath := coordinatorTestContext(t, cloud, s3platform.NewMockStore())
	ctx.Config.BuildInstanceType = ""

	c := NewCoordinator(configPath, false)
	err := c.Run(ctx)
	require.Error(t, err)

	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "build_instance_type", cfgErr.Field)
	assert.Empty(t, cloud.Calls)
}

func TestCoordinatorSkipModeUsesConfiguredImages(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx, configPath := coordinatorTestContext(t, cloud, s3platform.NewMockStore())
	ctx.Config.Images = map[string]string{
		"signalling": "ami-s1",
		"matchmaker": "ami-m1",
		"frontend":   "ami-f1",
	}

	c := NewCoordinator(configPath, true)
	require.NoError(t, c.Run(ctx))

	images := ctx.State.Images()
	assert.Equal(t, "ami-s1", images[config.RoleSignalling])
	assert.Equal(t, "ami-m1", images[config.RoleMatchmaker])
	assert.Equal(t, "ami-f1", images[config.RoleFrontend])

	assert.Empty(t, cloud.Calls, "skip mode must not touch the cloud")
}

func TestCoordinatorSkipModeFallsBack(t *testing.T) {
	ctx, configPath := coordinatorTestContext(t, &awsplatform.MockClient{}, s3platform.NewMockStore())
	ctx.Config.Images = map[string]string{"signalling": "ami-s1"}
	ctx.Config.FallbackImages = map[string]string{
		"matchmaker": "ami-m-fallback",
		"frontend":   "ami-f-fallback",
	}

	c := NewCoordinator(configPath, true)
	require.NoError(t, c.Run(ctx))

	images := ctx.State.Images()
	assert.Equal(t, "ami-s1", images[config.RoleSignalling])
	assert.Equal(t, "ami-m-fallback", images[config.RoleMatchmaker])
}

func TestCoordinatorSkipModeMissingImage(t *testing.T) {
	ctx, configPath := coordinatorTestContext(t, &awsplatform.MockClient{}, s3platform.NewMockStore())
	ctx.Config.Images = map[string]string{"signalling": "ami-s1"}

	c := NewCoordinator(configPath, true)
	err := c.Run(ctx)
	require.Error(t, err)

	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "images.matchmaker", cfgErr.Field)
}

func TestCoordinatorWriteBackFailureIsSoft(t *testing.T) {
	ctx, _ := coordinatorTestContext(t, &awsplatform.MockClient{}, s3platform.NewMockStore())

	c := NewCoordinator("does-not-exist/psforge.yaml", false)
	c.newBuilder = fakeBuilderFactory("", nil)

	require.NoError(t, c.Run(ctx), "write-back failure must not fail the run")
	require.Len(t, ctx.State.SoftFailures(), 1)
	assert.Contains(t, ctx.State.SoftFailures()[0], "written back")
}

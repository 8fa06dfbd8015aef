package destroy

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

func destroyTestContext(t *testing.T, cloud *awsplatform.MockClient) *provisioning.Context {
	t.Helper()
	t.Chdir(t.TempDir())

	cfg := &config.Config{
		Region:      "eu-west-1",
		StackName:   "ps-test",
		KeyPairName: "ps-test-key",
		Images: map[string]string{
			"signalling": "ami-s1",
			"matchmaker": "ami-m1",
			"frontend":   "ami-f1",
		},
	}
	ctx := provisioning.NewContext(context.Background(), cfg, cloud, s3platform.NewMockStore())
	ctx.Timeouts = &config.Timeouts{
		Delete:            time.Second,
		StackPollInterval: time.Millisecond,
	}
	return ctx
}

// deletableStack returns a DescribeStack func that reports the stack gone
// once DeleteStack has been called.
func deletableStack(cloud *awsplatform.MockClient) func(context.Context, string) (*awsplatform.StackInfo, error) {
	deleted := false
	cloud.DeleteStackFunc = func(ctx context.Context, name string) error {
		deleted = true
		return nil
	}
	return func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
		if deleted {
			return nil, nil
		}
		return &awsplatform.StackInfo{Name: name, Status: "CREATE_COMPLETE"}, nil
	}
}

func TestDestroyFullCleanup(t *testing.T) {
	cloud := &awsplatform.MockClient{
		FindInstancesByTagFunc: func(ctx context.Context, key, value string) ([]awsplatform.InstanceInfo, error) {
			assert.Equal(t, "psforge:stack", key)
			return []awsplatform.InstanceInfo{{ID: "i-sig"}, {ID: "i-mm"}}, nil
		},
		ImageSnapshotsFunc: func(ctx context.Context, imageID string) ([]string, error) {
			return []string{"snap-" + imageID}, nil
		},
	}
	cloud.DescribeStackFunc = deletableStack(cloud)
	ctx := destroyTestContext(t, cloud)

	require.NoError(t, os.WriteFile("ps-test-key.pem", []byte("key"), 0o600))
	require.NoError(t, os.WriteFile("ps-test-outputs.yaml", []byte("outputs: {}\n"), 0o644))

	err := NewDestroyer(Options{DeleteImages: true, DeleteKeys: true}).Run(ctx)
	require.NoError(t, err)

	assert.Contains(t, cloud.Calls, "TerminateInstance")
	assert.Contains(t, cloud.Calls, "DeleteStack")
	assert.Contains(t, cloud.Calls, "DeregisterImage")
	assert.Contains(t, cloud.Calls, "DeleteSnapshot")
	assert.Contains(t, cloud.Calls, "DeleteKeyPair")

	_, err = os.Stat("ps-test-key.pem")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat("ps-test-outputs.yaml")
	assert.True(t, os.IsNotExist(err))
}

func TestDestroyDefaultKeepsImagesAndKeys(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	cloud.DescribeStackFunc = deletableStack(cloud)
	ctx := destroyTestContext(t, cloud)

	require.NoError(t, NewDestroyer(Options{}).Run(ctx))

	assert.NotContains(t, cloud.Calls, "DeregisterImage")
	assert.NotContains(t, cloud.Calls, "DeleteKeyPair")
}

func TestDestroyAlreadyCleanIsNoOp(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx := destroyTestContext(t, cloud)

	require.NoError(t, NewDestroyer(Options{DeleteImages: true, DeleteKeys: true}).Run(ctx))
	// Running again must also succeed.
	require.NoError(t, NewDestroyer(Options{DeleteImages: true, DeleteKeys: true}).Run(ctx))
	assert.NotContains(t, cloud.Calls, "DeleteStack")
}

func TestDestroyContinuesPastFailures(t *testing.T) {
	cloud := &awsplatform.MockClient{
		FindInstancesByTagFunc: func(ctx context.Context, key, value string) ([]awsplatform.InstanceInfo, error) {
			return nil, errors.New("api throttled")
		},
		DeregisterImageFunc: func(ctx context.Context, imageID string) error {
			return errors.New("image in use")
		},
	}
	ctx := destroyTestContext(t, cloud)

	err := NewDestroyer(Options{DeleteImages: true, DeleteKeys: true}).Run(ctx)
	require.Error(t, err)

	var partial *provisioning.TeardownPartialFailure
	require.ErrorAs(t, err, &partial)
	// Instance listing plus one failure per image.
	assert.Len(t, partial.Failures, 4)
	// Later steps still ran.
	assert.Contains(t, cloud.Calls, "DeleteKeyPair")
}

func TestDestroyStackDeleteFailed(t *testing.T) {
	described := 0
	cloud := &awsplatform.MockClient{
		DescribeStackFunc: func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
			described++
			if described == 1 {
				return &awsplatform.StackInfo{Name: name, Status: "CREATE_COMPLETE"}, nil
			}
			return &awsplatform.StackInfo{Name: name, Status: "DELETE_FAILED"}, nil
		},
	}
	ctx := destroyTestContext(t, cloud)

	err := NewDestroyer(Options{}).Run(ctx)
	require.Error(t, err)

	var partial *provisioning.TeardownPartialFailure
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, "stack", partial.Failures[0].Resource)
}

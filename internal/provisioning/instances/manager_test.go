package instances

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

func bringUpTestContext(cloud *awsplatform.MockClient) *provisioning.Context {
	cfg := &config.Config{
		Region:              "eu-west-1",
		StackName:           "ps-test",
		KeyPairName:         "ps-test-key",
		ServiceInstanceType: "g4dn.xlarge",
	}
	ctx := provisioning.NewContext(context.Background(), cfg, cloud, s3platform.NewMockStore())
	ctx.Timeouts = &config.Timeouts{
		RunningInterval: time.Millisecond,
		RunningAttempts: 5,
		HealthInterval:  time.Millisecond,
		HealthAttempts:  5,
		SettleDelay:     time.Millisecond,
	}
	for _, role := range config.Roles() {
		_ = ctx.State.SetImage(role, "ami-"+string(role))
	}
	ctx.State.Outputs = provisioning.Outputs{
		"SignallingTargetGroupArn": "arn:tg:signalling",
		"MatchmakerTargetGroupArn": "arn:tg:matchmaker",
		"FrontendTargetGroupArn":   "arn:tg:frontend",
		"SeedUsersFunction":        "ps-test-seed-users",
	}
	return ctx
}

func instanceByRole(t *testing.T, ctx *provisioning.Context, role config.Role) *provisioning.ServiceInstance {
	t.Helper()
	for _, inst := range ctx.State.Instances {
		if inst.Role == role {
			return inst
		}
	}
	t.Fatalf("no instance recorded for %s", role)
	return nil
}

func TestBringUpAllHealthy(t *testing.T) {
	var mu sync.Mutex
	launched := map[string]string{}
	cloud := &awsplatform.MockClient{
		RunInstanceFunc: func(ctx context.Context, opts awsplatform.InstanceRunOpts) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			launched[opts.Name] = opts.ImageID
			return "i-" + opts.Name, nil
		},
		InvokeFunctionFunc: func(ctx context.Context, name string, payload []byte) ([]byte, error) {
			return []byte(`{"users":["tester@example.com"]}`), nil
		},
	}
	ctx := bringUpTestContext(cloud)

	require.NoError(t, NewManager().BringUp(ctx))

	require.Len(t, ctx.State.Instances, 3)
	for _, role := range config.Roles() {
		inst := instanceByRole(t, ctx, role)
		assert.Equal(t, provisioning.HealthHealthy, inst.Health)
		assert.NotEmpty(t, inst.Address)
	}
	assert.Equal(t, "ami-signalling", launched["ps-test-signalling"])
	assert.Equal(t, "ami-frontend", launched["ps-test-frontend"])
	assert.Contains(t, cloud.Calls, "RegisterTarget")
	assert.Equal(t, []byte(`{"users":["tester@example.com"]}`), ctx.State.TestCredentials)
	assert.Empty(t, ctx.State.SoftFailures())
}

func TestBringUpUnhealthyInstanceIsSoft(t *testing.T) {
	cloud := &awsplatform.MockClient{
		TargetHealthFunc: func(ctx context.Context, targetGroupARN, instanceID string) (string, error) {
			if targetGroupARN == "arn:tg:matchmaker" {
				return "unhealthy", nil
			}
			return "healthy", nil
		},
	}
	ctx := bringUpTestContext(cloud)

	require.NoError(t, NewManager().BringUp(ctx), "failed health checks must not fail the run")

	assert.Equal(t, provisioning.HealthUnhealthy, instanceByRole(t, ctx, config.RoleMatchmaker).Health)
	assert.Equal(t, provisioning.HealthHealthy, instanceByRole(t, ctx, config.RoleSignalling).Health)

	failures := ctx.State.SoftFailures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "matchmaker")
	assert.Contains(t, failures[0], "unhealthy")
}

func TestBringUpHealthTimeoutIsSoft(t *testing.T) {
	cloud := &awsplatform.MockClient{
		TargetHealthFunc: func(ctx context.Context, targetGroupARN, instanceID string) (string, error) {
			if targetGroupARN == "arn:tg:frontend" {
				return "initial", nil
			}
			return "healthy", nil
		},
	}
	ctx := bringUpTestContext(cloud)

	require.NoError(t, NewManager().BringUp(ctx))

	// The provider never said unhealthy; the checks simply ran out.
	assert.Equal(t, provisioning.HealthTimedOut, instanceByRole(t, ctx, config.RoleFrontend).Health)

	failures := ctx.State.SoftFailures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "frontend")
	assert.Contains(t, failures[0], "initial")
}

func TestBringUpHealthRecoversLate(t *testing.T) {
	var mu sync.Mutex
	checks := 0
	cloud := &awsplatform.MockClient{
		TargetHealthFunc: func(ctx context.Context, targetGroupARN, instanceID string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			checks++
			if checks < 3 {
				return "initial", nil
			}
			return "healthy", nil
		},
	}
	ctx := bringUpTestContext(cloud)
	// One role keeps the scenario deterministic.
	ctx.State.Outputs = provisioning.Outputs{
		"SignallingTargetGroupArn": "arn:tg:signalling",
		"MatchmakerTargetGroupArn": "arn:tg:matchmaker",
		"FrontendTargetGroupArn":   "arn:tg:frontend",
	}

	require.NoError(t, NewManager().BringUp(ctx))
	assert.Empty(t, ctx.State.SoftFailures())
}

func TestBringUpMissingTargetGroupFailsBeforeLaunch(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx := bringUpTestContext(cloud)
	delete(ctx.State.Outputs, "FrontendTargetGroupArn")

	err := NewManager().BringUp(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FrontendTargetGroupArn")
	assert.NotContains(t, cloud.Calls, "RunInstance")
}

func TestBringUpLaunchFailure(t *testing.T) {
	cloud := &awsplatform.MockClient{
		RunInstanceFunc: func(ctx context.Context, opts awsplatform.InstanceRunOpts) (string, error) {
			if opts.Name == "ps-test-frontend" {
				return "", errors.New("insufficient capacity")
			}
			return "i-ok", nil
		},
	}
	ctx := bringUpTestContext(cloud)

	err := NewManager().BringUp(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient capacity")
}

func TestBringUpSeedFailureIsSoft(t *testing.T) {
	cloud := &awsplatform.MockClient{
		InvokeFunctionFunc: func(ctx context.Context, name string, payload []byte) ([]byte, error) {
			return nil, errors.New("function error")
		},
	}
	ctx := bringUpTestContext(cloud)

	require.NoError(t, NewManager().BringUp(ctx))
	failures := ctx.State.SoftFailures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "seed-users")
	assert.Nil(t, ctx.State.TestCredentials)
}

func TestBringUpNoSeedFunctionDeclared(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx := bringUpTestContext(cloud)
	delete(ctx.State.Outputs, "SeedUsersFunction")

	require.NoError(t, NewManager().BringUp(ctx))
	assert.NotContains(t, cloud.Calls, "InvokeFunction")
	assert.Empty(t, ctx.State.SoftFailures())
}

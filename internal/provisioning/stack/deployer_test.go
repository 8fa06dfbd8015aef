package stack

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

func deployTestContext(t *testing.T, cloud *awsplatform.MockClient) *provisioning.Context {
	t.Helper()

	templatePath := filepath.Join(t.TempDir(), "platform.yaml")
	require.NoError(t, os.WriteFile(templatePath, []byte("Resources: {}\n"), 0o644))

	cfg := &config.Config{
		Region:       "eu-west-1",
		StackName:    "ps-test",
		KeyPairName:  "ps-test-key",
		TemplatePath: templatePath,
	}
	ctx := provisioning.NewContext(context.Background(), cfg, cloud, s3platform.NewMockStore())
	ctx.Timeouts = &config.Timeouts{
		StackWait:         time.Second,
		StackPollInterval: time.Millisecond,
	}
	for _, role := range config.Roles() {
		require.NoError(t, ctx.State.SetImage(role, "ami-"+string(role)))
	}
	return ctx
}

func stackInfo(status string, outputs map[string]string) *awsplatform.StackInfo {
	return &awsplatform.StackInfo{Name: "ps-test", Status: status, Outputs: outputs}
}

func TestDeployCreatesNewStack(t *testing.T) {
	described := 0
	var createdParams map[string]string
	cloud := &awsplatform.MockClient{
		DescribeStackFunc: func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
			described++
			if described == 1 {
				return nil, nil
			}
			if described < 4 {
				return stackInfo("CREATE_IN_PROGRESS", nil), nil
			}
			return stackInfo("CREATE_COMPLETE", map[string]string{"SignallingTargetGroupArn": "arn:tg"}), nil
		},
		CreateStackFunc: func(ctx context.Context, name, templateBody string, params map[string]string, caps []string) error {
			createdParams = params
			assert.Contains(t, caps, "CAPABILITY_NAMED_IAM")
			assert.Contains(t, templateBody, "Resources")
			return nil
		},
	}
	ctx := deployTestContext(t, cloud)

	outputs, err := NewDeployer().Deploy(ctx)
	require.NoError(t, err)

	assert.Equal(t, "ami-signalling", createdParams["SignallingImageId"])
	assert.Equal(t, "ami-matchmaker", createdParams["MatchmakerImageId"])
	assert.Equal(t, "ami-frontend", createdParams["FrontendImageId"])
	assert.Equal(t, "ps-test-key", createdParams["KeyPairName"])

	arn, err := outputs.TargetGroupARN(config.RoleSignalling)
	require.NoError(t, err)
	assert.Equal(t, "arn:tg", arn)
	assert.Equal(t, outputs, ctx.State.Outputs)
	assert.NotContains(t, cloud.Calls, "UpdateStack")
}

func TestDeployUpdatesExistingStack(t *testing.T) {
	cloud := &awsplatform.MockClient{
		DescribeStackFunc: func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
			return stackInfo("UPDATE_COMPLETE", map[string]string{"AuthDomainUrl": "https://auth.example"}), nil
		},
	}
	ctx := deployTestContext(t, cloud)

	outputs, err := NewDeployer().Deploy(ctx)
	require.NoError(t, err)
	assert.Contains(t, cloud.Calls, "UpdateStack")
	assert.NotContains(t, cloud.Calls, "CreateStack")

	url, err := outputs.Get(provisioning.OutputAuthDomainURL)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example", url)
}

func TestDeployNoUpdatesIsSuccess(t *testing.T) {
	cloud := &awsplatform.MockClient{
		DescribeStackFunc: func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
			return stackInfo("CREATE_COMPLETE", nil), nil
		},
		UpdateStackFunc: func(ctx context.Context, name, templateBody string, params map[string]string, caps []string) (bool, error) {
			return true, nil
		},
	}
	ctx := deployTestContext(t, cloud)

	_, err := NewDeployer().Deploy(ctx)
	require.NoError(t, err)
}

func TestDeployRollbackCarriesLastEvent(t *testing.T) {
	described := 0
	cloud := &awsplatform.MockClient{
		DescribeStackFunc: func(ctx context.Context, name string) (*awsplatform.StackInfo, error) {
			described++
			if described == 1 {
				return nil, nil
			}
			return stackInfo("ROLLBACK_IN_PROGRESS", nil), nil
		},
		LastStackEventFunc: func(ctx context.Context, name string) (string, error) {
			return "SignallingAlb CREATE_FAILED: subnet not found", nil
		},
	}
	ctx := deployTestContext(t, cloud)

	_, err := NewDeployer().Deploy(ctx)
	require.Error(t, err)

	var depErr *provisioning.DeploymentError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "ROLLBACK_IN_PROGRESS", depErr.Status)
	assert.Contains(t, depErr.LastEvent, "subnet not found")
}

func TestDeployMissingImageFailsFast(t *testing.T) {
	cloud := &awsplatform.MockClient{}
	ctx := deployTestContext(t, cloud)
	// Fresh state without recorded images.
	ctx.State = provisioning.NewState()

	_, err := NewDeployer().Deploy(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image recorded")
	assert.NotContains(t, cloud.Calls, "CreateStack")
}

func TestDeployMissingTemplate(t *testing.T) {
	ctx := deployTestContext(t, &awsplatform.MockClient{})
	ctx.Config.TemplatePath = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := NewDeployer().Deploy(ctx)
	require.Error(t, err)

	var depErr *provisioning.DeploymentError
	require.ErrorAs(t, err, &depErr)
}

func TestRoleParam(t *testing.T) {
	assert.Equal(t, "SignallingImageId", roleParam(config.RoleSignalling))
	assert.Equal(t, "MatchmakerImageId", roleParam(config.RoleMatchmaker))
	assert.Equal(t, "FrontendImageId", roleParam(config.RoleFrontend))
}

// Package image builds the per-role machine images: a throwaway build
// instance is launched from the base image, provisioned over SSH from the
// staged source tree, snapshotted into an AMI, and terminated.
package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/psforge/psforge/internal/config"

	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	sshplatform "github.com/psforge/psforge/internal/platform/ssh"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/naming"
	"github.com/psforge/psforge/internal/util/retry"
)

const phase = "image"

// Builder produces the machine image for a single role.
type Builder struct {
	role   config.Role
	script string

	// newExecutor is swapped out in tests.
	newExecutor func(cfg *sshplatform.Config) (sshplatform.Executor, error)
}

// NewBuilder creates a builder for one role with its provisioning script.
func NewBuilder(role config.Role, script string) *Builder {
	return &Builder{
		role:   role,
		script: script,
		newExecutor: func(cfg *sshplatform.Config) (sshplatform.Executor, error) {
			return sshplatform.NewClient(cfg)
		},
	}
}

// Build runs the full image lifecycle for the role and returns the image ID.
// The build instance is terminated on every exit path. The produced ID is
// recorded in the pipeline state.
func (b *Builder) Build(ctx *provisioning.Context) (string, error) {
	env := ctx.State.Env

	instanceID, err := ctx.Cloud.RunInstance(ctx, awsplatform.InstanceRunOpts{
		Name:            naming.BuildInstance(ctx.Config.StackName, string(b.role)),
		ImageID:         ctx.Config.BaseImage,
		InstanceType:    ctx.Config.BuildInstanceType,
		KeyName:         ctx.Config.KeyPairName,
		SecurityGroupID: env.SecurityGroupID,
		SubnetID:        env.SubnetID,
		ProfileName:     env.InstanceProfile,
		Tags:            map[string]string{"psforge:stack": ctx.Config.StackName, "psforge:role": string(b.role)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch build instance for %s: %w", b.role, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "build instance", string(b.role), instanceID)

	// Termination must still go through when the run was interrupted, so the
	// cleanup call does not inherit the run's cancellation.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := ctx.Cloud.TerminateInstance(cleanupCtx, instanceID); err != nil {
			ctx.Observer.Printf("[%s] failed to terminate build instance %s: %v", phase, instanceID, err)
			return
		}
		provisioning.LogResourceDeleted(ctx.Observer, phase, "build instance", instanceID)
	}()

	host, err := b.awaitRunning(ctx, instanceID)
	if err != nil {
		return "", err
	}

	executor, err := b.newExecutor(&sshplatform.Config{
		Host:       host,
		User:       ctx.Config.SSHUser,
		PrivateKey: ctx.State.PrivateKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to prepare SSH for %s: %w", b.role, err)
	}

	if err := b.awaitReachable(ctx, executor, instanceID); err != nil {
		return "", err
	}

	if err := b.runProvisioningScript(ctx, executor); err != nil {
		return "", err
	}

	imageID, err := b.snapshot(ctx, instanceID)
	if err != nil {
		return "", err
	}

	if err := ctx.State.SetImage(b.role, imageID); err != nil {
		return "", err
	}
	return imageID, nil
}

// awaitRunning polls the instance state until it is running and has a public
// address.
func (b *Builder) awaitRunning(ctx *provisioning.Context, instanceID string) (string, error) {
	var host string
	err := retry.PollUntil(ctx, ctx.Timeouts.RunningInterval, ctx.Timeouts.RunningAttempts,
		func(pollCtx context.Context) (bool, error) {
			info, err := ctx.Cloud.DescribeInstance(pollCtx, instanceID)
			if err != nil {
				return false, err
			}
			if info == nil || info.State != "running" || info.PublicIP == "" {
				return false, nil
			}
			host = info.PublicIP
			return true, nil
		})
	if err != nil {
		return "", fmt.Errorf("build instance %s for %s never entered running state: %w", instanceID, b.role, err)
	}
	return host, nil
}

// awaitReachable probes the instance over SSH until a trivial command
// succeeds. Failed attempts are expected while the instance boots.
func (b *Builder) awaitReachable(ctx *provisioning.Context, executor sshplatform.Executor, instanceID string) error {
	err := retry.PollUntil(ctx, ctx.Timeouts.ReachableInterval, ctx.Timeouts.ReachableAttempts,
		func(pollCtx context.Context) (bool, error) {
			if _, err := executor.Execute(pollCtx, "true"); err != nil {
				return false, nil
			}
			return true, nil
		})
	if err != nil {
		return &provisioning.UnreachableError{
			Role:       b.role,
			InstanceID: instanceID,
			Err:        err,
		}
	}
	return nil
}

// runProvisioningScript executes the role's script on the instance with the
// staged source reference exported. Script failure output is surfaced in the
// error since it is the only diagnostic the operator gets.
func (b *Builder) runProvisioningScript(ctx *provisioning.Context, executor sshplatform.Executor) error {
	command := fmt.Sprintf("export ARTIFACT_REF=%q AWS_DEFAULT_REGION=%q && %s",
		ctx.State.ArtifactRef, ctx.Config.Region, b.script)
	ctx.Observer.Printf("[%s] provisioning %s", phase, b.role)

	output, err := executor.Execute(ctx, command)
	if err != nil {
		return fmt.Errorf("provisioning script for %s failed: %w\n%s", b.role, err, strings.TrimSpace(output))
	}
	return nil
}

// snapshot creates the AMI and waits for it to become available.
func (b *Builder) snapshot(ctx *provisioning.Context, instanceID string) (string, error) {
	name := naming.Image(ctx.Config.StackName, string(b.role))
	imageID, err := ctx.Cloud.CreateImage(ctx, instanceID, name,
		map[string]string{"psforge:stack": ctx.Config.StackName, "psforge:role": string(b.role)})
	if err != nil {
		return "", fmt.Errorf("failed to create image %s: %w", name, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "image", name, imageID)

	err = retry.PollUntil(ctx, ctx.Timeouts.ImageInterval, ctx.Timeouts.ImageAttempts,
		func(pollCtx context.Context) (bool, error) {
			state, err := ctx.Cloud.DescribeImageState(pollCtx, imageID)
			if err != nil {
				return false, err
			}
			switch state {
			case "available":
				return true, nil
			case "failed":
				return false, retry.Fatal(fmt.Errorf("image %s entered failed state", imageID))
			default:
				return false, nil
			}
		})
	if err != nil {
		return "", &provisioning.ImageTimeoutError{
			Role:    b.role,
			ImageID: imageID,
			Err:     err,
		}
	}
	return imageID, nil
}

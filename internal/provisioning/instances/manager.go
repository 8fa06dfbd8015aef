// Package instances brings up the long-lived service instances from the
// built images and verifies them through their load-balancer target groups.
package instances

import (
	"context"
	"fmt"
	"time"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/async"
	"github.com/psforge/psforge/internal/util/naming"
	"github.com/psforge/psforge/internal/util/retry"
)

const phase = "instances"

// Manager launches and health-checks the per-role service instances.
type Manager struct {
	// sleep is replaced in tests to skip the settle delay.
	sleep func(ctx context.Context, d time.Duration)
}

// NewManager creates an instance manager.
func NewManager() *Manager {
	return &Manager{
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// BringUp launches one instance per role, registers each with its target
// group, and polls target health. A health check that never passes is a soft
// failure: the instance stays registered, the run continues, and the final
// summary flags it. After all roles are up, the seed-users function is
// invoked to create test accounts.
func (m *Manager) BringUp(ctx *provisioning.Context) error {
	// Resolve every target group before launching anything so a broken
	// template fails before instances exist.
	targetGroups := make(map[config.Role]string)
	for _, role := range config.Roles() {
		arn, err := ctx.State.Outputs.TargetGroupARN(role)
		if err != nil {
			return err
		}
		targetGroups[role] = arn
	}

	tasks := make([]async.Task, 0, len(targetGroups))
	for _, role := range config.Roles() {
		tasks = append(tasks, async.Task{
			Name: string(role),
			Func: func(taskCtx context.Context) error {
				upCtx := *ctx
				upCtx.Context = taskCtx
				return m.bringUpRole(&upCtx, role, targetGroups[role])
			},
		})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("instance bring-up failed: %w", err)
	}

	return m.seedTestUsers(ctx)
}

func (m *Manager) bringUpRole(ctx *provisioning.Context, role config.Role, targetGroupARN string) error {
	imageID, ok := ctx.State.Image(role)
	if !ok {
		return fmt.Errorf("no image recorded for %s", role)
	}

	instanceID, err := ctx.Cloud.RunInstance(ctx, awsplatform.InstanceRunOpts{
		Name:         naming.ServiceInstance(ctx.Config.StackName, string(role)),
		ImageID:      imageID,
		InstanceType: ctx.Config.ServiceInstanceType,
		KeyName:      ctx.Config.KeyPairName,
		SubnetID:     ctx.Config.SubnetID,
		Tags:         map[string]string{"psforge:stack": ctx.Config.StackName, "psforge:role": string(role)},
	})
	if err != nil {
		return fmt.Errorf("failed to launch %s instance: %w", role, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "service instance", string(role), instanceID)

	inst := provisioning.NewServiceInstance(role, instanceID)
	inst.TargetGroupARN = targetGroupARN
	ctx.State.AddInstance(inst)

	if err := m.awaitRunning(ctx, inst); err != nil {
		return err
	}

	// Services need a moment after the instance runs before their listeners
	// accept health checks; registering too early burns polling attempts.
	m.sleep(ctx, ctx.Timeouts.SettleDelay)

	if err := ctx.Cloud.RegisterTarget(ctx, targetGroupARN, instanceID); err != nil {
		return fmt.Errorf("failed to register %s instance %s: %w", role, instanceID, err)
	}

	m.pollHealth(ctx, inst)
	return nil
}

// awaitRunning polls until the instance reports running, then moves the
// record out of the unknown state.
func (m *Manager) awaitRunning(ctx *provisioning.Context, inst *provisioning.ServiceInstance) error {
	err := retry.PollUntil(ctx, ctx.Timeouts.RunningInterval, ctx.Timeouts.RunningAttempts,
		func(pollCtx context.Context) (bool, error) {
			info, err := ctx.Cloud.DescribeInstance(pollCtx, inst.InstanceID)
			if err != nil {
				return false, err
			}
			if info == nil || info.State != "running" {
				return false, nil
			}
			inst.Address = info.PrivateIP
			if info.PublicIP != "" {
				inst.Address = info.PublicIP
			}
			return true, nil
		})
	if err != nil {
		return fmt.Errorf("%s instance %s never entered running state: %w", inst.Role, inst.InstanceID, err)
	}
	return inst.MarkRunning()
}

// pollHealth drives the instance to a terminal health state. An instance
// that never turns healthy records a soft failure and either unhealthy (the
// provider said so) or timed-out (the checks ran out first); neither aborts
// the run.
func (m *Manager) pollHealth(ctx *provisioning.Context, inst *provisioning.ServiceInstance) {
	lastState := "unknown"
	err := retry.PollUntil(ctx, ctx.Timeouts.HealthInterval, ctx.Timeouts.HealthAttempts,
		func(pollCtx context.Context) (bool, error) {
			state, err := ctx.Cloud.TargetHealth(pollCtx, inst.TargetGroupARN, inst.InstanceID)
			if err != nil {
				return false, err
			}
			lastState = state
			return state == "healthy", nil
		})
	if err != nil {
		final := provisioning.HealthTimedOut
		if lastState == "unhealthy" {
			final = provisioning.HealthUnhealthy
		}
		if markErr := inst.MarkHealth(final); markErr != nil {
			ctx.Observer.Printf("[%s] %v", phase, markErr)
		}
		timeout := &provisioning.HealthCheckTimeout{
			Role:       inst.Role,
			InstanceID: inst.InstanceID,
			Attempts:   ctx.Timeouts.HealthAttempts,
		}
		msg := fmt.Sprintf("%v (last reported state %s)", timeout, lastState)
		ctx.State.AddSoftFailure(msg)
		provisioning.LogSoftFailure(ctx.Observer, phase, inst.InstanceID, msg)
		return
	}
	if markErr := inst.MarkHealth(provisioning.HealthHealthy); markErr != nil {
		ctx.Observer.Printf("[%s] %v", phase, markErr)
		return
	}
	ctx.Observer.Printf("[%s] %s instance %s healthy", phase, inst.Role, inst.InstanceID)
}

// seedTestUsers invokes the stack's seed function so the freshly deployed
// platform has accounts to test against. A template without the function is
// fine; a failing invocation is a soft failure since the platform itself is
// already up.
func (m *Manager) seedTestUsers(ctx *provisioning.Context) error {
	fn, err := ctx.State.Outputs.Get(provisioning.OutputSeedUsersLambda)
	if err != nil {
		ctx.Observer.Printf("[%s] no seed-users function declared, skipping", phase)
		return nil
	}

	payload, err := ctx.Cloud.InvokeFunction(ctx, fn, []byte(`{}`))
	if err != nil {
		msg := fmt.Sprintf("seed-users function %s failed: %v", fn, err)
		ctx.State.AddSoftFailure(msg)
		provisioning.LogSoftFailure(ctx.Observer, phase, fn, msg)
		return nil
	}
	ctx.State.TestCredentials = payload
	ctx.Observer.Printf("[%s] seeded test users via %s", phase, fn)
	return nil
}

// Name identifies the manager in pipeline output.
func (m *Manager) Name() string {
	return "instances"
}

// Provision implements the pipeline phase interface.
func (m *Manager) Provision(ctx *provisioning.Context) error {
	return m.BringUp(ctx)
}

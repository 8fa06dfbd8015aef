// Package stack converges the platform's cloud template: load balancers,
// target groups, auth resources, and supporting functions. The per-role
// machine images are passed in as template parameters.
package stack

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/retry"
)

const phase = "stack"

// capabilities acknowledges that the template may create IAM resources.
var capabilities = []string{"CAPABILITY_IAM", "CAPABILITY_NAMED_IAM"}

// Deployer creates or updates the platform stack and waits for convergence.
type Deployer struct{}

// NewDeployer creates a stack deployer.
func NewDeployer() *Deployer {
	return &Deployer{}
}

// Deploy submits the template and blocks until the stack settles. A stack
// that already matches the template is a successful no-op. The stack outputs
// are recorded in the pipeline state and returned.
func (d *Deployer) Deploy(ctx *provisioning.Context) (provisioning.Outputs, error) {
	name := ctx.Config.StackName

	template, err := os.ReadFile(ctx.Config.TemplatePath)
	if err != nil {
		return nil, &provisioning.DeploymentError{
			StackName: name,
			Err:       fmt.Errorf("failed to read template: %w", err),
		}
	}

	params, err := d.parameters(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := ctx.Cloud.DescribeStack(ctx, name)
	if err != nil {
		return nil, &provisioning.DeploymentError{StackName: name, Err: err}
	}

	if existing == nil {
		ctx.Observer.Printf("[%s] creating stack %s", phase, name)
		if err := ctx.Cloud.CreateStack(ctx, name, string(template), params, capabilities); err != nil {
			return nil, &provisioning.DeploymentError{StackName: name, Err: err}
		}
	} else {
		ctx.Observer.Printf("[%s] updating stack %s (current status %s)", phase, name, existing.Status)
		noop, err := ctx.Cloud.UpdateStack(ctx, name, string(template), params, capabilities)
		if err != nil {
			return nil, &provisioning.DeploymentError{StackName: name, Err: err}
		}
		if noop {
			ctx.Observer.Printf("[%s] stack %s already up to date", phase, name)
		}
	}

	info, err := d.awaitConvergence(ctx, name)
	if err != nil {
		return nil, err
	}

	outputs := provisioning.Outputs(info.Outputs)
	ctx.State.Outputs = outputs
	ctx.Observer.Printf("[%s] stack %s converged with %d outputs", phase, name, len(outputs))
	return outputs, nil
}

// parameters assembles the template parameters: one image ID per role plus
// the key pair for emergency instance access.
func (d *Deployer) parameters(ctx *provisioning.Context) (map[string]string, error) {
	params := map[string]string{
		"KeyPairName": ctx.Config.KeyPairName,
	}
	for _, role := range config.Roles() {
		imageID, ok := ctx.State.Image(role)
		if !ok {
			return nil, &provisioning.DeploymentError{
				StackName: ctx.Config.StackName,
				Err:       fmt.Errorf("no image recorded for %s", role),
			}
		}
		params[roleParam(role)] = imageID
	}
	return params, nil
}

// roleParam maps a role to its template parameter name, e.g. "signalling"
// to "SignallingImageId".
func roleParam(role config.Role) string {
	return role.Title() + "ImageId"
}

// awaitConvergence polls the stack until it reaches a settled status. Any
// rollback or failure status aborts immediately and carries the last stack
// event, which is usually the only hint at the actual cause.
func (d *Deployer) awaitConvergence(ctx *provisioning.Context, name string) (*awsplatform.StackInfo, error) {
	interval := ctx.Timeouts.StackPollInterval
	attempts := int(ctx.Timeouts.StackWait / interval)
	if attempts < 1 {
		attempts = 1
	}

	var final *awsplatform.StackInfo
	err := retry.PollUntil(ctx, interval, attempts, func(pollCtx context.Context) (bool, error) {
		info, err := ctx.Cloud.DescribeStack(pollCtx, name)
		if err != nil {
			return false, err
		}
		if info == nil {
			return false, retry.Fatal(fmt.Errorf("stack %s disappeared while converging", name))
		}
		switch {
		case isSettled(info.Status):
			final = info
			return true, nil
		case isFailed(info.Status):
			return false, retry.Fatal(fmt.Errorf("stack entered status %s", info.Status))
		default:
			return false, nil
		}
	})
	if err != nil {
		lastEvent, eventErr := ctx.Cloud.LastStackEvent(ctx, name)
		if eventErr != nil {
			lastEvent = ""
		}
		status := "UNKNOWN"
		if info, descErr := ctx.Cloud.DescribeStack(ctx, name); descErr == nil && info != nil {
			status = info.Status
		}
		return nil, &provisioning.DeploymentError{
			StackName: name,
			Status:    status,
			LastEvent: lastEvent,
			Err:       err,
		}
	}
	return final, nil
}

// isSettled reports whether the status is a successful terminal state.
func isSettled(status string) bool {
	switch status {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE":
		return true
	}
	return false
}

// isFailed reports whether the status means the deployment cannot succeed.
// Rollbacks count: a rolled-back stack is syntactically healthy but is not
// running the requested template.
func isFailed(status string) bool {
	if strings.Contains(status, "ROLLBACK") {
		return true
	}
	return strings.HasSuffix(status, "_FAILED")
}

// Name identifies the deployer in pipeline output.
func (d *Deployer) Name() string {
	return "stack"
}

// Provision implements the pipeline phase interface.
func (d *Deployer) Provision(ctx *provisioning.Context) error {
	_, err := d.Deploy(ctx)
	return err
}

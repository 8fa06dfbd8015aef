// Package destroy removes everything a deployment created: service
// instances, the platform stack, and optionally the built images and the
// SSH key pair. Every step is attempted regardless of earlier failures so
// a flaky delete does not strand the remaining resources.
package destroy

import (
	"context"
	"fmt"
	"os"

	"github.com/psforge/psforge/internal/config"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/naming"
	"github.com/psforge/psforge/internal/util/retry"
)

const phase = "destroy"

// Options selects the optional cleanup steps.
type Options struct {
	// DeleteImages deregisters the built AMIs and their backing snapshots.
	DeleteImages bool
	// DeleteKeys removes the EC2 key pair and the local private key file.
	DeleteKeys bool
}

// Destroyer tears down a deployment.
type Destroyer struct {
	opts Options
}

// NewDestroyer creates a destroyer with the given options.
func NewDestroyer(opts Options) *Destroyer {
	return &Destroyer{opts: opts}
}

// Run removes the deployment. Steps are independent: a failed step is
// recorded and the rest still run. Running against an already-clean account
// is a successful no-op, so a partially failed cleanup can simply be rerun.
func (d *Destroyer) Run(ctx *provisioning.Context) error {
	partial := &provisioning.TeardownPartialFailure{}

	d.terminateServiceInstances(ctx, partial)
	d.deleteStack(ctx, partial)

	if d.opts.DeleteImages {
		d.deleteImages(ctx, partial)
	}
	if d.opts.DeleteKeys {
		d.deleteKeyPair(ctx, partial)
	}

	d.removeResultsFile(ctx, partial)
	return partial.OrNil()
}

// terminateServiceInstances removes the instances launched outside the
// stack. They must go first: instances still registered with target groups
// block stack deletion.
func (d *Destroyer) terminateServiceInstances(ctx *provisioning.Context, partial *provisioning.TeardownPartialFailure) {
	instances, err := ctx.Cloud.FindInstancesByTag(ctx, "psforge:stack", ctx.Config.StackName)
	if err != nil {
		partial.Add("service instances", err)
		return
	}
	for _, inst := range instances {
		if err := ctx.Cloud.TerminateInstance(ctx, inst.ID); err != nil {
			partial.Add(fmt.Sprintf("instance %s", inst.ID), err)
			continue
		}
		provisioning.LogResourceDeleted(ctx.Observer, phase, "instance", inst.ID)
	}
}

// deleteStack submits the deletion and waits until the stack is gone, within
// the delete budget.
func (d *Destroyer) deleteStack(ctx *provisioning.Context, partial *provisioning.TeardownPartialFailure) {
	name := ctx.Config.StackName

	info, err := ctx.Cloud.DescribeStack(ctx, name)
	if err != nil {
		partial.Add("stack", err)
		return
	}
	if info == nil {
		ctx.Observer.Printf("[%s] stack %s already gone", phase, name)
		return
	}

	if err := ctx.Cloud.DeleteStack(ctx, name); err != nil {
		partial.Add("stack", err)
		return
	}

	interval := ctx.Timeouts.StackPollInterval
	attempts := int(ctx.Timeouts.Delete / interval)
	if attempts < 1 {
		attempts = 1
	}
	err = retry.PollUntil(ctx, interval, attempts, func(pollCtx context.Context) (bool, error) {
		info, err := ctx.Cloud.DescribeStack(pollCtx, name)
		if err != nil {
			return false, err
		}
		if info == nil {
			return true, nil
		}
		if info.Status == "DELETE_FAILED" {
			return false, retry.Fatal(fmt.Errorf("stack entered DELETE_FAILED"))
		}
		return false, nil
	})
	if err != nil {
		partial.Add("stack", err)
		return
	}
	provisioning.LogResourceDeleted(ctx.Observer, phase, "stack", name)
}

// deleteImages deregisters each role's AMI and deletes its backing
// snapshots. Snapshot IDs are captured before deregistration because the
// mapping is unreadable afterwards.
func (d *Destroyer) deleteImages(ctx *provisioning.Context, partial *provisioning.TeardownPartialFailure) {
	for _, role := range config.Roles() {
		imageID := ctx.Config.Images[string(role)]
		if imageID == "" {
			continue
		}

		snapshots, err := ctx.Cloud.ImageSnapshots(ctx, imageID)
		if err != nil {
			partial.Add(fmt.Sprintf("image %s", imageID), err)
			continue
		}
		if err := ctx.Cloud.DeregisterImage(ctx, imageID); err != nil {
			partial.Add(fmt.Sprintf("image %s", imageID), err)
			continue
		}
		provisioning.LogResourceDeleted(ctx.Observer, phase, "image", imageID)

		for _, snapshotID := range snapshots {
			if err := ctx.Cloud.DeleteSnapshot(ctx, snapshotID); err != nil {
				partial.Add(fmt.Sprintf("snapshot %s", snapshotID), err)
				continue
			}
			provisioning.LogResourceDeleted(ctx.Observer, phase, "snapshot", snapshotID)
		}
	}
}

// deleteKeyPair removes the key pair in EC2 and the local private key file.
func (d *Destroyer) deleteKeyPair(ctx *provisioning.Context, partial *provisioning.TeardownPartialFailure) {
	name := ctx.Config.KeyPairName
	if err := ctx.Cloud.DeleteKeyPair(ctx, name); err != nil {
		partial.Add("key pair", err)
	} else {
		provisioning.LogResourceDeleted(ctx.Observer, phase, "key pair", name)
	}

	keyFile := naming.PrivateKeyFile(name)
	if err := os.Remove(keyFile); err != nil && !os.IsNotExist(err) {
		partial.Add("private key file", err)
	}
}

// removeResultsFile deletes the deployment record; its contents are stale
// the moment the stack is gone.
func (d *Destroyer) removeResultsFile(ctx *provisioning.Context, partial *provisioning.TeardownPartialFailure) {
	path := naming.ResultsFile(ctx.Config.StackName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		partial.Add("results file", err)
	}
}

// Name identifies the destroyer in pipeline output.
func (d *Destroyer) Name() string {
	return "destroy"
}

// Provision implements the pipeline phase interface.
func (d *Destroyer) Provision(ctx *provisioning.Context) error {
	return d.Run(ctx)
}

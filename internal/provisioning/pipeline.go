package provisioning

import (
	"fmt"
	"time"
)

// Phase is one stage of the deployment pipeline.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase.
	Provision(ctx *Context) error
}

// RunPhases executes phases sequentially, stopping at the first failure.
// Ordering matters: images must exist before the stack consumes their IDs,
// and the stack must converge before instances consume its outputs.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting deployment with %d phases...", len(phases))

	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("deployment interrupted before %s phase: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		label := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))
		ctx.Observer.Printf("[%s] starting", label)

		if err := phase.Provision(ctx); err != nil {
			ctx.Observer.Printf("[%s] failed: %v", label, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		ctx.Observer.Printf("[%s] completed in %v", label, time.Since(phaseStart).Round(time.Millisecond))
	}

	ctx.Observer.Printf("Deployment completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

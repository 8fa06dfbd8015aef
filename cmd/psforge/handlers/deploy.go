package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/huh"

	"github.com/psforge/psforge/internal/config"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/provisioning/image"
	"github.com/psforge/psforge/internal/provisioning/instances"
	"github.com/psforge/psforge/internal/provisioning/stack"
	"github.com/psforge/psforge/internal/results"
)

// DeployOptions carries the deploy command's flags.
type DeployOptions struct {
	ConfigPath string
	// Region and StackName override the config file.
	Region    string
	StackName string

	// SkipImages reuses image IDs from the config instead of building.
	SkipImages bool
	// Yes updates an existing stack without asking.
	Yes bool
}

// Pipeline stage factories - replaced in tests.
var (
	newImageCoordinator = func(configPath string, skipImages bool) provisioning.Phase {
		return image.NewCoordinator(configPath, skipImages)
	}
	newStackDeployer = func() provisioning.Phase {
		return stack.NewDeployer()
	}
	newInstanceManager = func() provisioning.Phase {
		return instances.NewManager()
	}
	writeResults = func(r *results.Record) (string, error) {
		return r.Write()
	}

	// confirmUpdate asks the operator before changing a live stack.
	confirmUpdate = func(stackName, status string) (bool, error) {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Stack %q already exists (status %s). Update it?", stackName, status)).
				Affirmative("Update").
				Negative("Cancel").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return false, err
		}
		return confirmed, nil
	}
)

// Deploy runs the full pipeline: build (or reuse) the per-role images,
// converge the platform stack, bring up and verify the service instances,
// and write the deployment record. When the stack already exists the
// operator is asked before it is updated, unless --yes was given.
//
// Health-check timeouts and other soft failures do not make Deploy return an
// error; they are listed in the summary and in the results file.
func Deploy(ctx context.Context, opts DeployOptions) error {
	cfg, path, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	if opts.StackName != "" {
		cfg.StackName = opts.StackName
	}

	log.Printf("Deploying stack: %s (region %s)", cfg.StackName, cfg.Region)

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	existing, err := pctx.Cloud.DescribeStack(pctx, cfg.StackName)
	if err != nil {
		return fmt.Errorf("failed to check for existing stack %s: %w", cfg.StackName, err)
	}
	if existing != nil && !opts.Yes {
		confirmed, err := confirmUpdate(cfg.StackName, existing.Status)
		if err != nil {
			return err
		}
		if !confirmed {
			log.Println("Deployment cancelled")
			return nil
		}
	}

	phases := []provisioning.Phase{
		newImageCoordinator(path, opts.SkipImages),
		newStackDeployer(),
		newInstanceManager(),
	}
	if err := provisioning.RunPhases(pctx, phases); err != nil {
		return err
	}

	record := results.FromState(cfg, pctx.State)
	resultsPath, err := writeResults(record)
	if err != nil {
		log.Printf("Warning: deployment succeeded but results were not written: %v", err)
	} else {
		log.Printf("Deployment record written to %s", resultsPath)
	}

	printSummary(pctx)
	return nil
}

// printSummary lists the operator-facing endpoints and any conditions that
// need manual attention.
func printSummary(pctx *provisioning.Context) {
	outputs := pctx.State.Outputs

	for _, role := range config.Roles() {
		if dns, err := outputs.LoadBalancerDNS(role); err == nil {
			fmt.Printf("  %-12s http://%s\n", role, dns)
		}
	}
	if url, err := outputs.Get(provisioning.OutputWebSocketBaseURL); err == nil {
		fmt.Printf("  %-12s %s\n", "websocket", url)
	}
	if url, err := outputs.Get(provisioning.OutputAuthDomainURL); err == nil {
		fmt.Printf("  %-12s %s\n", "auth", url)
	}

	failures := pctx.State.SoftFailures()
	if len(failures) == 0 {
		fmt.Println("All services healthy.")
		return
	}
	fmt.Printf("Deployment finished with %d warnings:\n", len(failures))
	for _, f := range failures {
		fmt.Printf("  - %s\n", f)
	}
}

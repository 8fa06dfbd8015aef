package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/huh"

	"github.com/psforge/psforge/internal/provisioning/destroy"
)

// CleanupOptions carries the cleanup command's flags.
type CleanupOptions struct {
	ConfigPath string
	// Region and StackName override the config file, so cleanup works even
	// when the file that created the deployment is gone.
	Region    string
	StackName string

	DeleteImages bool
	DeleteKeys   bool
	// Force skips the interactive confirmation.
	Force bool
}

var (
	// newDestroyer creates the teardown runner.
	newDestroyer = func(opts destroy.Options) Provisioner {
		return destroy.NewDestroyer(opts)
	}

	// confirmCleanup asks the operator before deleting anything.
	confirmCleanup = func(stackName string) (bool, error) {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete stack %q and all its resources?", stackName)).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return false, err
		}
		return confirmed, nil
	}
)

// Cleanup tears down a deployment. Sub-steps are best effort: a partially
// failed cleanup reports what is left and can simply be rerun.
func Cleanup(ctx context.Context, opts CleanupOptions) error {
	cfg, _, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	if opts.StackName != "" {
		cfg.StackName = opts.StackName
	}

	if !opts.Force {
		confirmed, err := confirmCleanup(cfg.StackName)
		if err != nil {
			return err
		}
		if !confirmed {
			log.Println("Cleanup cancelled")
			return nil
		}
	}

	log.Printf("Destroying stack: %s (region %s)", cfg.StackName, cfg.Region)

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	destroyer := newDestroyer(destroy.Options{
		DeleteImages: opts.DeleteImages,
		DeleteKeys:   opts.DeleteKeys,
	})
	if err := destroyer.Provision(pctx); err != nil {
		return fmt.Errorf("cleanup incomplete: %w", err)
	}

	log.Printf("Stack %s destroyed", cfg.StackName)
	return nil
}

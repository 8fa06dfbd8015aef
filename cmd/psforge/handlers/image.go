package handlers

import (
	"context"
	"log"

	"github.com/psforge/psforge/internal/config"
)

// Image builds the per-role machine images without deploying the stack. The
// produced IDs are written back into the config file so a later deploy with
// --skip-images can reuse them.
func Image(ctx context.Context, configPath string) error {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log.Printf("Building images for stack: %s", cfg.StackName)

	pctx, err := buildContext(ctx, cfg)
	if err != nil {
		return err
	}

	coordinator := newImageCoordinator(path, false)
	if err := coordinator.Provision(pctx); err != nil {
		return err
	}

	images := pctx.State.Images()
	for _, role := range config.Roles() {
		log.Printf("Built %s: %s", role, images[role])
	}
	for _, f := range pctx.State.SoftFailures() {
		log.Printf("Warning: %s", f)
	}
	return nil
}

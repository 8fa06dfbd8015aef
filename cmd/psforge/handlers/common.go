// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the
// CLI framework. Cloud clients and pipeline stages are created through
// factory function variables that tests replace with fakes.
package handlers

import (
	"context"
	"fmt"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
	"github.com/psforge/psforge/internal/provisioning"
)

// Provisioner is the execution half of a pipeline phase. Handlers depend on
// it rather than concrete stage types so tests can substitute fakes.
type Provisioner interface {
	Provision(ctx *provisioning.Context) error
}

// Factory function variables - replaced in tests for dependency injection.
var (
	// findConfigFile resolves the config path, auto-detecting psforge.yaml.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads and validates the configuration.
	loadConfigFile = config.LoadFile

	// newCloudClient creates the AWS control-plane client.
	newCloudClient = func(ctx context.Context, region string, timeouts *config.Timeouts) (awsplatform.CloudManager, error) {
		return awsplatform.NewRealClient(ctx, region, awsplatform.WithTimeouts(timeouts))
	}

	// newObjectStore creates the staging bucket client.
	newObjectStore = func(ctx context.Context, region string) (s3platform.ObjectStore, error) {
		return s3platform.NewClient(ctx, region)
	}

	// newProvisioningContext creates the shared pipeline context.
	newProvisioningContext = provisioning.NewContext
)

// loadConfig resolves and loads the configuration file, returning the config
// together with the path it came from (needed for image ID write-back).
func loadConfig(configPath string) (*config.Config, string, error) {
	path, err := findConfigFile(configPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// buildContext wires the cloud clients into a pipeline context.
func buildContext(ctx context.Context, cfg *config.Config) (*provisioning.Context, error) {
	timeouts := config.LoadTimeouts()

	cloud, err := newCloudClient(ctx, cfg.Region, timeouts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS client: %w", err)
	}
	store, err := newObjectStore(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	pctx := newProvisioningContext(ctx, cfg, cloud, store)
	pctx.Timeouts = timeouts
	return pctx, nil
}

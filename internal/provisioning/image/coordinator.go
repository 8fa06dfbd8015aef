package image

import (
	"context"
	"fmt"

	"github.com/psforge/psforge/internal/config"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/provisioning/artifact"
	"github.com/psforge/psforge/internal/provisioning/environment"
	"github.com/psforge/psforge/internal/util/async"
)

// roleBuilder builds the image for one role. Satisfied by Builder; faked in
// tests.
type roleBuilder interface {
	Build(ctx *provisioning.Context) (string, error)
}

// Coordinator drives image production for all roles: transient environment
// up, source tree staged, one build per role in parallel, environment torn
// down no matter how the builds end.
type Coordinator struct {
	configPath string
	skipBuild  bool

	environment *environment.Manager
	publisher   *artifact.Publisher
	newBuilder  func(role config.Role, script string) roleBuilder
}

// NewCoordinator creates a coordinator. configPath is where produced image
// IDs are written back; skipBuild reuses IDs from the config instead of
// building.
func NewCoordinator(configPath string, skipBuild bool) *Coordinator {
	return &Coordinator{
		configPath:  configPath,
		skipBuild:   skipBuild,
		environment: environment.NewManager(),
		publisher:   artifact.NewPublisher(),
		newBuilder: func(role config.Role, script string) roleBuilder {
			return NewBuilder(role, script)
		},
	}
}

// Run produces an image ID for every role and records them in the pipeline
// state. In skip mode no cloud resources are touched.
func (c *Coordinator) Run(ctx *provisioning.Context) error {
	if c.skipBuild {
		return c.reuseExisting(ctx)
	}
	return c.buildAll(ctx)
}

// reuseExisting fills the image slots from the config: an explicit images
// entry wins, a fallback_images entry covers the rest. A role with neither
// is a configuration error.
func (c *Coordinator) reuseExisting(ctx *provisioning.Context) error {
	for _, role := range config.Roles() {
		imageID := ctx.Config.Images[string(role)]
		if imageID == "" {
			imageID = ctx.Config.FallbackImages[string(role)]
		}
		if imageID == "" {
			return &config.Error{
				Field:  fmt.Sprintf("images.%s", role),
				Reason: "no image ID available for skip mode; build images first or add a fallback",
			}
		}
		if err := ctx.State.SetImage(role, imageID); err != nil {
			return err
		}
		ctx.Observer.Printf("[%s] reusing image %s for %s", phase, imageID, role)
	}
	return nil
}

func (c *Coordinator) buildAll(ctx *provisioning.Context) error {
	// Everything a build instance needs has to be known before any cloud
	// resource is created.
	if ctx.Config.BaseImage == "" {
		return &config.Error{Field: "base_image", Reason: "required to build images"}
	}
	if ctx.Config.BuildInstanceType == "" {
		return &config.Error{Field: "build_instance_type", Reason: "required to build images"}
	}

	env, err := c.environment.Provision(ctx)
	if err != nil {
		return err
	}
	// Teardown must run even when ctx was cancelled mid-build, so it gets a
	// detached copy of the context.
	defer func() {
		tctx := *ctx
		tctx.Context = context.WithoutCancel(ctx.Context)
		c.environment.Teardown(&tctx, env)
	}()

	if _, err := c.publisher.Publish(ctx); err != nil {
		return err
	}

	tasks := make([]async.Task, 0, len(config.Roles()))
	for _, role := range config.Roles() {
		spec, err := ctx.Config.BuildFor(role)
		if err != nil {
			return err
		}
		builder := c.newBuilder(role, spec.Script)
		tasks = append(tasks, async.Task{
			Name: string(role),
			Func: func(taskCtx context.Context) error {
				buildCtx := *ctx
				buildCtx.Context = taskCtx
				_, err := builder.Build(&buildCtx)
				return err
			},
		})
	}

	// All builds run to completion or failure before the environment goes
	// away; RunParallel is the join barrier.
	if err := async.RunParallel(ctx, tasks); err != nil {
		return fmt.Errorf("image builds failed: %w", err)
	}

	if err := config.PublishImageIDs(c.configPath, ctx.State.Images()); err != nil {
		msg := fmt.Sprintf("built images could not be written back to %s: %v", c.configPath, err)
		ctx.State.AddSoftFailure(msg)
		provisioning.LogSoftFailure(ctx.Observer, phase, c.configPath, msg)
	}
	return nil
}

// Name identifies the coordinator in pipeline output.
func (c *Coordinator) Name() string {
	return "images"
}

// Provision implements the pipeline phase interface.
func (c *Coordinator) Provision(ctx *provisioning.Context) error {
	return c.Run(ctx)
}

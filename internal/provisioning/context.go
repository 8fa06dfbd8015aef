package provisioning

import (
	"context"
	"fmt"
	"sync"

	"github.com/psforge/psforge/internal/config"
	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	s3platform "github.com/psforge/psforge/internal/platform/s3"
)

// State holds the shared results of pipeline phases. It is progressively
// populated as each phase completes and passed to subsequent phases.
type State struct {
	mu sync.Mutex

	// Environment results (populated by the environment provisioner)
	Env        *TransientEnvironment
	PrivateKey []byte // SSH private key material for the run's key pair

	// Artifact results (populated by the distribution channel)
	ArtifactRef string // s3:// reference build instances fetch from

	// Image results: one slot per role, written exactly once
	images map[config.Role]string

	// Stack results (populated by the stack deployer)
	Outputs Outputs

	// Bring-up results (populated by the instance coordinator)
	Instances []*ServiceInstance

	// TestCredentials is the payload returned by the seed-users function.
	TestCredentials []byte

	// Soft failures reported in the final summary without aborting the run.
	softFailures []string
}

// NewState creates an empty pipeline state.
func NewState() *State {
	return &State{
		images: make(map[config.Role]string),
	}
}

// SetImage records the produced image ID for a role. Each slot is written
// exactly once; a second write is a programming error and is rejected.
func (s *State) SetImage(role config.Role, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.images[role]; ok {
		return fmt.Errorf("image for %s already recorded as %s", role, existing)
	}
	s.images[role] = imageID
	return nil
}

// Image returns the recorded image ID for a role.
func (s *State) Image(role config.Role) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.images[role]
	return id, ok
}

// Images returns a copy of the role → image ID map.
func (s *State) Images() map[config.Role]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[config.Role]string, len(s.images))
	for k, v := range s.images {
		out[k] = v
	}
	return out
}

// AddInstance appends a service instance record.
func (s *State) AddInstance(inst *ServiceInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Instances = append(s.Instances, inst)
}

// AddSoftFailure records a condition for the final summary that does not
// abort the remaining pipeline stages.
func (s *State) AddSoftFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softFailures = append(s.softFailures, msg)
}

// SoftFailures returns the recorded soft failure messages.
func (s *State) SoftFailures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.softFailures...)
}

// Context wraps all dependencies and state needed for a pipeline phase.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Cloud    awsplatform.CloudManager
	Store    s3platform.ObjectStore
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a new pipeline context.
func NewContext(
	ctx context.Context,
	cfg *config.Config,
	cloud awsplatform.CloudManager,
	store s3platform.ObjectStore,
) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    NewState(),
		Cloud:    cloud,
		Store:    store,
		Observer: NewConsoleObserver(),
		Timeouts: config.LoadTimeouts(),
	}
}

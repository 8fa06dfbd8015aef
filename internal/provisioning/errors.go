package provisioning

import (
	"fmt"
	"strings"

	"github.com/psforge/psforge/internal/config"
)

// ProvisioningError reports that scaffolding creation failed for a reason
// other than "already exists". Fatal to the run; whatever scaffolding was
// created is torn down before exiting.
type ProvisioningError struct {
	Resource string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision %s: %v", e.Resource, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// UnreachableError reports that a build instance never became reachable
// within the polling budget. Fatal to that build target only.
type UnreachableError struct {
	Role       config.Role
	InstanceID string
	Err        error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("build instance %s for %s never became reachable: %v", e.InstanceID, e.Role, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// ImageTimeoutError reports that an image never reached the available state
// within the polling budget. Fatal to that build target only.
type ImageTimeoutError struct {
	Role    config.Role
	ImageID string
	Err     error
}

func (e *ImageTimeoutError) Error() string {
	return fmt.Sprintf("image %s for %s did not become available: %v", e.ImageID, e.Role, e.Err)
}

func (e *ImageTimeoutError) Unwrap() error {
	return e.Err
}

// DeploymentError reports failed or rolled-back stack convergence. It carries
// the last provider-reported stack event and is never auto-retried.
type DeploymentError struct {
	StackName string
	Status    string
	LastEvent string
	Err       error
}

func (e *DeploymentError) Error() string {
	msg := fmt.Sprintf("stack %s deployment failed (status %s)", e.StackName, e.Status)
	if e.LastEvent != "" {
		msg += ": " + e.LastEvent
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// HealthCheckTimeout records a service instance that exhausted its health
// polling budget. This is a soft failure: the run continues and the final
// summary flags it distinctly from success.
type HealthCheckTimeout struct {
	Role       config.Role
	InstanceID string
	Attempts   int
}

func (e *HealthCheckTimeout) Error() string {
	return fmt.Sprintf("%s instance %s not healthy after %d health checks", e.Role, e.InstanceID, e.Attempts)
}

// TeardownFailure records one cleanup sub-step that failed.
type TeardownFailure struct {
	Resource string
	Err      error
}

// TeardownPartialFailure aggregates cleanup sub-step failures. Teardown never
// aborts on a failed sub-step; the summary lists unresolved resources for
// manual operator action.
type TeardownPartialFailure struct {
	Failures []TeardownFailure
}

func (e *TeardownPartialFailure) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = fmt.Sprintf("%s (%v)", f.Resource, f.Err)
	}
	return fmt.Sprintf("teardown left %d resources unresolved: %s", len(e.Failures), strings.Join(names, "; "))
}

// Add records a sub-step failure.
func (e *TeardownPartialFailure) Add(resource string, err error) {
	e.Failures = append(e.Failures, TeardownFailure{Resource: resource, Err: err})
}

// OrNil returns the aggregate error, or nil when every sub-step succeeded.
func (e *TeardownPartialFailure) OrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e
}

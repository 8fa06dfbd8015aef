package provisioning

import (
	"fmt"

	"github.com/psforge/psforge/internal/config"
)

// BuildTarget tracks one role's image build. ImageID stays empty until the
// image builder completes that role and is never mutated afterward.
type BuildTarget struct {
	Role    config.Role
	Script  string
	ImageID string
}

// TransientEnvironment holds the short-lived scaffolding needed only while
// images are being built. Created once per run; torn down exactly once.
type TransientEnvironment struct {
	SecurityGroupID string
	StagingBucket   string
	InstanceProfile string
	InstanceRole    string
	VPCID           string
	SubnetID        string
}

// HealthState tracks a service instance through bring-up.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthInitial   HealthState = "initial"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
	HealthTimedOut  HealthState = "timed-out"
)

// terminal reports whether a state ends the bring-up lifecycle for this run.
func (h HealthState) terminal() bool {
	return h == HealthHealthy || h == HealthUnhealthy || h == HealthTimedOut
}

// ServiceInstance is a long-lived instance launched from a built image.
// Health transitions only through MarkRunning and MarkHealth:
// unknown → initial → {healthy | unhealthy | timed-out}.
type ServiceInstance struct {
	Role           config.Role
	InstanceID     string
	Address        string
	TargetGroupARN string
	Health         HealthState
}

// NewServiceInstance returns an instance record in the unknown state.
func NewServiceInstance(role config.Role, instanceID string) *ServiceInstance {
	return &ServiceInstance{
		Role:       role,
		InstanceID: instanceID,
		Health:     HealthUnknown,
	}
}

// MarkRunning transitions unknown → initial once the underlying instance
// reports a running state.
func (s *ServiceInstance) MarkRunning() error {
	if s.Health != HealthUnknown {
		return fmt.Errorf("instance %s already past unknown state (%s)", s.InstanceID, s.Health)
	}
	s.Health = HealthInitial
	return nil
}

// MarkHealth records the terminal outcome of health polling. Only legal from
// the initial state; terminal states are immutable for the rest of the run.
func (s *ServiceInstance) MarkHealth(h HealthState) error {
	if s.Health != HealthInitial {
		return fmt.Errorf("instance %s cannot move to %s from %s", s.InstanceID, h, s.Health)
	}
	if !h.terminal() {
		return fmt.Errorf("instance %s cannot move to non-terminal state %s", s.InstanceID, h)
	}
	s.Health = h
	return nil
}

// Outputs is the named output mapping read back from the deployment engine
// after stack convergence.
type Outputs map[string]string

// Well-known output keys declared by the stack template.
const (
	OutputAuthDomainURL    = "AuthDomainUrl"
	OutputSeedUsersLambda  = "SeedUsersFunction"
	OutputWebSocketBaseURL = "WebSocketBaseUrl"
)

// Get returns the value for key, or an error naming the missing key so the
// operator can see which template output is absent.
func (o Outputs) Get(key string) (string, error) {
	v, ok := o[key]
	if !ok || v == "" {
		return "", fmt.Errorf("stack output %s is missing or empty", key)
	}
	return v, nil
}

// TargetGroupARN returns the target group ARN declared for a role.
func (o Outputs) TargetGroupARN(role config.Role) (string, error) {
	return o.Get(role.Title() + "TargetGroupArn")
}

// LoadBalancerDNS returns the load balancer DNS name declared for a role.
func (o Outputs) LoadBalancerDNS(role config.Role) (string, error) {
	return o.Get(role.Title() + "LoadBalancerDNS")
}

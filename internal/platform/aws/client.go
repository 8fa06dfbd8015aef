// Package aws wraps the AWS control-plane APIs used by the pipeline.
package aws

import (
	"context"
)

// CreateOutcome is the tri-state result of an idempotent create operation.
// A failed create is reported through the error return instead.
type CreateOutcome string

const (
	// OutcomeCreated means the resource was newly created.
	OutcomeCreated CreateOutcome = "created"
	// OutcomeAlreadyExisted means an existing resource was reused.
	OutcomeAlreadyExisted CreateOutcome = "already-existed"
)

// InstanceRunOpts holds all parameters for launching an EC2 instance.
type InstanceRunOpts struct {
	Name            string
	ImageID         string
	InstanceType    string
	KeyName         string
	SecurityGroupID string
	SubnetID        string
	ProfileName     string
	Tags            map[string]string
}

// InstanceInfo describes the observed state of an instance.
type InstanceInfo struct {
	ID        string
	State     string
	PublicIP  string
	PrivateIP string
}

// StackInfo describes the observed state of a CloudFormation stack.
type StackInfo struct {
	Name    string
	Status  string
	Outputs map[string]string
}

// InstanceManager defines the interface for managing EC2 instances.
type InstanceManager interface {
	RunInstance(ctx context.Context, opts InstanceRunOpts) (string, error)
	DescribeInstance(ctx context.Context, instanceID string) (*InstanceInfo, error)
	TerminateInstance(ctx context.Context, instanceID string) error
	// FindInstancesByTag returns non-terminated instances carrying the tag.
	FindInstancesByTag(ctx context.Context, key, value string) ([]InstanceInfo, error)
}

// ImageManager defines the interface for managing AMIs.
type ImageManager interface {
	CreateImage(ctx context.Context, instanceID, name string, tags map[string]string) (string, error)
	// DescribeImageState returns the image state ("pending", "available", "failed")
	// or an empty string if the image does not exist.
	DescribeImageState(ctx context.Context, imageID string) (string, error)
	// ImageSnapshots returns the EBS snapshot IDs backing an image.
	ImageSnapshots(ctx context.Context, imageID string) ([]string, error)
	DeregisterImage(ctx context.Context, imageID string) error
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}

// KeyPairManager defines the interface for managing EC2 key pairs.
type KeyPairManager interface {
	// ImportKeyPair registers a public key, tolerating duplicates.
	ImportKeyPair(ctx context.Context, name string, publicKey []byte) (CreateOutcome, error)
	DeleteKeyPair(ctx context.Context, name string) error
}

// SecurityGroupManager defines the interface for managing security groups.
type SecurityGroupManager interface {
	// EnsureSecurityGroup creates the group with ingress on the given TCP
	// ports, or adopts an existing group of the same name. Returns the
	// group ID and whether it was created or already existed.
	EnsureSecurityGroup(ctx context.Context, name, description, vpcID string, ports []int32) (string, CreateOutcome, error)
	DeleteSecurityGroup(ctx context.Context, name, vpcID string) error
	// DefaultVPC returns the account's default VPC ID, or an empty string
	// if the account has none.
	DefaultVPC(ctx context.Context) (string, error)
	// FirstSubnet returns a subnet in the VPC suitable for instance launch.
	FirstSubnet(ctx context.Context, vpcID string) (string, error)
}

// StackManager defines the interface for the template-deployment engine.
type StackManager interface {
	// DescribeStack returns the stack, or nil if no stack of that name exists.
	DescribeStack(ctx context.Context, name string) (*StackInfo, error)
	CreateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) error
	// UpdateStack submits an update. A provider-reported "no changes"
	// condition returns noop=true and a nil error.
	UpdateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) (noop bool, err error)
	DeleteStack(ctx context.Context, name string) error
	// LastStackEvent returns a one-line summary of the most recent stack
	// event, for failure diagnostics.
	LastStackEvent(ctx context.Context, name string) (string, error)
}

// TargetGroupManager defines the interface for load-balancer target registration.
type TargetGroupManager interface {
	RegisterTarget(ctx context.Context, targetGroupARN, instanceID string) error
	DeregisterTarget(ctx context.Context, targetGroupARN, instanceID string) error
	// TargetHealth returns the provider-reported health state of the
	// instance in the target group ("initial", "healthy", "unhealthy", ...).
	TargetHealth(ctx context.Context, targetGroupARN, instanceID string) (string, error)
}

// ProfileManager defines the interface for the build instance profile.
type ProfileManager interface {
	// EnsureInstanceProfile creates the role and instance profile pair,
	// tolerating "already exists" on every step.
	EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (CreateOutcome, error)
	DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error
}

// FunctionInvoker defines the interface for invoking deployed functions.
type FunctionInvoker interface {
	InvokeFunction(ctx context.Context, name string, payload []byte) ([]byte, error)
}

// CloudManager aggregates every control-plane concern the pipeline needs.
type CloudManager interface {
	InstanceManager
	ImageManager
	KeyPairManager
	SecurityGroupManager
	StackManager
	TargetGroupManager
	ProfileManager
	FunctionInvoker
}

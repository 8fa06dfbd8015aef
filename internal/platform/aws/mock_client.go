package aws

import (
	"context"
)

// MockClient is a mock implementation of CloudManager. Calls without a
// configured function fall through to a benign default, and every call is
// appended to Calls so tests can assert on the control-plane call log.
type MockClient struct {
	Calls []string

	RunInstanceFunc        func(ctx context.Context, opts InstanceRunOpts) (string, error)
	DescribeInstanceFunc   func(ctx context.Context, instanceID string) (*InstanceInfo, error)
	TerminateInstanceFunc  func(ctx context.Context, instanceID string) error
	FindInstancesByTagFunc func(ctx context.Context, key, value string) ([]InstanceInfo, error)

	CreateImageFunc        func(ctx context.Context, instanceID, name string, tags map[string]string) (string, error)
	DescribeImageStateFunc func(ctx context.Context, imageID string) (string, error)
	ImageSnapshotsFunc     func(ctx context.Context, imageID string) ([]string, error)
	DeregisterImageFunc    func(ctx context.Context, imageID string) error
	DeleteSnapshotFunc     func(ctx context.Context, snapshotID string) error

	ImportKeyPairFunc func(ctx context.Context, name string, publicKey []byte) (CreateOutcome, error)
	DeleteKeyPairFunc func(ctx context.Context, name string) error

	EnsureSecurityGroupFunc func(ctx context.Context, name, description, vpcID string, ports []int32) (string, CreateOutcome, error)
	DeleteSecurityGroupFunc func(ctx context.Context, name, vpcID string) error
	DefaultVPCFunc          func(ctx context.Context) (string, error)
	FirstSubnetFunc         func(ctx context.Context, vpcID string) (string, error)

	DescribeStackFunc  func(ctx context.Context, name string) (*StackInfo, error)
	CreateStackFunc    func(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) error
	UpdateStackFunc    func(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) (bool, error)
	DeleteStackFunc    func(ctx context.Context, name string) error
	LastStackEventFunc func(ctx context.Context, name string) (string, error)

	RegisterTargetFunc   func(ctx context.Context, targetGroupARN, instanceID string) error
	DeregisterTargetFunc func(ctx context.Context, targetGroupARN, instanceID string) error
	TargetHealthFunc     func(ctx context.Context, targetGroupARN, instanceID string) (string, error)

	EnsureInstanceProfileFunc func(ctx context.Context, profileName, roleName string) (CreateOutcome, error)
	DeleteInstanceProfileFunc func(ctx context.Context, profileName, roleName string) error

	InvokeFunctionFunc func(ctx context.Context, name string, payload []byte) ([]byte, error)
}

// Ensure interface compliance.
var _ CloudManager = (*MockClient)(nil)

func (m *MockClient) record(call string) {
	m.Calls = append(m.Calls, call)
}

// RunInstance mocks instance launch.
func (m *MockClient) RunInstance(ctx context.Context, opts InstanceRunOpts) (string, error) {
	m.record("RunInstance")
	if m.RunInstanceFunc != nil {
		return m.RunInstanceFunc(ctx, opts)
	}
	return "i-mock", nil
}

// DescribeInstance mocks instance description.
func (m *MockClient) DescribeInstance(ctx context.Context, instanceID string) (*InstanceInfo, error) {
	m.record("DescribeInstance")
	if m.DescribeInstanceFunc != nil {
		return m.DescribeInstanceFunc(ctx, instanceID)
	}
	return &InstanceInfo{ID: instanceID, State: "running", PublicIP: "192.0.2.1"}, nil
}

// TerminateInstance mocks instance termination.
func (m *MockClient) TerminateInstance(ctx context.Context, instanceID string) error {
	m.record("TerminateInstance")
	if m.TerminateInstanceFunc != nil {
		return m.TerminateInstanceFunc(ctx, instanceID)
	}
	return nil
}

// FindInstancesByTag mocks instance lookup by tag.
func (m *MockClient) FindInstancesByTag(ctx context.Context, key, value string) ([]InstanceInfo, error) {
	m.record("FindInstancesByTag")
	if m.FindInstancesByTagFunc != nil {
		return m.FindInstancesByTagFunc(ctx, key, value)
	}
	return nil, nil
}

// CreateImage mocks AMI creation.
func (m *MockClient) CreateImage(ctx context.Context, instanceID, name string, tags map[string]string) (string, error) {
	m.record("CreateImage")
	if m.CreateImageFunc != nil {
		return m.CreateImageFunc(ctx, instanceID, name, tags)
	}
	return "ami-mock", nil
}

// DescribeImageState mocks image state lookup.
func (m *MockClient) DescribeImageState(ctx context.Context, imageID string) (string, error) {
	m.record("DescribeImageState")
	if m.DescribeImageStateFunc != nil {
		return m.DescribeImageStateFunc(ctx, imageID)
	}
	return "available", nil
}

// ImageSnapshots mocks backing snapshot lookup.
func (m *MockClient) ImageSnapshots(ctx context.Context, imageID string) ([]string, error) {
	m.record("ImageSnapshots")
	if m.ImageSnapshotsFunc != nil {
		return m.ImageSnapshotsFunc(ctx, imageID)
	}
	return nil, nil
}

// DeregisterImage mocks AMI deregistration.
func (m *MockClient) DeregisterImage(ctx context.Context, imageID string) error {
	m.record("DeregisterImage")
	if m.DeregisterImageFunc != nil {
		return m.DeregisterImageFunc(ctx, imageID)
	}
	return nil
}

// DeleteSnapshot mocks snapshot deletion.
func (m *MockClient) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	m.record("DeleteSnapshot")
	if m.DeleteSnapshotFunc != nil {
		return m.DeleteSnapshotFunc(ctx, snapshotID)
	}
	return nil
}

// ImportKeyPair mocks key pair import.
func (m *MockClient) ImportKeyPair(ctx context.Context, name string, publicKey []byte) (CreateOutcome, error) {
	m.record("ImportKeyPair")
	if m.ImportKeyPairFunc != nil {
		return m.ImportKeyPairFunc(ctx, name, publicKey)
	}
	return OutcomeCreated, nil
}

// DeleteKeyPair mocks key pair deletion.
func (m *MockClient) DeleteKeyPair(ctx context.Context, name string) error {
	m.record("DeleteKeyPair")
	if m.DeleteKeyPairFunc != nil {
		return m.DeleteKeyPairFunc(ctx, name)
	}
	return nil
}

// EnsureSecurityGroup mocks idempotent security group creation.
func (m *MockClient) EnsureSecurityGroup(ctx context.Context, name, description, vpcID string, ports []int32) (string, CreateOutcome, error) {
	m.record("EnsureSecurityGroup")
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, name, description, vpcID, ports)
	}
	return "sg-mock", OutcomeCreated, nil
}

// DeleteSecurityGroup mocks security group deletion.
func (m *MockClient) DeleteSecurityGroup(ctx context.Context, name, vpcID string) error {
	m.record("DeleteSecurityGroup")
	if m.DeleteSecurityGroupFunc != nil {
		return m.DeleteSecurityGroupFunc(ctx, name, vpcID)
	}
	return nil
}

// DefaultVPC mocks the default VPC lookup.
func (m *MockClient) DefaultVPC(ctx context.Context) (string, error) {
	m.record("DefaultVPC")
	if m.DefaultVPCFunc != nil {
		return m.DefaultVPCFunc(ctx)
	}
	return "vpc-mock", nil
}

// FirstSubnet mocks subnet lookup.
func (m *MockClient) FirstSubnet(ctx context.Context, vpcID string) (string, error) {
	m.record("FirstSubnet")
	if m.FirstSubnetFunc != nil {
		return m.FirstSubnetFunc(ctx, vpcID)
	}
	return "subnet-mock", nil
}

// DescribeStack mocks stack description.
func (m *MockClient) DescribeStack(ctx context.Context, name string) (*StackInfo, error) {
	m.record("DescribeStack")
	if m.DescribeStackFunc != nil {
		return m.DescribeStackFunc(ctx, name)
	}
	return nil, nil
}

// CreateStack mocks stack creation.
func (m *MockClient) CreateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) error {
	m.record("CreateStack")
	if m.CreateStackFunc != nil {
		return m.CreateStackFunc(ctx, name, templateBody, params, capabilities)
	}
	return nil
}

// UpdateStack mocks stack update.
func (m *MockClient) UpdateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) (bool, error) {
	m.record("UpdateStack")
	if m.UpdateStackFunc != nil {
		return m.UpdateStackFunc(ctx, name, templateBody, params, capabilities)
	}
	return false, nil
}

// DeleteStack mocks stack deletion.
func (m *MockClient) DeleteStack(ctx context.Context, name string) error {
	m.record("DeleteStack")
	if m.DeleteStackFunc != nil {
		return m.DeleteStackFunc(ctx, name)
	}
	return nil
}

// LastStackEvent mocks the stack event summary.
func (m *MockClient) LastStackEvent(ctx context.Context, name string) (string, error) {
	m.record("LastStackEvent")
	if m.LastStackEventFunc != nil {
		return m.LastStackEventFunc(ctx, name)
	}
	return "", nil
}

// RegisterTarget mocks target registration.
func (m *MockClient) RegisterTarget(ctx context.Context, targetGroupARN, instanceID string) error {
	m.record("RegisterTarget")
	if m.RegisterTargetFunc != nil {
		return m.RegisterTargetFunc(ctx, targetGroupARN, instanceID)
	}
	return nil
}

// DeregisterTarget mocks target deregistration.
func (m *MockClient) DeregisterTarget(ctx context.Context, targetGroupARN, instanceID string) error {
	m.record("DeregisterTarget")
	if m.DeregisterTargetFunc != nil {
		return m.DeregisterTargetFunc(ctx, targetGroupARN, instanceID)
	}
	return nil
}

// TargetHealth mocks target health lookup.
func (m *MockClient) TargetHealth(ctx context.Context, targetGroupARN, instanceID string) (string, error) {
	m.record("TargetHealth")
	if m.TargetHealthFunc != nil {
		return m.TargetHealthFunc(ctx, targetGroupARN, instanceID)
	}
	return "healthy", nil
}

// EnsureInstanceProfile mocks instance profile creation.
func (m *MockClient) EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (CreateOutcome, error) {
	m.record("EnsureInstanceProfile")
	if m.EnsureInstanceProfileFunc != nil {
		return m.EnsureInstanceProfileFunc(ctx, profileName, roleName)
	}
	return OutcomeCreated, nil
}

// DeleteInstanceProfile mocks instance profile deletion.
func (m *MockClient) DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error {
	m.record("DeleteInstanceProfile")
	if m.DeleteInstanceProfileFunc != nil {
		return m.DeleteInstanceProfileFunc(ctx, profileName, roleName)
	}
	return nil
}

// InvokeFunction mocks function invocation.
func (m *MockClient) InvokeFunction(ctx context.Context, name string, payload []byte) ([]byte, error) {
	m.record("InvokeFunction")
	if m.InvokeFunctionFunc != nil {
		return m.InvokeFunctionFunc(ctx, name, payload)
	}
	return []byte(`{}`), nil
}

// Package environment manages the transient build scaffolding: the build
// security group, the staging bucket, the instance profile, and the run's
// SSH key pair. All of it exists only while images are being built.
package environment

import (
	"fmt"
	"os"

	awsplatform "github.com/psforge/psforge/internal/platform/aws"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/keygen"
	"github.com/psforge/psforge/internal/util/naming"
)

const phase = "environment"

// buildIngressPorts are the only ports opened on the build security group:
// SSH for provisioning plus the ports used to verify the services in-instance.
var buildIngressPorts = []int32{22, 80, 443, 8888, 9999}

// Manager provisions and tears down the transient build environment.
type Manager struct{}

// NewManager creates a new environment manager.
func NewManager() *Manager {
	return &Manager{}
}

// Provision creates the scaffolding and records it in the pipeline state.
// Every create is idempotent: "already exists" is adoption, not failure.
// The caller must register Teardown immediately after Provision returns so
// that scaffolding is released on every exit path of the image-building run.
func (m *Manager) Provision(ctx *provisioning.Context) (*provisioning.TransientEnvironment, error) {
	cfg := ctx.Config
	env := &provisioning.TransientEnvironment{
		InstanceProfile: naming.InstanceProfile(cfg.StackName),
		InstanceRole:    naming.InstanceRole(cfg.StackName),
		StagingBucket:   naming.StagingBucket(cfg.StackName, cfg.Region),
	}

	vpcID, subnetID, err := m.resolvePlacement(ctx)
	if err != nil {
		return nil, err
	}
	env.VPCID = vpcID
	env.SubnetID = subnetID

	outcome, err := ctx.Cloud.EnsureInstanceProfile(ctx, env.InstanceProfile, env.InstanceRole)
	if err != nil {
		return nil, &provisioning.ProvisioningError{Resource: "instance profile", Err: err}
	}
	logOutcome(ctx, "instance profile", env.InstanceProfile, env.InstanceProfile, outcome)

	sgName := naming.BuildSecurityGroup(cfg.StackName)
	sgID, outcome, err := ctx.Cloud.EnsureSecurityGroup(ctx, sgName, "build-time ingress for image provisioning", vpcID, buildIngressPorts)
	if err != nil {
		return nil, &provisioning.ProvisioningError{Resource: "security group", Err: err}
	}
	env.SecurityGroupID = sgID
	logOutcome(ctx, "security group", sgName, sgID, outcome)

	existed, err := ctx.Store.EnsureBucket(ctx, env.StagingBucket)
	if err != nil {
		return nil, &provisioning.ProvisioningError{Resource: "staging bucket", Err: err}
	}
	if existed {
		provisioning.LogResourceExists(ctx.Observer, phase, "staging bucket", env.StagingBucket, env.StagingBucket)
	} else {
		provisioning.LogResourceCreated(ctx.Observer, phase, "staging bucket", env.StagingBucket, env.StagingBucket)
	}

	if err := m.ensureKeyPair(ctx); err != nil {
		return nil, err
	}

	ctx.State.Env = env
	return env, nil
}

// ensureKeyPair imports the run's SSH key pair and keeps the private key
// material in state for the build SSH sessions. When the key pair already
// exists in EC2, the local private key file must still be present.
func (m *Manager) ensureKeyPair(ctx *provisioning.Context) error {
	name := ctx.Config.KeyPairName
	keyFile := naming.PrivateKeyFile(name)

	kp, err := keygen.GenerateED25519KeyPair()
	if err != nil {
		return &provisioning.ProvisioningError{Resource: "key pair", Err: err}
	}

	outcome, err := ctx.Cloud.ImportKeyPair(ctx, name, kp.PublicKey)
	if err != nil {
		return &provisioning.ProvisioningError{Resource: "key pair", Err: err}
	}

	if outcome == awsplatform.OutcomeAlreadyExisted {
		provisioning.LogResourceExists(ctx.Observer, phase, "key pair", name, name)
		existing, err := os.ReadFile(keyFile)
		if err != nil {
			return &provisioning.ProvisioningError{
				Resource: "key pair",
				Err:      fmt.Errorf("key pair %s exists in EC2 but %s is missing locally: %w", name, keyFile, err),
			}
		}
		ctx.State.PrivateKey = existing
		return nil
	}

	if err := os.WriteFile(keyFile, kp.PrivateKey, 0o600); err != nil {
		return &provisioning.ProvisioningError{Resource: "key pair", Err: fmt.Errorf("failed to write %s: %w", keyFile, err)}
	}
	ctx.State.PrivateKey = kp.PrivateKey
	provisioning.LogResourceCreated(ctx.Observer, phase, "key pair", name, name)
	return nil
}

// resolvePlacement picks the VPC and subnet for build instances. An explicit
// vpc_id/subnet_id in the config overrides the default-VPC lookup; a missing
// default VPC is only fatal when no override is given.
func (m *Manager) resolvePlacement(ctx *provisioning.Context) (string, string, error) {
	vpcID := ctx.Config.VPCID
	if vpcID == "" {
		var err error
		vpcID, err = ctx.Cloud.DefaultVPC(ctx)
		if err != nil {
			return "", "", &provisioning.ProvisioningError{Resource: "vpc", Err: err}
		}
		if vpcID == "" {
			return "", "", &provisioning.ProvisioningError{
				Resource: "vpc",
				Err:      fmt.Errorf("account has no default VPC; set vpc_id in the config"),
			}
		}
	}

	subnetID := ctx.Config.SubnetID
	if subnetID == "" {
		var err error
		subnetID, err = ctx.Cloud.FirstSubnet(ctx, vpcID)
		if err != nil {
			return "", "", &provisioning.ProvisioningError{Resource: "subnet", Err: err}
		}
	}

	return vpcID, subnetID, nil
}

// Teardown releases the scaffolding. Every sub-resource deletion is attempted
// independently; failures are logged and never propagated, because this runs
// during cleanup where the pipeline cannot itself recover. Safe to call more
// than once and against partially-created environments.
func (m *Manager) Teardown(ctx *provisioning.Context, env *provisioning.TransientEnvironment) {
	if env == nil {
		return
	}

	if env.SecurityGroupID != "" {
		sgName := naming.BuildSecurityGroup(ctx.Config.StackName)
		if err := ctx.Cloud.DeleteSecurityGroup(ctx, sgName, env.VPCID); err != nil {
			ctx.Observer.Printf("[%s] failed to delete security group %s: %v", phase, sgName, err)
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, phase, "security group", sgName)
		}
	}

	if env.StagingBucket != "" {
		if err := ctx.Store.EmptyBucket(ctx, env.StagingBucket); err != nil {
			ctx.Observer.Printf("[%s] failed to empty staging bucket %s: %v", phase, env.StagingBucket, err)
		}
		if err := ctx.Store.DeleteBucket(ctx, env.StagingBucket); err != nil {
			ctx.Observer.Printf("[%s] failed to delete staging bucket %s: %v", phase, env.StagingBucket, err)
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, phase, "staging bucket", env.StagingBucket)
		}
	}

	if env.InstanceProfile != "" {
		if err := ctx.Cloud.DeleteInstanceProfile(ctx, env.InstanceProfile, env.InstanceRole); err != nil {
			ctx.Observer.Printf("[%s] failed to delete instance profile %s: %v", phase, env.InstanceProfile, err)
		} else {
			provisioning.LogResourceDeleted(ctx.Observer, phase, "instance profile", env.InstanceProfile)
		}
	}
}

func logOutcome(ctx *provisioning.Context, resourceType, name, id string, outcome awsplatform.CreateOutcome) {
	if outcome == awsplatform.OutcomeAlreadyExisted {
		provisioning.LogResourceExists(ctx.Observer, phase, resourceType, name, id)
		return
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, resourceType, name, id)
}

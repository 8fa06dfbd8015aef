package results

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psforge/psforge/internal/config"
	"github.com/psforge/psforge/internal/provisioning"
)

func TestFromState(t *testing.T) {
	cfg := &config.Config{Region: "eu-west-1", StackName: "ps-test"}

	state := provisioning.NewState()
	require.NoError(t, state.SetImage(config.RoleSignalling, "ami-s1"))
	state.Outputs = provisioning.Outputs{"AuthDomainUrl": "https://auth.example"}
	state.TestCredentials = []byte(`{"users":[]}`)
	state.AddSoftFailure("matchmaker instance i-mm not healthy after 30 health checks")

	inst := provisioning.NewServiceInstance(config.RoleSignalling, "i-sig")
	inst.Address = "192.0.2.5"
	require.NoError(t, inst.MarkRunning())
	require.NoError(t, inst.MarkHealth(provisioning.HealthHealthy))
	state.AddInstance(inst)

	r := FromState(cfg, state)
	assert.Equal(t, "ps-test", r.StackName)
	assert.Equal(t, "ami-s1", r.Images["signalling"])
	assert.Equal(t, "https://auth.example", r.Outputs["AuthDomainUrl"])
	assert.Len(t, r.SoftFailures, 1)
	require.Len(t, r.Instances, 1)
	assert.Equal(t, "healthy", r.Instances[0].Health)
	assert.False(t, r.DeployedAt.IsZero())
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())

	r := &Record{
		StackName: "ps-test",
		Region:    "eu-west-1",
		Outputs:   map[string]string{"WebSocketBaseUrl": "wss://ps.example"},
		Instances: []Instance{{Role: "frontend", InstanceID: "i-fe", Health: "healthy"}},
	}

	path, err := r.Write()
	require.NoError(t, err)
	assert.Equal(t, "ps-test-outputs.yaml", path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Outputs, loaded.Outputs)
	assert.Equal(t, r.Instances, loaded.Instances)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	require.Error(t, err)
}

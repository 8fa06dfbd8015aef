// Package results writes the deployment record: everything an operator or a
// test suite needs to use the platform after a run.
package results

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/psforge/psforge/internal/config"
	"github.com/psforge/psforge/internal/provisioning"
	"github.com/psforge/psforge/internal/util/naming"
)

// Instance is one service instance as recorded at the end of a run.
type Instance struct {
	Role       string `yaml:"role"`
	InstanceID string `yaml:"instance_id"`
	Address    string `yaml:"address,omitempty"`
	Health     string `yaml:"health"`
}

// Record is the persisted outcome of a deployment run.
type Record struct {
	StackName  string    `yaml:"stack_name"`
	Region     string    `yaml:"region"`
	DeployedAt time.Time `yaml:"deployed_at"`

	Outputs   map[string]string `yaml:"outputs,omitempty"`
	Images    map[string]string `yaml:"images,omitempty"`
	Instances []Instance        `yaml:"instances,omitempty"`

	// TestCredentials is the raw payload returned by the seed-users function.
	TestCredentials string `yaml:"test_credentials,omitempty"`

	SoftFailures []string `yaml:"soft_failures,omitempty"`
}

// FromState assembles the record from the finished pipeline state.
func FromState(cfg *config.Config, state *provisioning.State) *Record {
	r := &Record{
		StackName:       cfg.StackName,
		Region:          cfg.Region,
		DeployedAt:      time.Now().UTC(),
		Outputs:         map[string]string(state.Outputs),
		Images:          make(map[string]string),
		TestCredentials: string(state.TestCredentials),
		SoftFailures:    state.SoftFailures(),
	}
	for role, imageID := range state.Images() {
		r.Images[string(role)] = imageID
	}
	for _, inst := range state.Instances {
		r.Instances = append(r.Instances, Instance{
			Role:       string(inst.Role),
			InstanceID: inst.InstanceID,
			Address:    inst.Address,
			Health:     string(inst.Health),
		})
	}
	return r
}

// Write persists the record next to the config, named after the stack.
// Returns the path written.
func (r *Record) Write() (string, error) {
	path := naming.ResultsFile(r.StackName)
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	// Credentials may be inside, so keep the record operator-readable only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

// Load reads a previously written record.
func Load(path string) (*Record, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return &r, nil
}

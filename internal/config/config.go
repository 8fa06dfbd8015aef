// Package config resolves the deployment identity and per-role build
// settings from a single YAML source.
package config

import (
	"fmt"
	"strings"
)

// Role identifies one of the three streaming service components.
type Role string

const (
	RoleSignalling Role = "signalling"
	RoleMatchmaker Role = "matchmaker"
	RoleFrontend   Role = "frontend"
)

// Roles returns the fixed list of component roles in build order.
func Roles() []Role {
	return []Role{RoleSignalling, RoleMatchmaker, RoleFrontend}
}

// Title returns the role capitalized for template identifiers
// (signalling → Signalling). Stack parameter and output names are
// derived from it.
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Identity is the immutable deployment identity shared by every pipeline
// stage. It is resolved once at process start and passed by value.
type Identity struct {
	Region      string
	StackName   string
	KeyPairName string
}

// BuildSpec holds the settings needed to build one role's image.
type BuildSpec struct {
	// Script is the path, relative to the source tree root, of the
	// in-instance provisioning script for this role.
	Script string `mapstructure:"script" yaml:"script"`
}

// Config holds the full application configuration.
type Config struct {
	Region      string `mapstructure:"region" yaml:"region"`
	StackName   string `mapstructure:"stack_name" yaml:"stack_name"`
	KeyPairName string `mapstructure:"key_pair_name" yaml:"key_pair_name"`

	// Network placement. When empty, the default VPC and its first subnet
	// are used; a missing default VPC is only fatal if no override is given.
	VPCID    string `mapstructure:"vpc_id" yaml:"vpc_id,omitempty"`
	SubnetID string `mapstructure:"subnet_id" yaml:"subnet_id,omitempty"`

	// TemplatePath points at the CloudFormation template; the template
	// itself is an opaque collaborator.
	TemplatePath string `mapstructure:"template_path" yaml:"template_path"`

	// SourceDir is the root of the source tree published to the staging
	// bucket for in-instance builds.
	SourceDir string `mapstructure:"source_dir" yaml:"source_dir"`

	// Build settings shared by all three image builds.
	BaseImage         string `mapstructure:"base_image" yaml:"base_image"`
	BuildInstanceType string `mapstructure:"build_instance_type" yaml:"build_instance_type"`
	SSHUser           string `mapstructure:"ssh_user" yaml:"ssh_user"`

	// ServiceInstanceType is used for the long-lived service instances.
	ServiceInstanceType string `mapstructure:"service_instance_type" yaml:"service_instance_type"`

	// Builds holds per-role build settings, keyed by role name.
	Builds map[string]BuildSpec `mapstructure:"builds" yaml:"builds"`

	// Images holds the AMI IDs produced by the image builder, written back
	// by PublishImageIDs. Keyed by role name.
	Images map[string]string `mapstructure:"images" yaml:"images,omitempty"`

	// FallbackImages substitutes for Images when image building is skipped.
	FallbackImages map[string]string `mapstructure:"fallback_images" yaml:"fallback_images,omitempty"`
}

// Identity returns the resolved deployment identity.
func (c *Config) Identity() Identity {
	return Identity{
		Region:      c.Region,
		StackName:   c.StackName,
		KeyPairName: c.KeyPairName,
	}
}

// BuildFor returns the build spec for a role, or an error if the role has
// no builds entry.
func (c *Config) BuildFor(role Role) (BuildSpec, error) {
	spec, ok := c.Builds[string(role)]
	if !ok {
		return BuildSpec{}, &Error{Field: fmt.Sprintf("builds.%s", role), Reason: "missing"}
	}
	return spec, nil
}

// Validate checks that every required field is present.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"region", c.Region},
		{"stack_name", c.StackName},
		{"key_pair_name", c.KeyPairName},
		{"template_path", c.TemplatePath},
		{"source_dir", c.SourceDir},
	}
	for _, f := range required {
		if f.value == "" {
			return &Error{Field: f.name, Reason: "required"}
		}
	}
	for _, role := range Roles() {
		spec, ok := c.Builds[string(role)]
		if !ok {
			return &Error{Field: fmt.Sprintf("builds.%s", role), Reason: "required"}
		}
		if spec.Script == "" {
			return &Error{Field: fmt.Sprintf("builds.%s.script", role), Reason: "required"}
		}
	}
	return nil
}

// Error reports a missing or malformed configuration value. It is raised
// before any cloud mutation happens.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Package provisioning provides shared types and interfaces for the
// deployment pipeline.
//
// The pipeline is organized into focused subpackages:
//   - environment/: transient build scaffolding (security group, staging bucket, instance profile)
//   - artifact/: source tree distribution to the staging bucket
//   - image/: per-role AMI building
//   - stack/: CloudFormation stack deployment
//   - instances/: service instance bring-up and target registration
//   - destroy/: teardown of stack, images, keys, and run artifacts
//
// This root package contains the phase driver, shared state, the error
// taxonomy, and the observer used for progress reporting.
package provisioning

// Package config loads and validates the deployment configuration.
//
// The configuration file (psforge.yaml by default) resolves the deployment
// identity (region, stack name, key pair name), per-role build settings, and
// network placement. All pipeline stages read it; the only write-back is
// [PublishImageIDs], used by the image builder to record produced AMI IDs.
package config

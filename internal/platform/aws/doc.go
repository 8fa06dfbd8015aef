// Package aws wraps the AWS control-plane APIs (EC2, CloudFormation,
// ELBv2, IAM, Lambda) behind small per-concern interfaces.
//
// [CloudManager] aggregates every concern the provisioning pipeline needs;
// [RealClient] implements it against the live APIs and [MockClient] provides
// a call-recording test double. Idempotent creates report a tri-state
// [CreateOutcome] instead of swallowing "already exists" errors.
package aws

// Package retry provides exponential backoff retry logic and fixed-interval
// polling for operations against the AWS control plane.
//
// [Backoff.Do] retries transiently failing calls. [PollUntil] waits for
// eventually-consistent state transitions (instance running, image
// available, target healthy) with a bounded number of attempts.
package retry

package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// errorCode extracts the provider error code, or "" for non-API errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// errorMessage extracts the provider error message, or "" for non-API errors.
func errorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	return ""
}

// IsAlreadyExists checks if the error indicates the resource already exists.
// Such errors are treated as success by idempotent-create operations.
func IsAlreadyExists(err error) bool {
	switch errorCode(err) {
	case "InvalidKeyPair.Duplicate",
		"InvalidGroup.Duplicate",
		"InvalidPermission.Duplicate",
		"EntityAlreadyExists",
		"AlreadyExistsException":
		return true
	}
	return false
}

// IsNotFound checks if the error indicates a missing resource.
func IsNotFound(err error) bool {
	code := errorCode(err)
	switch code {
	case "InvalidInstanceID.NotFound",
		"InvalidAMIID.NotFound",
		"InvalidAMIID.Unavailable",
		"InvalidSnapshot.NotFound",
		"InvalidKeyPair.NotFound",
		"InvalidGroup.NotFound",
		"NoSuchEntity",
		"TargetGroupNotFound",
		"InvalidTarget",
		"ResourceNotFoundException":
		return true
	}
	// CloudFormation reports a missing stack as a ValidationError.
	if code == "ValidationError" && strings.Contains(errorMessage(err), "does not exist") {
		return true
	}
	return false
}

// IsNoUpdates checks for CloudFormation's "no changes" update response,
// which callers treat as a successful no-op.
func IsNoUpdates(err error) bool {
	return errorCode(err) == "ValidationError" &&
		strings.Contains(errorMessage(err), "No updates are to be performed")
}

// IsThrottling checks if the error indicates API rate limiting.
func IsThrottling(err error) bool {
	switch errorCode(err) {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}

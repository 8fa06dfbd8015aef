package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// ec2TrustPolicy lets EC2 instances assume the build role.
const ec2TrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// s3ReadPolicyARN grants build instances read access to the staging bucket.
const s3ReadPolicyARN = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"

// EnsureInstanceProfile creates the build role and instance profile pair.
// Every step tolerates "already exists", so re-running against a partially
// created profile converges instead of failing.
func (c *RealClient) EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (CreateOutcome, error) {
	outcome := OutcomeCreated

	_, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(ec2TrustPolicy),
	})
	if err != nil {
		if !IsAlreadyExists(err) {
			return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
		}
		outcome = OutcomeAlreadyExisted
	}

	_, err = c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(s3ReadPolicyARN),
	})
	if err != nil && !IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to attach policy to role %s: %w", roleName, err)
	}

	_, err = c.iam.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil && !IsAlreadyExists(err) {
		return "", fmt.Errorf("failed to create instance profile %s: %w", profileName, err)
	}

	_, err = c.iam.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil && !IsAlreadyExists(err) && errorCode(err) != "LimitExceeded" {
		return "", fmt.Errorf("failed to add role %s to profile %s: %w", roleName, profileName, err)
	}

	return outcome, nil
}

// DeleteInstanceProfile tears down the profile and role pair. Each step is
// independent and tolerates missing entities.
func (c *RealClient) DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error {
	_, err := c.iam.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to remove role %s from profile %s: %w", roleName, profileName, err)
	}

	_, err = c.iam.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete instance profile %s: %w", profileName, err)
	}

	_, err = c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(s3ReadPolicyARN),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to detach policy from role %s: %w", roleName, err)
	}

	_, err = c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}

	return nil
}

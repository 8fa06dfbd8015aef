package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

// RegisterTarget adds an instance to a target group.
func (c *RealClient) RegisterTarget(ctx context.Context, targetGroupARN, instanceID string) error {
	_, err := c.elb.RegisterTargets(ctx, &elasticloadbalancingv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(targetGroupARN),
		Targets: []elbtypes.TargetDescription{
			{Id: aws.String(instanceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register %s with target group: %w", instanceID, err)
	}
	return nil
}

// DeregisterTarget removes an instance from a target group. A target that is
// already gone is not an error.
func (c *RealClient) DeregisterTarget(ctx context.Context, targetGroupARN, instanceID string) error {
	_, err := c.elb.DeregisterTargets(ctx, &elasticloadbalancingv2.DeregisterTargetsInput{
		TargetGroupArn: aws.String(targetGroupARN),
		Targets: []elbtypes.TargetDescription{
			{Id: aws.String(instanceID)},
		},
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to deregister %s from target group: %w", instanceID, err)
	}
	return nil
}

// TargetHealth reports the health state of one instance in a target group.
func (c *RealClient) TargetHealth(ctx context.Context, targetGroupARN, instanceID string) (string, error) {
	out, err := c.elb.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
		Targets: []elbtypes.TargetDescription{
			{Id: aws.String(instanceID)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe target health of %s: %w", instanceID, err)
	}
	if len(out.TargetHealthDescriptions) == 0 || out.TargetHealthDescriptions[0].TargetHealth == nil {
		return "", fmt.Errorf("no health information for target %s", instanceID)
	}
	return string(out.TargetHealthDescriptions[0].TargetHealth.State), nil
}

package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// DescribeStack returns the current stack status and outputs, or nil if no
// stack of that name exists.
func (c *RealClient) DescribeStack(ctx context.Context, name string) (*StackInfo, error) {
	out, err := c.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}

	stack := out.Stacks[0]
	info := &StackInfo{
		Name:    name,
		Status:  string(stack.StackStatus),
		Outputs: make(map[string]string, len(stack.Outputs)),
	}
	for _, o := range stack.Outputs {
		info.Outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return info, nil
}

// CreateStack submits a stack creation request.
func (c *RealClient) CreateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) error {
	_, err := c.cfn.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(templateBody),
		Parameters:   stackParameters(params),
		Capabilities: stackCapabilities(capabilities),
	})
	if err != nil {
		return fmt.Errorf("failed to create stack %s: %w", name, err)
	}
	return nil
}

// UpdateStack submits a stack update. A "no updates are to be performed"
// response is reported as noop=true with a nil error.
func (c *RealClient) UpdateStack(ctx context.Context, name, templateBody string, params map[string]string, capabilities []string) (bool, error) {
	_, err := c.cfn.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(templateBody),
		Parameters:   stackParameters(params),
		Capabilities: stackCapabilities(capabilities),
	})
	if err != nil {
		if IsNoUpdates(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to update stack %s: %w", name, err)
	}
	return false, nil
}

// DeleteStack requests stack deletion. Deleting a missing stack is not an error.
func (c *RealClient) DeleteStack(ctx context.Context, name string) error {
	_, err := c.cfn.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}
	return nil
}

// LastStackEvent summarizes the most recent stack event. Used to annotate
// DeploymentError so the operator sees what the provider reported last.
func (c *RealClient) LastStackEvent(ctx context.Context, name string) (string, error) {
	out, err := c.cfn.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe stack events for %s: %w", name, err)
	}
	if len(out.StackEvents) == 0 {
		return "", nil
	}

	ev := out.StackEvents[0]
	summary := fmt.Sprintf("%s %s: %s",
		aws.ToString(ev.LogicalResourceId),
		string(ev.ResourceStatus),
		aws.ToString(ev.ResourceStatusReason))
	return summary, nil
}

func stackParameters(params map[string]string) []cfntypes.Parameter {
	out := make([]cfntypes.Parameter, 0, len(params))
	for k, v := range params {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(v),
		})
	}
	return out
}

func stackCapabilities(capabilities []string) []cfntypes.Capability {
	out := make([]cfntypes.Capability, 0, len(capabilities))
	for _, c := range capabilities {
		out = append(out, cfntypes.Capability(c))
	}
	return out
}

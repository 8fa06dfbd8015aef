package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// InvokeFunction synchronously invokes a deployed function and returns its
// response payload. Used to seed test credentials after stack convergence.
func (c *RealClient) InvokeFunction(ctx context.Context, name string, payload []byte) ([]byte, error) {
	out, err := c.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(name),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke function %s: %w", name, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("function %s reported error %s: %s", name, aws.ToString(out.FunctionError), string(out.Payload))
	}
	return out.Payload, nil
}

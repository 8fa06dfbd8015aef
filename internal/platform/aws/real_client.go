package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/psforge/psforge/internal/config"
)

// RealClient implements CloudManager against the live AWS APIs.
type RealClient struct {
	ec2      *ec2.Client
	cfn      *cloudformation.Client
	elb      *elasticloadbalancingv2.Client
	iam      *iam.Client
	lambda   *lambda.Client
	timeouts *config.Timeouts
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// NewRealClient creates service clients for the given region using the
// default credential chain.
func NewRealClient(ctx context.Context, region string, opts ...ClientOption) (*RealClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &RealClient{
		ec2:      ec2.NewFromConfig(cfg),
		cfn:      cloudformation.NewFromConfig(cfg),
		elb:      elasticloadbalancingv2.NewFromConfig(cfg),
		iam:      iam.NewFromConfig(cfg),
		lambda:   lambda.NewFromConfig(cfg),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ensure interface compliance.
var _ CloudManager = (*RealClient)(nil)

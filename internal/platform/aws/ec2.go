package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/psforge/psforge/internal/util/retry"
)

// RunInstance launches a single instance and returns its ID.
func (c *RealClient) RunInstance(ctx context.Context, opts InstanceRunOpts) (string, error) {
	tags := make([]ec2types.Tag, 0, len(opts.Tags)+1)
	tags = append(tags, ec2types.Tag{Key: aws.String("Name"), Value: aws.String(opts.Name)})
	for k, v := range opts.Tags {
		tags = append(tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(opts.ImageID),
		InstanceType: ec2types.InstanceType(opts.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         tags,
		}},
	}
	if opts.KeyName != "" {
		input.KeyName = aws.String(opts.KeyName)
	}
	if opts.SecurityGroupID != "" {
		input.SecurityGroupIds = []string{opts.SecurityGroupID}
	}
	if opts.SubnetID != "" {
		input.SubnetId = aws.String(opts.SubnetID)
	}
	if opts.ProfileName != "" {
		input.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(opts.ProfileName),
		}
	}

	var out *ec2.RunInstancesOutput
	backoff := retry.Backoff{Attempts: c.timeouts.RetryMaxAttempts, Initial: c.timeouts.RetryInitialDelay}
	err := backoff.Do(ctx, func() error {
		var runErr error
		out, runErr = c.ec2.RunInstances(ctx, input)
		if runErr != nil && !IsThrottling(runErr) {
			return retry.Fatal(runErr)
		}
		return runErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch instance %s: %w", opts.Name, err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("launch of %s returned no instances", opts.Name)
	}
	return aws.ToString(out.Instances[0].InstanceId), nil
}

// DescribeInstance reports the current state and addresses of an instance.
func (c *RealClient) DescribeInstance(ctx context.Context, instanceID string) (*InstanceInfo, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return instanceInfo(inst), nil
		}
	}
	return nil, fmt.Errorf("instance %s not found", instanceID)
}

// TerminateInstance terminates an instance. Terminating an already-gone
// instance is not an error.
func (c *RealClient) TerminateInstance(ctx context.Context, instanceID string) error {
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
	}
	return nil
}

// FindInstancesByTag returns non-terminated instances carrying the tag.
func (c *RealClient) FindInstancesByTag(ctx context.Context, key, value string) ([]InstanceInfo, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:" + key), Values: []string{value}},
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find instances by tag %s=%s: %w", key, value, err)
	}

	var infos []InstanceInfo
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			infos = append(infos, *instanceInfo(inst))
		}
	}
	return infos, nil
}

func instanceInfo(inst ec2types.Instance) *InstanceInfo {
	info := &InstanceInfo{
		ID:        aws.ToString(inst.InstanceId),
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		info.State = string(inst.State.Name)
	}
	return info
}

// CreateImage requests an AMI capture of the instance.
func (c *RealClient) CreateImage(ctx context.Context, instanceID, name string, tags map[string]string) (string, error) {
	imageTags := make([]ec2types.Tag, 0, len(tags)+1)
	imageTags = append(imageTags, ec2types.Tag{Key: aws.String("Name"), Value: aws.String(name)})
	for k, v := range tags {
		imageTags = append(imageTags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	out, err := c.ec2.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId: aws.String(instanceID),
		Name:       aws.String(name),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeImage,
			Tags:         imageTags,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create image %s from %s: %w", name, instanceID, err)
	}
	return aws.ToString(out.ImageId), nil
}

// DescribeImageState returns the image state, or "" if the image is gone.
func (c *RealClient) DescribeImageState(ctx context.Context, imageID string) (string, error) {
	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe image %s: %w", imageID, err)
	}
	if len(out.Images) == 0 {
		return "", nil
	}
	return string(out.Images[0].State), nil
}

// ImageSnapshots returns the EBS snapshot IDs backing the image. These are
// captured before deregistration so cleanup can delete them afterwards.
func (c *RealClient) ImageSnapshots(ctx context.Context, imageID string) ([]string, error) {
	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe image %s: %w", imageID, err)
	}

	var snapshots []string
	for _, img := range out.Images {
		for _, bdm := range img.BlockDeviceMappings {
			if bdm.Ebs != nil && bdm.Ebs.SnapshotId != nil {
				snapshots = append(snapshots, aws.ToString(bdm.Ebs.SnapshotId))
			}
		}
	}
	return snapshots, nil
}

// DeregisterImage deregisters an AMI. Already-gone images are not an error.
func (c *RealClient) DeregisterImage(ctx context.Context, imageID string) error {
	_, err := c.ec2.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(imageID),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to deregister image %s: %w", imageID, err)
	}
	return nil
}

// DeleteSnapshot deletes an EBS snapshot. Already-gone snapshots are not an error.
func (c *RealClient) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := c.ec2.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshotID, err)
	}
	return nil
}

// ImportKeyPair registers a public key under the given name.
func (c *RealClient) ImportKeyPair(ctx context.Context, name string, publicKey []byte) (CreateOutcome, error) {
	_, err := c.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: publicKey,
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return OutcomeAlreadyExisted, nil
		}
		return "", fmt.Errorf("failed to import key pair %s: %w", name, err)
	}
	return OutcomeCreated, nil
}

// DeleteKeyPair removes a key pair. Already-gone key pairs are not an error.
func (c *RealClient) DeleteKeyPair(ctx context.Context, name string) error {
	_, err := c.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete key pair %s: %w", name, err)
	}
	return nil
}

// EnsureSecurityGroup creates the build security group with TCP ingress on
// the given ports, adopting an existing group of the same name.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, name, description, vpcID string, ports []int32) (string, CreateOutcome, error) {
	outcome := OutcomeCreated

	out, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
		VpcId:       aws.String(vpcID),
	})

	var groupID string
	switch {
	case err == nil:
		groupID = aws.ToString(out.GroupId)
	case IsAlreadyExists(err):
		outcome = OutcomeAlreadyExisted
		groupID, err = c.securityGroupID(ctx, name, vpcID)
		if err != nil {
			return "", "", err
		}
	default:
		return "", "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}

	perms := make([]ec2types.IpPermission, 0, len(ports))
	for _, port := range ports {
		perms = append(perms, ec2types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		})
	}
	if len(perms) > 0 {
		_, err = c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: perms,
		})
		if err != nil && !IsAlreadyExists(err) {
			return "", "", fmt.Errorf("failed to authorize ingress on %s: %w", name, err)
		}
	}

	return groupID, outcome, nil
}

func (c *RealClient) securityGroupID(ctx context.Context, name, vpcID string) (string, error) {
	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up security group %s: %w", name, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", fmt.Errorf("security group %s not found in VPC %s", name, vpcID)
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}

// DeleteSecurityGroup removes the group by name. Retries while the group is
// still attached to a terminating instance; already-gone groups are not an error.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, name, vpcID string) error {
	groupID, err := c.securityGroupID(ctx, name, vpcID)
	if err != nil {
		// Not found is success for deletion.
		return nil
	}

	backoff := retry.Backoff{Attempts: c.timeouts.RetryMaxAttempts, Initial: c.timeouts.RetryInitialDelay}
	return backoff.Do(ctx, func() error {
		_, err := c.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(groupID),
		})
		if err == nil || IsNotFound(err) {
			return nil
		}
		// DependencyViolation while instances drain is transient.
		if errorCode(err) == "DependencyViolation" {
			return err
		}
		return retry.Fatal(fmt.Errorf("failed to delete security group %s: %w", name, err))
	})
}

// DefaultVPC returns the default VPC ID, or "" when the account has none.
func (c *RealClient) DefaultVPC(ctx context.Context) (string, error) {
	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("is-default"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up default VPC: %w", err)
	}
	if len(out.Vpcs) == 0 {
		return "", nil
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

// FirstSubnet returns a subnet of the VPC suitable for launching into.
func (c *RealClient) FirstSubnet(ctx context.Context, vpcID string) (string, error) {
	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list subnets of %s: %w", vpcID, err)
	}
	if len(out.Subnets) == 0 {
		return "", fmt.Errorf("VPC %s has no subnets", vpcID)
	}
	return aws.ToString(out.Subnets[0].SubnetId), nil
}

// Package naming derives resource names from the deployment stack name.
// All AWS resources created outside the stack template follow these patterns
// so that cleanup can find them again.
package naming

import (
	"fmt"
	"strings"
)

func BuildSecurityGroup(stackName string) string {
	return fmt.Sprintf("%s-build-sg", stackName)
}

func StagingBucket(stackName, region string) string {
	// Bucket names are global and must be lowercase.
	return strings.ToLower(fmt.Sprintf("%s-staging-%s", stackName, region))
}

func InstanceProfile(stackName string) string {
	return fmt.Sprintf("%s-build-profile", stackName)
}

func InstanceRole(stackName string) string {
	return fmt.Sprintf("%s-build-role", stackName)
}

func BuildInstance(stackName, role string) string {
	return fmt.Sprintf("%s-build-%s", stackName, strings.ToLower(role))
}

func ServiceInstance(stackName, role string) string {
	return fmt.Sprintf("%s-%s", stackName, strings.ToLower(role))
}

func Image(stackName, role string) string {
	return fmt.Sprintf("%s-%s-ami", stackName, strings.ToLower(role))
}

func ResultsFile(stackName string) string {
	return fmt.Sprintf("%s-outputs.yaml", stackName)
}

func PrivateKeyFile(keyPairName string) string {
	return fmt.Sprintf("%s.pem", keyPairName)
}

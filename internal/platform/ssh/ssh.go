// Package ssh executes commands on build instances over SSH.
//
// This is the boundary to the in-instance provisioning collaborator: the
// orchestrator runs the provisioning script remotely and only observes its
// exit status.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config holds the connection parameters for a build instance.
type Config struct {
	Host       string
	User       string
	PrivateKey []byte
	// DialTimeout bounds a single connection attempt. Zero means 10s.
	DialTimeout time.Duration
}

// Executor runs commands on a remote host. Implemented by Client; faked in
// tests.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// Client is an SSH command executor for a single host.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient parses the private key and prepares a client. No connection is
// made until Execute is called.
func NewClient(config *Config) (*Client, error) {
	signer, err := ssh.ParsePrivateKey(config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &Client{config: config, signer: signer}, nil
}

// Ensure interface compliance.
var _ Executor = (*Client)(nil)

// Execute dials the host and runs a single command, returning the combined
// output. The dial respects ctx; the command itself runs to completion.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	clientConfig := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		// Build instances are freshly launched; there is no prior host key.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
		Timeout:         c.config.DialTimeout,
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	client, err := ssh.Dial("tcp", c.config.Host+":22", clientConfig)
	if err != nil {
		return "", fmt.Errorf("failed to dial %s: %w", c.config.Host, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", c.config.Host, err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return output.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			return output.String(), fmt.Errorf("remote command failed on %s: %w", c.config.Host, err)
		}
		return output.String(), nil
	}
}

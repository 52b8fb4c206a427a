// Package sshx implements the remote command channel. All remote
// provisioning, deployment and teardown flows through a single SSH round
// trip per unit; the remote host is otherwise opaque.
package sshx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Client
// =============================================================================

// Config configures the SSH client.
type Config struct {
	User           string
	Host           string
	Port           int           // Default: 22
	KeyPath        string        // Path to the private key file; read-only input
	ConnectTimeout time.Duration // Default: 5 seconds
	CommandTimeout time.Duration // Default: 15 minutes (remote unit includes package installs)
}

// Client executes commands on the remote host over SSH.
type Client struct {
	config    Config
	signer    ssh.Signer
	sshClient *ssh.Client
	mu        sync.Mutex // protects sshClient
}

// NewClient creates an SSH client from the given config. The private key
// is read once at construction; the file itself is never mutated.
func NewClient(config Config) (*Client, error) {
	key, err := os.ReadFile(config.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", config.KeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key: %w", err)
	}

	if config.Port == 0 {
		config.Port = 22
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = 15 * time.Minute
	}

	return &Client{config: config, signer: signer}, nil
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (c *Client) connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		// Check if the connection is still alive
		_, _, err := c.sshClient.SendRequest("keepalive@shipway", true, nil)
		if err == nil {
			return nil
		}
		// Connection dead, reconnect
		c.sshClient.Close()
		c.sshClient = nil
	}

	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: known_hosts verification
		Timeout:         c.config.ConnectTimeout,
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("SSH dial %s: %w", addr, err)
	}

	c.sshClient = client
	return nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient != nil {
		err := c.sshClient.Close()
		c.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Connectivity Probe
// =============================================================================

// Probe performs a non-interactive, bounded-timeout reachability and
// authentication check by running a no-op remote command. It deliberately
// does not distinguish timeout, unreachable host and rejected credentials:
// all collapse into one error.
func (c *Client) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	if err := c.connect(probeCtx); err != nil {
		return err
	}

	c.mu.Lock()
	session, err := c.sshClient.NewSession()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	go func() {
		done <- session.Run("true")
	}()

	select {
	case <-probeCtx.Done():
		return fmt.Errorf("connectivity probe timed out after %v", c.config.ConnectTimeout)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("remote no-op command: %w", err)
		}
		return nil
	}
}

// =============================================================================
// Script Execution
// =============================================================================

// RunScript transmits a shell script over one round trip and blocks until
// it finishes. Combined stdout/stderr is streamed line by line through
// onLine so remote log output reaches the shared sink as it happens.
//
// The returned int is the remote exit status. A non-zero status is not an
// error here: the remote unit encodes its failure kind in the status, and
// mapping it is the caller's job. The error return covers channel-level
// failures only (dial, session, timeout).
func (c *Client) RunScript(ctx context.Context, script string, onLine func(string)) (int, error) {
	if err := c.connect(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	session, err := c.sshClient.NewSession()
	c.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("create SSH session: %w", err)
	}
	defer session.Close()

	session.Stdin = strings.NewReader(script)

	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		err := session.Run("/bin/sh -s")
		pw.Close()
		done <- err
	}()

	select {
	case <-ctx.Done():
		pw.Close()
		wg.Wait()
		return 0, ctx.Err()
	case <-time.After(c.config.CommandTimeout):
		pw.Close()
		wg.Wait()
		return 0, fmt.Errorf("remote execution timed out after %v", c.config.CommandTimeout)
	case err := <-done:
		wg.Wait()
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return 0, fmt.Errorf("run remote script: %w", err)
	}
}

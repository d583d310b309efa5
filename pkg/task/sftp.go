package task

import (
	"fmt"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// reconnectEligibleMarkers lists the substring markers worth a
// reconnect attempt rather than an immediate per-file skip.
var reconnectEligibleMarkers = []string{
	"not connected",
	"connection reset",
	"connection refused",
	"EOF",
	"use of closed network connection",
}

func isReconnectEligible(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range reconnectEligibleMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// sftpConn owns the ssh.Client/sftp.Client pair and the credentials used to
// re-establish it after a reconnect-eligible failure.
type sftpConn struct {
	creds  model.TaskCredentials
	ssh    *ssh.Client
	client *sftp.Client
}

// dial implements the auth order: password first if present,
// then private key, then whatever single credential is available.
func dial(creds model.TaskCredentials) (*sftpConn, error) {
	var methods []ssh.AuthMethod
	if creds.Password != "" {
		methods = append(methods, ssh.Password(creds.Password))
	}
	if len(creds.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(creds.PrivateKey)
		if err != nil {
			return nil, errtypes.ConfigMissing(fmt.Sprintf("parse private key: %s", err))
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if len(methods) == 0 {
		return nil, errtypes.ConfigMissing("task has no usable SFTP credential")
	}

	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	addr := fmt.Sprintf("%s:%d", creds.Host, port(creds))

	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	client, err := sftp.NewClient(sshClient, sftp.MaxConcurrentRequestsPerFile(64))
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp handshake: %w", err)
	}

	return &sftpConn{creds: creds, ssh: sshClient, client: client}, nil
}

func port(creds model.TaskCredentials) int {
	if creds.Port > 0 {
		return creds.Port
	}
	return 22
}

func (c *sftpConn) close() {
	if c.client != nil {
		c.client.Close()
	}
	if c.ssh != nil {
		c.ssh.Close()
	}
}

// reconnect tears down the current connection and dials again with the
// same credentials, counting toward the per-run reconnect cap.
func (c *sftpConn) reconnect() error {
	c.close()
	fresh, err := dial(c.creds)
	if err != nil {
		return err
	}
	c.ssh = fresh.ssh
	c.client = fresh.client
	return nil
}

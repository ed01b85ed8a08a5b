package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/carvesec/carve/pkg/config"
)

// SSHProber performs a handshake plus authentication against the box's
// SSH daemon. No session is opened; a successful auth is the check.
type SSHProber struct {
	Spec *config.SSHCheckSpec
}

// NewSSHProber creates an SSH prober.
func NewSSHProber(spec *config.SSHCheckSpec) *SSHProber {
	return &SSHProber{Spec: spec}
}

func (p *SSHProber) authMethods() ([]ssh.AuthMethod, error) {
	if p.Spec.KeyPath != "" {
		data, err := os.ReadFile(p.Spec.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read key %s: %w", p.Spec.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", p.Spec.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(p.Spec.Password)}, nil
}

// Probe dials host:port and authenticates with the configured password
// or key file.
func (p *SSHProber) Probe(ctx context.Context, host string) Result {
	start := time.Now()

	auth, err := p.authMethods()
	if err != nil {
		return failure(start, "ssh auth setup: %v", err)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", p.Spec.Port))
	dialer := net.Dialer{Timeout: DefaultTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failure(start, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	clientConfig := &ssh.ClientConfig{
		User:            p.Spec.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         DefaultTimeout,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		return failure(start, "ssh handshake with %s: %v", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	client.Close()

	return success(start, "authenticated as %s on %s", p.Spec.Username, addr)
}

package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Transport is the command boundary between the Controller and the remote
// headstage: stage per-chip command words, run a status/init command, and
// report liveness. This is the equivalent of the sdr package's Sdr
// interface, transformed from an IQ-sample I/O boundary to a
// command/status boundary.
type Transport interface {
	// RunCommand executes a single shell command on the remote host and
	// returns its combined output.
	RunCommand(ctx context.Context, cmd string) (string, error)

	// WriteChipWords stages the given command words for chipPath (the
	// device's per-chip FIFO path) by uploading a file and concatenating
	// it in via the configured aggregator tool.
	WriteChipWords(ctx context.Context, chipPath string, words []uint32) error

	// Ping probes liveness with a trivial command under the given
	// deadline.
	Ping(ctx context.Context) error

	Close() error
}

// SSHConfig parametrizes the SSH/SFTP transport.
type SSHConfig struct {
	Addr           string
	ClientConfig   *ssh.ClientConfig
	AggregatorTool string // path to the "write_evenly" style vendor tool
	DeleteStaged   bool
}

// SSHTransport talks to the remote headstage over a persistent SSH
// session, staging per-chip command files through SFTP and concatenating
// them into device FIFOs with the configured aggregator tool — the Go
// counterpart of the original's paramiko-based SshConnection.
type SSHTransport struct {
	cfg    SSHConfig
	client *ssh.Client
	sftp   *sftp.Client
}

// DialSSHTransport opens a persistent SSH connection and SFTP subsystem.
func DialSSHTransport(cfg SSHConfig) (*SSHTransport, error) {
	client, err := ssh.Dial("tcp", cfg.Addr, cfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("device: ssh dial %s: %w", cfg.Addr, err)
	}
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("device: sftp subsystem: %w", err)
	}
	return &SSHTransport{cfg: cfg, client: client, sftp: sftpClient}, nil
}

func (t *SSHTransport) RunCommand(ctx context.Context, cmd string) (string, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("device: new ssh session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return out.String(), fmt.Errorf("device: command %q: %w", cmd, err)
		}
		return out.String(), nil
	}
}

func (t *SSHTransport) WriteChipWords(ctx context.Context, chipPath string, words []uint32) error {
	stagedPath := chipPath + ".staged"
	f, err := t.sftp.Create(stagedPath)
	if err != nil {
		return fmt.Errorf("device: staging %s: %w", stagedPath, err)
	}
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("device: writing staged command file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("device: closing staged command file: %w", err)
	}

	cmd := fmt.Sprintf("%s %s %s", t.cfg.AggregatorTool, stagedPath, chipPath)
	if _, err := t.RunCommand(ctx, cmd); err != nil {
		return fmt.Errorf("device: aggregating to %s: %w", chipPath, err)
	}
	if t.cfg.DeleteStaged {
		_ = t.sftp.Remove(stagedPath)
	}
	return nil
}

func (t *SSHTransport) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err := t.RunCommand(ctx, "true")
	return err
}

func (t *SSHTransport) Close() error {
	t.sftp.Close()
	return t.client.Close()
}

// FakeTransport is an in-memory Transport test double, in the spirit of
// the teacher's mock package: a Config of optional callbacks lets tests
// inject failures and observe writes.
type FakeTransport struct {
	Config FakeTransportConfig

	Written map[string][]uint32
}

// FakeTransportConfig lets a test override any Transport behavior; an
// unset field falls back to a trivial success.
type FakeTransportConfig struct {
	RunCommand func(ctx context.Context, cmd string) (string, error)
	Ping       func(ctx context.Context) error
}

// NewFakeTransport constructs a FakeTransport ready to record writes.
func NewFakeTransport(cfg FakeTransportConfig) *FakeTransport {
	return &FakeTransport{Config: cfg, Written: make(map[string][]uint32)}
}

func (f *FakeTransport) RunCommand(ctx context.Context, cmd string) (string, error) {
	if f.Config.RunCommand != nil {
		return f.Config.RunCommand(ctx, cmd)
	}
	return "", nil
}

func (f *FakeTransport) WriteChipWords(ctx context.Context, chipPath string, words []uint32) error {
	f.Written[chipPath] = append(f.Written[chipPath], words...)
	return nil
}

func (f *FakeTransport) Ping(ctx context.Context) error {
	if f.Config.Ping != nil {
		return f.Config.Ping(ctx)
	}
	return nil
}

func (f *FakeTransport) Close() error { return nil }

package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 2
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
	defaultRemoteDir   = "/tmp/provision"
)

// Config holds executor settings shared by every node.
type Config struct {
	Port int

	// DialTimeout bounds establishing the TCP connection and handshake.
	DialTimeout time.Duration

	// MaxRetries is the number of redials after a failed connection.
	// Reachability is polled by the caller, so this stays small.
	MaxRetries int
	RetryDelay time.Duration

	// RemoteDir receives roles, configs and cookbooks on the node.
	RemoteDir string

	// RecipesPath is a local cookbook directory uploaded before every
	// provisioning run. Empty means the node already has its cookbooks.
	RecipesPath string

	// HostKeyCallback defaults to accepting any key, as nodes are
	// created by the same run that connects to them.
	HostKeyCallback ssh.HostKeyCallback

	// Sleeper is used between redials.
	Sleeper retry.Sleeper
}

// Executor implements provisioning.RemoteExecutor over SSH.
type Executor struct {
	config Config

	mu      sync.Mutex
	signers map[string]ssh.Signer

	readKey func(name string) ([]byte, error)
}

var _ provisioning.RemoteExecutor = (*Executor)(nil)

// NewExecutor creates an executor. cfg is copied; zero fields get defaults.
func NewExecutor(cfg Config) *Executor {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = defaultRemoteDir
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // nodes are ephemeral
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = retry.Sleep
	}
	return &Executor{
		config:  cfg,
		signers: map[string]ssh.Signer{},
		readKey: os.ReadFile,
	}
}

// RunCommand runs command on the node and returns its combined output.
func (e *Executor) RunCommand(ctx context.Context, conn netsettings.Record, command string) (string, error) {
	client, closeClient, err := e.connect(ctx, conn)
	if err != nil {
		return "", err
	}
	defer closeClient()

	return run(client, conn.Network, command, nil)
}

// Configure uploads files, writes the chef-solo configuration and runs
// chef-solo with configs/<configName> as the node attributes.
func (e *Executor) Configure(ctx context.Context, conn netsettings.Record, configName string, files []provisioning.FileTransfer) error {
	client, closeClient, err := e.connect(ctx, conn)
	if err != nil {
		return err
	}
	defer closeClient()

	dir := e.config.RemoteDir
	sudo := sudoPrefix(conn.User)

	if e.config.RecipesPath != "" {
		archive, err := tarDirectory(e.config.RecipesPath)
		if err != nil {
			return fmt.Errorf("failed to pack cookbooks: %w", err)
		}
		cookbooks := path.Join(dir, "cookbooks")
		cmd := fmt.Sprintf("%smkdir -p %s && %star -xf - -C %s", sudo, quote(cookbooks), sudo, quote(cookbooks))
		if _, err := run(client, conn.Network, cmd, bytes.NewReader(archive)); err != nil {
			return fmt.Errorf("failed to upload cookbooks: %w", err)
		}
	}

	for _, file := range files {
		data, err := os.ReadFile(file.Source)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file.Source, err)
		}
		if err := upload(client, conn, remotePath(dir, file.Target), data); err != nil {
			return err
		}
	}

	if err := upload(client, conn, path.Join(dir, "solo.rb"), soloConfig(dir)); err != nil {
		return err
	}

	cmd := fmt.Sprintf("%schef-solo -c %s -j %s", sudo,
		quote(path.Join(dir, "solo.rb")), quote(path.Join(dir, "configs", configName)))
	if _, err := run(client, conn.Network, cmd, nil); err != nil {
		return fmt.Errorf("chef-solo failed: %w", err)
	}
	return nil
}

func (e *Executor) signer(keyFile string) (ssh.Signer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.signers[keyFile]; ok {
		return s, nil
	}
	if keyFile == "" {
		return nil, errors.New("no key file configured for the node")
	}
	pem, err := e.readKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	s, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	e.signers[keyFile] = s
	return s, nil
}

// connect dials the node. The client is also closed when ctx ends, which
// aborts a running session.
func (e *Executor) connect(ctx context.Context, conn netsettings.Record) (*ssh.Client, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if conn.Network == "" {
		return nil, nil, errors.New("node has no network address")
	}
	if conn.User == "" {
		return nil, nil, fmt.Errorf("no login user for %s", conn.Network)
	}
	signer, err := e.signer(conn.KeyFile)
	if err != nil {
		return nil, nil, err
	}

	config := &ssh.ClientConfig{
		User:            conn.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: e.config.HostKeyCallback,
		Timeout:         e.config.DialTimeout,
	}
	addr := net.JoinHostPort(conn.Network, strconv.Itoa(e.config.Port))

	var client *ssh.Client
	err = retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = dial(ctx, addr, config)
		return dialErr
	},
		retry.WithMaxRetries(e.config.MaxRetries),
		retry.WithInitialDelay(e.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
		retry.WithSleeper(e.config.Sleeper),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	return client, func() {
		stop()
		_ = client.Close()
	}, nil
}

func dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: config.Timeout}
	tcp, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	_ = tcp.SetDeadline(time.Now().Add(config.Timeout))
	c, chans, reqs, err := ssh.NewClientConn(tcp, addr, config)
	if err != nil {
		_ = tcp.Close()
		return nil, err
	}
	_ = tcp.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// run executes command in a new session, feeding stdin when given.
func run(client *ssh.Client, host, command string, stdin io.Reader) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", host, err)
	}
	defer func() { _ = session.Close() }()

	if stdin != nil {
		session.Stdin = stdin
	}
	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("command failed on %s: %w\nCommand: %s\nOutput: %s",
			host, err, command, string(output))
	}
	return string(output), nil
}

func upload(client *ssh.Client, conn netsettings.Record, target string, data []byte) error {
	sudo := sudoPrefix(conn.User)
	cmd := fmt.Sprintf("%smkdir -p %s && %stee %s > /dev/null",
		sudo, quote(path.Dir(target)), sudo, quote(target))
	if _, err := run(client, conn.Network, cmd, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", target, err)
	}
	return nil
}

func remotePath(dir, target string) string {
	if path.IsAbs(target) {
		return target
	}
	return path.Join(dir, target)
}

func soloConfig(dir string) []byte {
	return fmt.Appendf(nil, "file_cache_path %q\ncookbook_path %q\nrole_path %q\n",
		path.Join(dir, "cache"), path.Join(dir, "cookbooks"), path.Join(dir, "roles"))
}

func sudoPrefix(user string) string {
	if user == "root" {
		return ""
	}
	return "sudo "
}

// quote single-quotes s for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

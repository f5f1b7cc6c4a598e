package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/util/keygen"
)

// execRequest is one command received by the test server.
type execRequest struct {
	User    string
	Command string
	Stdin   []byte
}

// handlerFunc answers a command with its output and exit status.
type handlerFunc func(req execRequest) (string, uint32)

// testServer is an in-process SSH server that records exec requests.
type testServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	handler  handlerFunc

	mu    sync.Mutex
	execs []execRequest
}

// succeed answers every command with empty output and status zero.
func succeed(execRequest) (string, uint32) { return "", 0 }

func startServer(t *testing.T, authorized []byte, handler handlerFunc) *testServer {
	t.Helper()

	authorizedKey, _, _, _, err := ssh.ParseAuthorizedKey(authorized)
	if err != nil {
		t.Fatalf("parse authorized key: %v", err)
	}
	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorizedKey.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	config.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &testServer{listener: l, config: config, handler: handler}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) requests() []execRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]execRequest(nil), s.execs...)
}

func (s *testServer) serve(conn net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer func() { _ = sconn.Close() }()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "sessions only")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.session(sconn.User(), ch, requests)
	}
}

func (s *testServer) session(user string, ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		stdin, _ := io.ReadAll(ch)
		exec := execRequest{User: user, Command: payload.Command, Stdin: stdin}
		s.mu.Lock()
		s.execs = append(s.execs, exec)
		s.mu.Unlock()

		output, status := s.handler(exec)
		_, _ = io.WriteString(ch, output)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

// nodeKey writes a fresh private key and returns its path and public half.
func nodeKey(t *testing.T) (string, []byte) {
	t.Helper()
	pair, err := keygen.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_rsa")
	if err := os.WriteFile(path, pair.PrivateKey, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, pair.PublicKey
}

func record(keyFile, user string) netsettings.Record {
	return netsettings.Record{Network: "127.0.0.1", KeyFile: keyFile, User: user}
}

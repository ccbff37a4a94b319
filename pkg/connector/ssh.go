package connector

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// sshDialTimeout is the default TCP connect + handshake deadline.
const sshDialTimeout = 15 * time.Second

// SSHAuth configures the credential material tried, in order, during
// authentication: password, then key file, then agent identities filtered
// by comment.
type SSHAuth struct {
	User          string
	Password      string
	KeyFile       string
	KeyPassphrase string
	UseAgent      bool
	AgentComment  string
}

// HostKeyStore abstracts the OS-standard known_hosts file so it can be
// swapped for a test double. A missing or mismatched entry surfaces
// lkerror.HostKeyNotVerified; the command manager passes that error to its
// HostKeyApprover and re-sends the request once if the approver accepts.
// Trust records a key for hostname.
type HostKeyStore interface {
	Callback() ssh.HostKeyCallback
	Trust(hostname string, key ssh.PublicKey) error
}

// fileHostKeyStore reads/writes an OS-standard known_hosts file.
type fileHostKeyStore struct {
	path string
}

// NewFileHostKeyStore opens (creating if absent) the known_hosts file at
// path for host key verification.
func NewFileHostKeyStore(path string) (HostKeyStore, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}

		f.Close()
	}

	return &fileHostKeyStore{path: path}, nil
}

func (s *fileHostKeyStore) Callback() ssh.HostKeyCallback {
	cb, err := knownhosts.New(s.path)
	if err != nil {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			return lkerror.Wrap(lkerror.HostKeyNotVerified, "known_hosts unreadable", err)
		}
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := cb(hostname, remote, key); err != nil {
			return lkerror.Wrap(lkerror.HostKeyNotVerified, fmt.Sprintf("host key for %s not verified", hostname), err)
		}

		return nil
	}
}

func (s *fileHostKeyStore) Trust(hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{hostname}, key)
	_, err = f.WriteString(line + "\n")

	return err
}

// SSH is the stateful connector: one client + at most one in-flight
// streaming session per instance, matching the pool's "serialise
// requests to a stateful connector" rule.
type SSH struct {
	log     logrus.FieldLogger
	auth    SSHAuth
	hostKey HostKeyStore
	address string

	client *ssh.Client

	// streaming state for a SendMessage(waitFull=false)/ReceivePartialResponse pair.
	session    *ssh.Session
	stdout     *bufio.Reader
	accumLog   strings.Builder
	streamDone bool
}

// NewSSH creates an unconnected SSH connector.
func NewSSH(log logrus.FieldLogger, auth SSHAuth, hostKey HostKeyStore) *SSH {
	return &SSH{
		log:     log.WithField("connector", "ssh"),
		auth:    auth,
		hostKey: hostKey,
	}
}

func (s *SSH) authMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if s.auth.Password != "" {
		methods = append(methods, ssh.Password(s.auth.Password))
	}

	if s.auth.KeyFile != "" {
		if signer, err := loadSigner(s.auth.KeyFile, s.auth.KeyPassphrase); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		} else {
			s.log.WithError(err).Warn("failed to load SSH key file")
		}
	}

	if s.auth.UseAgent {
		if signers, err := agentSigners(s.auth.AgentComment); err == nil && len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
	}

	return methods
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(raw, []byte(passphrase))
	}

	return ssh.ParsePrivateKey(raw)
}

func agentSigners(commentFilter string) ([]ssh.Signer, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK not set")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}

	client := agent.NewClient(conn)

	signers, err := client.Signers()
	if err != nil {
		return nil, err
	}

	if commentFilter == "" {
		return signers, nil
	}

	identities, err := client.List()
	if err != nil {
		return signers, nil
	}

	var filtered []ssh.Signer

	for i, id := range identities {
		if i < len(signers) && strings.Contains(id.Comment, commentFilter) {
			filtered = append(filtered, signers[i])
		}
	}

	return filtered, nil
}

// Connect dials and authenticates. Idempotent while already connected.
func (s *SSH) Connect(address string) error {
	if s.IsConnected() {
		return nil
	}

	s.address = address

	config := &ssh.ClientConfig{
		User:            s.auth.User,
		Auth:            s.authMethods(),
		HostKeyCallback: s.hostKey.Callback(),
		Timeout:         sshDialTimeout,
	}

	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) || lkerror.KindOf(err) == lkerror.HostKeyNotVerified {
			return lkerror.Wrap(lkerror.HostKeyNotVerified, address, err)
		}

		return lkerror.Wrap(lkerror.ConnectionFailed, "ssh dial "+address, err)
	}

	s.client = client

	return nil
}

func (s *SSH) IsConnected() bool {
	if s.client == nil {
		return false
	}

	_, _, err := s.client.SendRequest("keepalive@lightkeeper", true, nil)

	return err == nil
}

func (s *SSH) Reconnect() error {
	_ = s.Disconnect()

	return s.Connect(s.address)
}

func (s *SSH) Disconnect() error {
	if s.session != nil {
		_ = s.session.Close()
		s.session = nil
	}

	if s.client == nil {
		return nil
	}

	err := s.client.Close()
	s.client = nil

	return err
}

// SendMessage runs msg as a remote command with stderr merged into stdout.
func (s *SSH) SendMessage(msg string, waitFull bool) (ResponseMessage, error) {
	resp, err := s.sendMessage(msg, waitFull)
	if err != nil && lkerror.KindOf(err) == lkerror.ConnectionFailed {
		if reErr := s.Reconnect(); reErr == nil {
			return s.sendMessage(msg, waitFull)
		}
	}

	return resp, err
}

func (s *SSH) sendMessage(msg string, waitFull bool) (ResponseMessage, error) {
	if !s.IsConnected() {
		if err := s.Connect(s.address); err != nil {
			return ResponseMessage{}, err
		}
	}

	session, err := s.client.NewSession()
	if err != nil {
		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "new session", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()

		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "stdout pipe", err)
	}

	session.Stderr = session.Stdout

	if err := session.Start(msg); err != nil {
		session.Close()

		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "start command", err)
	}

	s.session = session
	s.stdout = bufio.NewReader(stdout)
	s.accumLog.Reset()
	s.streamDone = false

	if waitFull {
		return s.drainFull()
	}

	buf := make([]byte, 4096)

	n, readErr := s.stdout.Read(buf)
	if n > 0 {
		s.accumLog.Write(buf[:n])
	}

	if readErr == io.EOF {
		return s.finish()
	}

	if readErr != nil {
		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "stream read", readErr)
	}

	return Partial(s.accumLog.String(), string(buf[:n])), nil
}

func (s *SSH) drainFull() (ResponseMessage, error) {
	data, err := io.ReadAll(s.stdout)
	if err != nil {
		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "stream read", err)
	}

	s.accumLog.Write(data)

	return s.finish()
}

// ReceivePartialResponse drains the next increment of a stream started by
// SendMessage(waitFull=false).
func (s *SSH) ReceivePartialResponse() (ResponseMessage, error) {
	if s.session == nil || s.streamDone {
		return ResponseMessage{}, errors.New("no in-flight stream")
	}

	buf := make([]byte, 4096)

	n, err := s.stdout.Read(buf)
	if n > 0 {
		s.accumLog.Write(buf[:n])
	}

	if err == io.EOF {
		return s.finish()
	}

	if err != nil {
		s.streamDone = true

		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "stream read", err)
	}

	return Partial(s.accumLog.String(), string(buf[:n])), nil
}

func (s *SSH) finish() (ResponseMessage, error) {
	err := s.session.Wait()
	code := exitCodeOf(err)

	s.session.Close()
	s.session = nil
	s.streamDone = true

	return Final(s.accumLog.String(), code), nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}

	return -1
}

// DownloadFile retrieves a remote file via SFTP.
func (s *SSH) DownloadFile(remotePath string) (FileMetadata, []byte, error) {
	if !s.IsConnected() {
		if err := s.Connect(s.address); err != nil {
			return FileMetadata{}, nil, err
		}
	}

	client, err := sftp.NewClient(s.client)
	if err != nil {
		return FileMetadata{}, nil, lkerror.Wrap(lkerror.ConnectionFailed, "sftp client", err)
	}
	defer client.Close()

	f, err := client.Open(remotePath)
	if err != nil {
		return FileMetadata{}, nil, lkerror.Wrap(lkerror.NotFound, remotePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return FileMetadata{}, nil, lkerror.Wrap(lkerror.Other, "read "+remotePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		return FileMetadata{}, nil, err
	}

	meta := FileMetadata{
		DownloadTime:   time.Now(),
		RemotePath:     remotePath,
		RemoteFileHash: hashBytes(data),
		Permissions:    uint32(info.Mode().Perm()),
	}

	if stat, ok := info.Sys().(*sftp.FileStat); ok {
		meta.OwnerUID = int(stat.UID)
		meta.OwnerGID = int(stat.GID)
	}

	return meta, data, nil
}

// UploadFile writes data to the remote path recorded in metadata.
func (s *SSH) UploadFile(metadata FileMetadata, data []byte) error {
	if !s.IsConnected() {
		if err := s.Connect(s.address); err != nil {
			return err
		}
	}

	client, err := sftp.NewClient(s.client)
	if err != nil {
		return lkerror.Wrap(lkerror.ConnectionFailed, "sftp client", err)
	}
	defer client.Close()

	f, err := client.Create(metadata.RemotePath)
	if err != nil {
		return lkerror.Wrap(lkerror.Other, "create "+metadata.RemotePath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return lkerror.Wrap(lkerror.Other, "write "+metadata.RemotePath, err)
	}

	if metadata.Permissions != 0 {
		_ = client.Chmod(metadata.RemotePath, os.FileMode(metadata.Permissions))
	}

	return nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)

	return fmt.Sprintf("%x", sum)
}

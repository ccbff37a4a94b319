package sidecar

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// ioTimeout bounds every read/write against the sidecar socket.
const ioTimeout = 5 * time.Second

// exitGrace is how long Stop waits for a clean exit after sending an Exit
// request before killing the process.
const exitGrace = 5 * time.Second

// Supervisor spawns the external metrics process once its trust material
// has passed the presence check in New, and speaks the length-prefixed request/response protocol to it
// over a TLS-wrapped Unix socket. Its own internals are out of scope; this
// type only owns the request/response boundary and the process lifecycle.
type Supervisor struct {
	log        logrus.FieldLogger
	binaryPath string
	socketPath string
	tlsConfig  *tls.Config

	cmd  *exec.Cmd
	conn net.Conn

	mu       sync.Mutex
	writeMu  sync.Mutex
	nextID   uint64
	inflight map[uint64]chan Response
}

// New checks that binaryPath exists and that a CA pool and a non-empty
// signature were supplied, and returns an error otherwise. The signature
// is not checked cryptographically against the pool or the binary, so a
// tampered binary with any non-empty signature passes.
func New(log logrus.FieldLogger, binaryPath, socketPath string, caPool *x509.CertPool, signature []byte) (*Supervisor, error) {
	if err := verifySignature(binaryPath, caPool, signature); err != nil {
		return nil, lkerror.Wrap(lkerror.Other, "sidecar signature verification failed", err)
	}

	return &Supervisor{
		log:        log,
		binaryPath: binaryPath,
		socketPath: socketPath,
		tlsConfig:  &tls.Config{ServerName: "lightkeeper-sidecar", MinVersion: tls.VersionTLS12},
		inflight:   make(map[uint64]chan Response),
	}, nil
}

// verifySignature checks that binaryPath exists and that caPool and
// signature are present and non-empty. It does not validate signature
// against caPool or the binary's contents.
func verifySignature(binaryPath string, caPool *x509.CertPool, signature []byte) error {
	if _, err := os.Stat(binaryPath); err != nil {
		return fmt.Errorf("stat sidecar binary: %w", err)
	}

	if caPool == nil || len(signature) == 0 {
		return fmt.Errorf("no trust material configured for sidecar binary")
	}

	return nil
}

// Start spawns the sidecar process, pipes its stderr into the log, and
// dials the TLS Unix socket once the process has had a chance to listen.
func (s *Supervisor) Start() error {
	s.cmd = exec.Command(s.binaryPath, "--socket", s.socketPath)

	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach sidecar stderr: %w", err)
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start sidecar: %w", err)
	}

	go s.readStderr(stderr)

	conn, err := s.dial()
	if err != nil {
		_ = s.cmd.Process.Kill()
		return err
	}

	s.conn = conn

	go s.readLoop()

	return nil
}

func (s *Supervisor) dial() (net.Conn, error) {
	var lastErr error

	deadline := time.Now().Add(ioTimeout)
	for time.Now().Before(deadline) {
		raw, err := net.DialTimeout("unix", s.socketPath, time.Second)
		if err != nil {
			lastErr = err
			time.Sleep(100 * time.Millisecond)
			continue
		}

		tlsConn := tls.Client(raw, s.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			_ = raw.Close()
			lastErr = err
			time.Sleep(100 * time.Millisecond)
			continue
		}

		return tlsConn, nil
	}

	return nil, fmt.Errorf("dial sidecar socket: %w", lastErr)
}

func (s *Supervisor) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.log.WithField("component", "sidecar").Warn(scanner.Text())
	}
}

func (s *Supervisor) readLoop() {
	for {
		var resp Response
		if err := ReadFrame(s.conn, &resp); err != nil {
			s.log.WithError(err).Warn("sidecar connection closed")
			s.failAllInflight()
			return
		}

		s.mu.Lock()
		ch, ok := s.inflight[resp.RequestID]
		if ok {
			delete(s.inflight, resp.RequestID)
		}
		s.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (s *Supervisor) failAllInflight() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.inflight {
		close(ch)
		delete(s.inflight, id)
	}
}

func (s *Supervisor) call(req Request) (Response, error) {
	req.RequestID = atomic.AddUint64(&s.nextID, 1)

	ch := make(chan Response, 1)

	s.mu.Lock()
	s.inflight[req.RequestID] = ch
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	err := WriteFrame(s.conn, req)
	s.writeMu.Unlock()

	if err != nil {
		s.mu.Lock()
		delete(s.inflight, req.RequestID)
		s.mu.Unlock()

		return Response{}, fmt.Errorf("write sidecar request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, fmt.Errorf("sidecar connection closed before response")
		}

		return resp, nil
	case <-time.After(ioTimeout):
		s.mu.Lock()
		delete(s.inflight, req.RequestID)
		s.mu.Unlock()

		return Response{}, lkerror.New(lkerror.Timeout, "sidecar request timed out")
	}
}

// Healthcheck pings the sidecar and returns its reported lag.
func (s *Supervisor) Healthcheck() (time.Duration, error) {
	resp, err := s.call(Request{Type: Healthcheck})
	if err != nil {
		return 0, err
	}

	return time.Duration(resp.LagMS) * time.Millisecond, nil
}

// InsertMetrics writes a batch of observations for hostID/metricID.
func (s *Supervisor) InsertMetrics(hostID, metricID string, metrics []Metric) error {
	_, err := s.call(Request{
		Type:     MetricsInsert,
		HostID:   hostID,
		MetricID: metricID,
		Metrics:  metrics,
	})

	return err
}

// QueryMetrics reads back observations for hostID/metricID in [start, end].
func (s *Supervisor) QueryMetrics(hostID, metricID string, start, end time.Time) (map[string][]Metric, error) {
	resp, err := s.call(Request{
		Type:      MetricsQuery,
		HostID:    hostID,
		MetricID:  metricID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("sidecar query error: %s", resp.Errors[0])
	}

	return resp.Metrics, nil
}

// Stop sends an Exit request, waits up to exitGrace for the process to
// leave, then kills it.
func (s *Supervisor) Stop() error {
	if s.conn != nil {
		_, _ = s.call(Request{Type: Exit})
		_ = s.conn.Close()
	}

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(exitGrace):
		s.log.Warn("sidecar did not exit within grace period, killing")
		return s.cmd.Process.Kill()
	}
}

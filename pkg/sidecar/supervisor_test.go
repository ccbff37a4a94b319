package sidecar

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// selfSignedCert returns a TLS certificate/key pair good enough to exercise
// the handshake path in tests; it carries no relation to the production
// embedded-CA trust chain.
func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "lightkeeper-sidecar"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

// fakeSidecar accepts one TLS Unix connection and answers every request with
// a canned, deterministic response, echoing the request id.
func fakeSidecar(t *testing.T, socketPath string, cert tls.Certificate) {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	tlsListener := tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})

	go func() {
		conn, err := tlsListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req Request
			if err := ReadFrame(conn, &req); err != nil {
				return
			}

			resp := Response{RequestID: req.RequestID, LagMS: 3}

			if req.Type == MetricsQuery {
				resp.Metrics = map[string][]Metric{req.MetricID: {{Value: 1.5}}}
			}

			if err := WriteFrame(conn, resp); err != nil {
				return
			}
		}
	}()
}

func newConnectedSupervisor(t *testing.T) *Supervisor {
	t.Helper()

	cert := selfSignedCert(t)
	socketPath := filepath.Join(t.TempDir(), "sidecar.sock")

	fakeSidecar(t, socketPath, cert)

	s := &Supervisor{
		log:        logrus.New(),
		socketPath: socketPath,
		tlsConfig:  &tls.Config{InsecureSkipVerify: true},
		inflight:   make(map[uint64]chan Response),
	}

	conn, err := s.dial()
	require.NoError(t, err)
	s.conn = conn

	go s.readLoop()

	return s
}

func TestSupervisorHealthcheck(t *testing.T) {
	s := newConnectedSupervisor(t)

	lag, err := s.Healthcheck()
	require.NoError(t, err)
	require.Equal(t, 3*time.Millisecond, lag)
}

func TestSupervisorQueryMetrics(t *testing.T) {
	s := newConnectedSupervisor(t)

	metrics, err := s.QueryMetrics("host-1", "cpu", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, metrics["cpu"], 1)
	require.Equal(t, 1.5, metrics["cpu"][0].Value)
}

func TestVerifySignatureRejectsMissingTrustMaterial(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "sidecar-bin")
	require.NoError(t, writeExecutable(binPath))

	err := verifySignature(binPath, nil, nil)
	require.Error(t, err)

	err = verifySignature(binPath, x509.NewCertPool(), []byte("sig"))
	require.NoError(t, err)
}

func writeExecutable(path string) error {
	return os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755)
}

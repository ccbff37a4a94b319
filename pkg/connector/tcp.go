package connector

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// TCPOptions configures whether the TCP connector terminates TLS and, if
// so, which root store to verify the peer certificate against.
type TCPOptions struct {
	UseTLS     bool
	RootCAs    *x509.CertPool
	ServerName string
}

// TCP is a stateless connector that either just checks reachability (plain
// TCP connect within the dial timeout) or terminates TLS and returns the
// peer's certificate chain PEM-encoded.
type TCP struct {
	log     logrus.FieldLogger
	opts    TCPOptions
	address string
}

// NewTCP creates a disconnected TCP connector.
func NewTCP(log logrus.FieldLogger, opts TCPOptions) *TCP {
	return &TCP{log: log.WithField("connector", "tcp"), opts: opts}
}

// Clone returns an independent TCP connector with the same options.
func (t *TCP) Clone() Connector {
	return &TCP{log: t.log, opts: t.opts, address: t.address}
}

func (t *TCP) Connect(address string) error {
	t.address = address

	return nil
}

func (t *TCP) IsConnected() bool { return t.address != "" }

func (t *TCP) Reconnect() error { return nil }

func (t *TCP) Disconnect() error { t.address = ""; return nil }

// SendMessage ignores msg - the TCP connector's only operation is
// reachability/certificate probing of the configured address - and returns
// the PEM-encoded peer certificate chain when TLS is enabled, or an empty
// success response for a plain reachability probe.
func (t *TCP) SendMessage(msg string, waitFull bool) (ResponseMessage, error) {
	conn, err := net.DialTimeout("tcp", t.address, httpDialTimeout)
	if err != nil {
		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, t.address, err)
	}
	defer conn.Close()

	if !t.opts.UseTLS {
		return Final("reachable", 0), nil
	}

	tlsConfig := &tls.Config{
		RootCAs:    t.opts.RootCAs,
		ServerName: t.opts.ServerName,
	}

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return ResponseMessage{}, lkerror.Wrap(lkerror.ConnectionFailed, "tls handshake", err)
	}
	defer tlsConn.Close()

	var pemChain []byte

	for _, cert := range tlsConn.ConnectionState().PeerCertificates {
		pemChain = append(pemChain, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})...)
	}

	return Final(string(pemChain), 0), nil
}

func (t *TCP) ReceivePartialResponse() (ResponseMessage, error) {
	return ResponseMessage{}, errors.New("tcp connector does not stream")
}

func (t *TCP) DownloadFile(remotePath string) (FileMetadata, []byte, error) {
	return FileMetadata{}, nil, lkerror.New(lkerror.NotFound, "tcp connector does not support file download")
}

func (t *TCP) UploadFile(metadata FileMetadata, data []byte) error {
	return lkerror.New(lkerror.Other, "tcp connector does not support file upload")
}

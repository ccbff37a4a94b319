package connector

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

// Local is a stateless connector that runs commands on the machine
// lightkeeper itself is running on, via /bin/sh -c. It is used for hosts
// whose platform info already identifies them as the local host, and for
// tests.
type Local struct {
	log       logrus.FieldLogger
	shell     string
	connected bool
}

// NewLocal creates a Local connector. shell defaults to "/bin/sh" if empty.
func NewLocal(log logrus.FieldLogger, shell string) *Local {
	if shell == "" {
		shell = "/bin/sh"
	}

	return &Local{log: log.WithField("connector", "local"), shell: shell}
}

func (l *Local) Clone() Connector {
	return &Local{log: l.log, shell: l.shell, connected: l.connected}
}

func (l *Local) Connect(address string) error {
	l.connected = true

	return nil
}

func (l *Local) IsConnected() bool { return l.connected }

func (l *Local) Reconnect() error { l.connected = true; return nil }

func (l *Local) Disconnect() error { l.connected = false; return nil }

func (l *Local) SendMessage(msg string, waitFull bool) (ResponseMessage, error) {
	cmd := exec.Command(l.shell, "-c", msg)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	returnCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			returnCode = exitErr.ExitCode()
		} else {
			return ResponseMessage{}, lkerror.Wrap(lkerror.Other, "run local command", err)
		}
	}

	return Final(out.String(), returnCode), nil
}

func (l *Local) ReceivePartialResponse() (ResponseMessage, error) {
	return ResponseMessage{}, errors.New("local connector does not stream")
}

func (l *Local) DownloadFile(remotePath string) (FileMetadata, []byte, error) {
	data, err := os.ReadFile(remotePath)
	if err != nil {
		return FileMetadata{}, nil, lkerror.Wrap(lkerror.NotFound, remotePath, err)
	}

	info, err := os.Stat(remotePath)
	if err != nil {
		return FileMetadata{}, nil, lkerror.Wrap(lkerror.NotFound, remotePath, err)
	}

	sum := sha256.Sum256(data)

	metadata := FileMetadata{
		DownloadTime:   time.Now(),
		RemotePath:     remotePath,
		RemoteFileHash: hex.EncodeToString(sum[:]),
		Permissions:    uint32(info.Mode().Perm()),
	}

	return metadata, data, nil
}

func (l *Local) UploadFile(metadata FileMetadata, data []byte) error {
	mode := os.FileMode(metadata.Permissions)
	if mode == 0 {
		mode = 0o644
	}

	if err := os.WriteFile(metadata.RemotePath, data, mode); err != nil {
		return lkerror.Wrap(lkerror.Other, metadata.RemotePath, err)
	}

	return nil
}

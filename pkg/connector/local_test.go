package connector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSendMessageSuccess(t *testing.T) {
	l := NewLocal(logrus.New(), "")

	resp, err := l.SendMessage("echo -n hello", true)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message)
	assert.Equal(t, 0, resp.ReturnCode)
}

func TestLocalSendMessageNonZeroExit(t *testing.T) {
	l := NewLocal(logrus.New(), "")

	resp, err := l.SendMessage("exit 3", true)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ReturnCode)
}

func TestLocalDownloadUploadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	l := NewLocal(logrus.New(), "")

	metadata, data, err := l.DownloadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NotEmpty(t, metadata.RemoteFileHash)

	destPath := filepath.Join(dir, "copy.txt")
	metadata.RemotePath = destPath

	require.NoError(t, l.UploadFile(metadata, data))

	copied, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(copied))
}

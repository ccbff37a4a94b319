package connector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 0, exitCodeOf(nil))
	assert.Equal(t, -1, exitCodeOf(errors.New("boom")))
}

func TestHashBytes(t *testing.T) {
	a := hashBytes([]byte("hello"))
	b := hashBytes([]byte("hello"))
	c := hashBytes([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFileHostKeyStoreCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "known_hosts")

	store, err := NewFileHostKeyStore(path)
	require.NoError(t, err)
	require.NotNil(t, store)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestFileHostKeyStoreCallbackUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")

	store, err := NewFileHostKeyStore(path)
	require.NoError(t, err)

	// Corrupt the file so knownhosts.New fails to parse it.
	require.NoError(t, os.WriteFile(path, []byte("not a known_hosts line\x00"), 0o600))

	cb := store.Callback()
	err = cb("example.com", nil, nil)
	require.Error(t, err)
	assert.Equal(t, lkerror.HostKeyNotVerified, lkerror.KindOf(err))
}

func TestSSHAuthMethodsPasswordOnly(t *testing.T) {
	s := &SSH{auth: SSHAuth{Password: "secret"}}

	methods := s.authMethods()
	assert.Len(t, methods, 1)
}

func TestSSHAuthMethodsEmpty(t *testing.T) {
	s := &SSH{auth: SSHAuth{}}

	methods := s.authMethods()
	assert.Empty(t, methods)
}

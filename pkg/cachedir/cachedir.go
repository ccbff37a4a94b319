// Package cachedir resolves the on-disk layout used to stage files
// downloaded for remote editing, and their FileMetadata sidecars.
package cachedir

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
)

const metadataSuffix = ".metadata.yml"

// Dir returns the directory lightkeeper stages downloaded files under:
// $XDG_CACHE_HOME/lightkeeper, or $HOME/.cache/lightkeeper, unless the
// process is already running inside a container runtime that scopes the
// cache directory for us (detected via /.dockerenv).
func Dir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		base = filepath.Join(home, ".cache")
	}

	if inContainer() {
		return base, nil
	}

	return filepath.Join(base, "lightkeeper"), nil
}

func inContainer() bool {
	_, err := os.Stat("/.dockerenv")

	return err == nil
}

// LocalPath derives the deterministic local staging path for remotePath on
// hostID: a hash of hostID and the remote path followed by its last two path
// components, so a human can still recognise the file in a directory
// listing.
func LocalPath(baseDir, hostID, remotePath string) string {
	sum := sha256.Sum256([]byte(hostID + ":" + remotePath))
	hash := hex.EncodeToString(sum[:])[:16]

	parts := strings.Split(strings.Trim(remotePath, "/"), "/")

	tail := parts
	if len(parts) > 2 {
		tail = parts[len(parts)-2:]
	}

	return filepath.Join(baseDir, hash+"_"+strings.Join(tail, "_"))
}

// MetadataPath returns the sidecar path for a staged file.
func MetadataPath(localPath string) string {
	return localPath + metadataSuffix
}

// WriteMetadata persists metadata as the YAML sidecar for localPath.
func WriteMetadata(localPath string, metadata connector.FileMetadata) error {
	data, err := yaml.Marshal(metadata)
	if err != nil {
		return err
	}

	return os.WriteFile(MetadataPath(localPath), data, 0o600)
}

// ReadMetadata loads the YAML sidecar for localPath.
func ReadMetadata(localPath string) (connector.FileMetadata, error) {
	data, err := os.ReadFile(MetadataPath(localPath))
	if err != nil {
		return connector.FileMetadata{}, err
	}

	var metadata connector.FileMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return connector.FileMetadata{}, err
	}

	return metadata, nil
}

package connector

import "time"

// FileMetadata is recorded alongside a downloaded file so a later upload
// can detect concurrent remote modification and so the cache dir sidecar
// (see pkg/cachedir) can be written to disk.
type FileMetadata struct {
	DownloadTime   time.Time `yaml:"download_time"`
	RemotePath     string    `yaml:"remote_path"`
	RemoteFileHash string    `yaml:"remote_file_hash"`
	Permissions    uint32    `yaml:"permissions"`
	OwnerUID       int       `yaml:"owner_uid"`
	OwnerGID       int       `yaml:"owner_gid"`
	Temporary      bool      `yaml:"temporary"`
}

// Connector owns the wire protocol to a host: dialing, sending commands,
// streaming partial output, and moving files. Implementations: SSH, HTTP
// with JWT bearer-challenge handling, bare TCP, and local-exec.
//
// Stateful connectors (SSH) hold one session per host and must not be used
// by two requests concurrently - the pool serialises access. Stateless
// connectors (HTTP, TCP, local-exec) may be cloned out of the pool and used
// without holding the pool lock; they implement Cloner.
type Connector interface {
	// Connect dials address. It is idempotent: a no-op if already
	// connected.
	Connect(address string) error

	// SendMessage issues msg. If waitFull is true it blocks until the
	// command completes and returns the final response. If false, it
	// returns as soon as the first read produces output, and the caller
	// must drain the rest via ReceivePartialResponse.
	SendMessage(msg string, waitFull bool) (ResponseMessage, error)

	// ReceivePartialResponse continues draining a stream started by a
	// SendMessage(waitFull=false) call, returning one more increment
	// until the final (IsPartial=false) response.
	ReceivePartialResponse() (ResponseMessage, error)

	// DownloadFile retrieves a remote file's bytes and metadata.
	DownloadFile(remotePath string) (FileMetadata, []byte, error)

	// UploadFile writes bytes to the remote path recorded in metadata.
	UploadFile(metadata FileMetadata, data []byte) error

	IsConnected() bool
	Reconnect() error
	Disconnect() error
}

// Cloner is implemented by stateless connectors so the pool can hand out
// independent copies for concurrent use without serialising through the
// pool's per-connector lock.
type Cloner interface {
	Clone() Connector
}

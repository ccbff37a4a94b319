package connector

import (
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// RequestType distinguishes what a ConnectorRequest does on the wire.
type RequestType int

const (
	Command RequestType = iota
	Download
	Upload
	MonitorRead
)

func (t RequestType) String() string {
	switch t {
	case Download:
		return "Download"
	case Upload:
		return "Upload"
	case MonitorRead:
		return "MonitorRead"
	default:
		return "Command"
	}
}

// CachePolicy controls whether the dispatcher consults the response cache
// before talking to a connector.
type CachePolicy int

const (
	UseCache CachePolicy = iota
	BypassCache
)

// ResponseHandler receives each response delivered for a request. For a
// command or monitor request carrying N messages, it is called with zero
// or more partials interleaved with exactly one final response per
// message, in message order - fewer if the dispatcher stops early on a
// non-zero return code. Download/Upload requests carry a single message
// and so deliver a single final.
type ResponseHandler func(ResponseMessage)

// Request is a unit of work handed to the dispatcher. SourceID identifies
// the module (monitor or command) that issued it, for correlation in logs
// and in the host state manager. SourceSpec carries the same module's full
// spec, which the dispatcher uses to look up the CacheScope that module
// declared in its own Metadata - caching is a property of the monitor or
// command asking the question, not of the connector answering it.
type Request struct {
	ConnectorSpec  module.Spec
	SourceID       string
	SourceSpec     module.Spec
	Host           *host.Host
	Type           RequestType
	Messages       []string
	Handler        ResponseHandler
	CachePolicy    CachePolicy
	UploadMetadata *FileMetadata
	UploadBytes    []byte
	RemotePath     string
	cancelled      bool
}

// Cancel marks the request cancelled. The dispatcher still completes the
// in-flight connector call to keep the session clean, but drops the
// response before it reaches Handler.
func (r *Request) Cancel() {
	r.cancelled = true
}

// Cancelled reports whether Cancel was called.
func (r *Request) Cancelled() bool {
	return r.cancelled
}

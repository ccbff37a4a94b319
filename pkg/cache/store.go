package cache

import (
	"context"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
)

// Store holds final (non-partial) ResponseMessages keyed by fingerprint.
// Implementations are safe for concurrent use. MemoryStore's cache hits
// take its exclusive lock, so concurrent readers of that store do block
// each other.
type Store interface {
	// Get returns the cached response for fingerprint, if present and not
	// expired.
	Get(ctx context.Context, fingerprint string) (connector.ResponseMessage, bool)

	// Put records resp under fingerprint. resp must not be partial -
	// callers are responsible for only caching final responses. hostID is
	// the host the entry was produced for, used only to support Invalidate.
	// The dispatcher passes the requesting host's ID whatever the entry's
	// cache scope, so Invalidate also drops global-scope entries that host
	// produced.
	Put(ctx context.Context, fingerprint string, hostID string, resp connector.ResponseMessage)

	// Invalidate drops every cached entry previously Put with hostID, e.g.
	// when a host is removed or re-provisioned and its stale answers must
	// not survive it.
	Invalidate(ctx context.Context, hostID string)
}

// Package cache implements the response cache: a content-addressed
// memoisation layer between the dispatcher and the connector pool.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// messageSeparator joins request messages unambiguously before hashing; it
// is chosen to be a byte sequence that cannot appear inside a shell command
// or URL message, so two distinct message slices never collide after
// joining.
const messageSeparator = "\x00\x1f\x00"

// Fingerprint computes the cache key for a request: a stable hash over the
// connector spec, the messages in order, and - only when scoped per-host -
// the host id. It is insensitive to response content and order-sensitive
// across messages, per the response cache's required properties.
func Fingerprint(spec module.Spec, messages []string, hostID string, hostScoped bool) string {
	h := sha256.New()

	h.Write([]byte(spec.String()))
	h.Write([]byte(messageSeparator))
	h.Write([]byte(strings.Join(messages, messageSeparator)))

	if hostScoped {
		h.Write([]byte(messageSeparator))
		h.Write([]byte(hostID))
	}

	return hex.EncodeToString(h.Sum(nil))
}

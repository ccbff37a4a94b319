// Package connector owns the wire protocol side of the core: the Connector
// contract (SSH, HTTP/JWT, TCP, local-exec), the per-host connector pool
// that serialises stateful connectors and allows stateless ones to run
// concurrently, requests, and responses.
package connector

// ResponseMessage is what a connector call delivers, whether the final
// accumulated result of a command or one partial increment of a stream.
//
// Invariant: for any request producing a stream, the sequence of responses
// delivered to a handler is zero-or-more with IsPartial=true followed by
// exactly one with IsPartial=false whose Message is the full accumulation.
type ResponseMessage struct {
	Message          string
	MessageIncrement string
	ReturnCode       int
	IsPartial        bool
	IsFromCache      bool
}

// Final builds a non-partial ResponseMessage.
func Final(message string, returnCode int) ResponseMessage {
	return ResponseMessage{Message: message, ReturnCode: returnCode, IsPartial: false}
}

// Partial builds a streaming increment. Message carries the accumulation so
// far; MessageIncrement carries only the new bytes since the last partial.
func Partial(message, increment string) ResponseMessage {
	return ResponseMessage{Message: message, MessageIncrement: increment, IsPartial: true}
}

// FromCache marks msg as served from the response cache rather than a live
// connector call.
func FromCache(msg ResponseMessage) ResponseMessage {
	msg.IsFromCache = true

	return msg
}

package module

// CacheScope controls how a module's connector responses are memoised by
// the response cache.
type CacheScope int

const (
	// CacheNone means responses from this module are never cached.
	CacheNone CacheScope = iota
	// CacheHost scopes the cache key to the requesting host.
	CacheHost
	// CacheGlobal scopes the cache key to message content only, shared
	// across every host.
	CacheGlobal
)

func (c CacheScope) String() string {
	switch c {
	case CacheHost:
		return "Host"
	case CacheGlobal:
		return "Global"
	default:
		return "None"
	}
}

// Action drives the UI follow-up a command's result should trigger.
// Core-side, it only needs to be carried and reported; the UI owns the
// actual dialog/terminal/editor implementation.
type Action int

const (
	ActionNone Action = iota
	ActionFollowOutput
	ActionDetailsDialog
	ActionTextView
	ActionTextDialog
	ActionLogView
	ActionLogViewWithTimeControls
	ActionTerminal
	ActionTextEditor
)

// DisplayOptions describes how a module's output should be presented.
// Monitors typically leave Action at ActionNone; commands set it to drive
// a UI handoff such as opening a terminal, log view, or text editor window.
type DisplayOptions struct {
	DisplayText    string
	DisplayIcon    string
	Category       string
	Unit           string
	Action         Action
	ConfirmCommand bool
}

// Metadata describes a module: its identity, what settings it accepts, and
// how the dispatcher/cache should treat it.
type Metadata struct {
	Spec         Spec
	Description  string
	Settings     map[string]string
	ParentModule *Spec
	IsStateless  bool
	CacheScope   CacheScope
	ConnectorID  string // empty for purely local modules
}

// IsExtension reports whether this module is an extension monitor, i.e. it
// consumes another monitor's latest data point rather than a connector
// message derived directly from the host.
func (m Metadata) IsExtension() bool {
	return m.ParentModule != nil
}

// Package command defines the Command module contract and the command
// manager: execution, file-edit round trips, host-key verification retries,
// and cooldown tracking.
package command

import (
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// Result is what a command execution produces, streamed to the UI one or
// more times, the last with IsPartial=false.
type Result struct {
	Message          string
	MessageIncrement string
	Criticality      datapoint.Criticality
	InvocationID     int64
	CommandID        string
	IsPartial        bool
	Progress         int

	// FollowUpID correlates this result with the UI dialog/terminal/editor
	// window the DisplayOptions.Action opened for it. Unlike InvocationID
	// (a monotonic per-process counter used to match Results back to the
	// Execute call that produced them), FollowUpID only exists when the
	// action needs a handle the UI can keep around after the invocation
	// itself has finished - e.g. a log-view window kept open past the
	// command's exit. Empty when DisplayOptions().Action is ActionNone.
	FollowUpID string
}

// NewHidden builds a final result with no UI-visible follow-up, used for
// commands whose success doesn't warrant a dialog (action=None).
func NewHidden(message string) Result {
	return Result{Message: message, Criticality: datapoint.Normal}
}

// Command is a module that mutates host state via a connector, producing
// Results rather than DataPoints.
type Command interface {
	Metadata() module.Metadata
	DisplayOptions() module.DisplayOptions
	ConnectorSpec() (module.Spec, bool)

	// GetConnectorMessages builds the connector messages for parameters
	// against host. Multi-message commands correspond to modules whose
	// GetConnectorMessage variant is plural in the module contract.
	GetConnectorMessages(h *host.Host, parameters []string) ([]string, error)

	// ProcessResponses turns the connector's final responses into a
	// Result. len(responses) == len(GetConnectorMessages's return).
	ProcessResponses(h *host.Host, responses []ConnectorResponse, parameters []string) (Result, error)
}

// ConnectorResponse is the subset of connector.ResponseMessage a command's
// post-processor needs; kept separate from the connector package so
// command modules don't need to import connector wire-protocol internals.
type ConnectorResponse struct {
	Message    string
	ReturnCode int
}

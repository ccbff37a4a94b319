// Package monitor defines the Monitor module contract and the monitor
// manager: refreshing monitors by id or category, resolving extension
// chains, and gating payloads by platform.
package monitor

import (
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// Monitor is a module that reads state via a connector (or purely locally)
// and produces a DataPoint. An extension monitor (Metadata().ParentModule
// set) computes its connector messages from its parent's latest data
// point instead of directly from the host.
type Monitor interface {
	Metadata() module.Metadata
	DisplayOptions() module.DisplayOptions
	ConnectorSpec() (module.Spec, bool)
	Category() string

	// GetConnectorMessages builds this monitor's connector messages for h.
	// parent is the parent monitor's latest data point, or nil for a
	// root monitor. Platform gating returns lkerror.UnsupportedPlatform
	// when host.Platform matches no known branch.
	GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error)

	// ProcessResponses turns the connector's final responses into this
	// monitor's DataPoint.
	ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error)
}

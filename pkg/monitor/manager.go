package monitor

import (
	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/state"
)

// Dispatcher is the subset of pkg/dispatcher.Dispatcher the monitor manager
// needs.
type Dispatcher interface {
	Enqueue(req *connector.Request)
}

const platformInfoID = "platform-info"

// Manager refreshes monitors against hosts: it resolves a monitor's
// connector messages (walking one parent hop for extension monitors),
// dispatches them, and forwards the resulting DataPoint to the host state
// manager.
type Manager struct {
	log        logrus.FieldLogger
	dispatcher Dispatcher
	registry   *module.Registry[Monitor]
	stateMgr   *state.Manager
}

// NewManager creates a monitor manager.
func NewManager(log logrus.FieldLogger, d Dispatcher, registry *module.Registry[Monitor], stateMgr *state.Manager) *Manager {
	return &Manager{
		log:        log.WithField("component", "monitor-manager"),
		dispatcher: d,
		registry:   registry,
		stateMgr:   stateMgr,
	}
}

// RefreshPlatformInfo runs the platform-info monitor and lets the state
// manager translate its data point into host.Info, via the special
// "_platform_info" marker datapoint.IsPlatformInfo checks for.
func (m *Manager) RefreshPlatformInfo(h *host.Host, policy connector.CachePolicy) error {
	return m.refreshByID(h, module.NewSpec(platformInfoID, "0.1"), policy)
}

// RefreshByID resolves monitorSpec (walking one parent hop if it is an
// extension monitor) and dispatches its connector messages.
func (m *Manager) RefreshByID(h *host.Host, monitorSpec module.Spec, policy connector.CachePolicy) error {
	return m.refreshByID(h, monitorSpec, policy)
}

// RefreshByCategory refreshes every registered monitor whose
// DisplayOptions.Category matches category.
func (m *Manager) RefreshByCategory(h *host.Host, category string, policy connector.CachePolicy) error {
	for _, metadata := range m.registry.Metadatas() {
		mon, err := m.registry.New(metadata.Spec, nil)
		if err != nil {
			continue
		}

		if mon.Category() != category {
			continue
		}

		if err := m.refreshByID(h, metadata.Spec, policy); err != nil {
			m.log.WithError(err).WithField("monitor", metadata.Spec.String()).Warn("monitor refresh failed")
		}
	}

	return nil
}

// Categories returns the distinct DisplayOptions.Category values across
// every registered monitor, for UI listings.
func (m *Manager) Categories() []string {
	seen := make(map[string]bool)

	var categories []string

	for _, metadata := range m.registry.Metadatas() {
		mon, err := m.registry.New(metadata.Spec, nil)
		if err != nil {
			continue
		}

		category := mon.Category()
		if !seen[category] {
			seen[category] = true

			categories = append(categories, category)
		}
	}

	return categories
}

func (m *Manager) refreshByID(h *host.Host, monitorSpec module.Spec, policy connector.CachePolicy) error {
	mon, err := m.registry.New(monitorSpec, nil)
	if err != nil {
		return err
	}

	metadata := mon.Metadata()

	var parent *datapoint.DataPoint

	if metadata.ParentModule != nil {
		if hs, ok := m.stateMgr.Host(h.ID); ok {
			if dp, ok := hs.LatestDataPoint(metadata.ParentModule.ID); ok {
				parent = &dp
			}
		}
	}

	messages, err := mon.GetConnectorMessages(h, parent)
	if err != nil {
		if lkerror.KindOf(err) == lkerror.UnsupportedPlatform {
			m.submit(h.ID, metadata, datapoint.DataPoint{
				Value:       "",
				Criticality: datapoint.NotAvailable,
			})

			return nil
		}

		return err
	}

	connectorSpec, hasConnector := mon.ConnectorSpec()
	if !hasConnector {
		dp, err := mon.ProcessResponses(h, nil, parent)
		if err != nil {
			return err
		}

		m.submit(h.ID, metadata, dp)

		return nil
	}

	var responses []string

	fromCache := false

	req := &connector.Request{
		ConnectorSpec: connectorSpec,
		SourceID:      monitorSpec.ID,
		SourceSpec:    monitorSpec,
		Host:          h,
		Type:          connector.MonitorRead,
		Messages:      messages,
		CachePolicy:   policy,
		// Collects one final response per message before calling
		// ProcessResponses, so an extension monitor with several
		// messages (e.g. docker-image-updates, one per image tag) sees
		// all of them at once instead of just the last.
		Handler: func(resp connector.ResponseMessage) {
			if resp.IsPartial {
				return
			}

			responses = append(responses, resp.Message)

			if resp.IsFromCache {
				fromCache = true
			}

			if len(responses) < len(messages) && resp.ReturnCode == 0 {
				return
			}

			dp, err := mon.ProcessResponses(h, responses, parent)
			if err != nil {
				m.log.WithError(err).WithField("monitor", monitorSpec.String()).Warn("monitor post-processing failed")

				return
			}

			dp.IsFromCache = fromCache

			m.submit(h.ID, metadata, dp)
		},
	}

	m.dispatcher.Enqueue(req)

	return nil
}

func (m *Manager) submit(hostID string, metadata module.Metadata, dp datapoint.DataPoint) {
	m.stateMgr.Submit(state.StateUpdateMessage{
		HostID:         hostID,
		DisplayOptions: module.DisplayOptions{},
		ModuleSpec:     metadata.Spec,
		DataPoint:      &dp,
		Exit:           true,
	})
}

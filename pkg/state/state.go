// Package state owns the authoritative per-host store of monitoring data
// points, command results, and platform facts, and publishes deltas to
// observer channels.
package state

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// StateUpdateMessage is the unit of work the receiver loop consumes. Each
// one either carries a monitor's DataPoint or a command's CommandResult,
// never both, plus an Exit marker for the terminal message of a stream.
type StateUpdateMessage struct {
	HostID         string
	DisplayOptions module.DisplayOptions
	ModuleSpec     module.Spec
	DataPoint      *datapoint.DataPoint
	CommandResult  *command.Result
	Exit           bool
}

// HostState is one host's accumulated record: its static Host fields, the
// append-only per-monitor series, and per-invocation command results.
type HostState struct {
	Host          *host.Host
	Monitors      map[string][]datapoint.DataPoint
	DisplayByID   map[string]module.DisplayOptions
	CommandByInvo map[int64]command.Result
}

func newHostState(h *host.Host) *HostState {
	return &HostState{
		Host:          h,
		Monitors:      make(map[string][]datapoint.DataPoint),
		DisplayByID:   make(map[string]module.DisplayOptions),
		CommandByInvo: make(map[int64]command.Result),
	}
}

// Snapshot is what an observer receives after a state update: the
// host id and the fields that changed, so an observer never needs to read
// back through Manager to render a delta.
type Snapshot struct {
	HostID        string
	ModuleSpec    module.Spec
	Latest        *datapoint.DataPoint
	CommandResult *command.Result
	Platform      *host.Info
}

// Manager is the single writer of host state; it serialises every update
// through recv, so state updates for one host are applied in delivery
// order, matching the core's per-host ordering guarantee.
type Manager struct {
	log logrus.FieldLogger

	mu    sync.RWMutex
	hosts map[string]*HostState

	recv chan StateUpdateMessage

	obsMu     sync.Mutex
	observers []chan Snapshot
}

// NewManager creates a Manager. Run must be called to start the receiver
// loop.
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		log:   log.WithField("component", "state-manager"),
		hosts: make(map[string]*HostState),
		recv:  make(chan StateUpdateMessage, 256),
	}
}

// RegisterHost adds h to the store with empty series, if not already
// present.
func (m *Manager) RegisterHost(h *host.Host) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hosts[h.ID]; !ok {
		m.hosts[h.ID] = newHostState(h)
	}
}

// RemoveHost drops hostID's accumulated state entirely, e.g. when a host
// is decommissioned or about to be re-provisioned under a fresh identity.
func (m *Manager) RemoveHost(hostID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hosts, hostID)
}

// Host returns the named host's stored state (the live value, not a copy),
// or false if unknown.
func (m *Manager) Host(hostID string) (*HostState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hs, ok := m.hosts[hostID]

	return hs, ok
}

// Observe registers a channel that receives a Snapshot after every update.
// A full channel is treated as a dropped observer and removed on the next
// send attempt, per the core's "dropped observer channel is detected on
// send and removed" rule.
func (m *Manager) Observe() <-chan Snapshot {
	ch := make(chan Snapshot, 64)

	m.obsMu.Lock()
	m.observers = append(m.observers, ch)
	m.obsMu.Unlock()

	return ch
}

// Submit enqueues msg for processing by the receiver loop.
func (m *Manager) Submit(msg StateUpdateMessage) {
	m.recv <- msg
}

// Run drains the receiver loop until recv is never read again; callers
// typically run this in its own goroutine for the process lifetime.
func (m *Manager) Run() {
	for msg := range m.recv {
		m.apply(msg)
	}
}

func (m *Manager) apply(msg StateUpdateMessage) {
	m.mu.Lock()

	hs, ok := m.hosts[msg.HostID]
	if !ok {
		hs = newHostState(host.New(msg.HostID, "", ""))
		m.hosts[msg.HostID] = hs
	}

	snapshot := Snapshot{HostID: msg.HostID, ModuleSpec: msg.ModuleSpec}

	if msg.DataPoint != nil {
		hs.DisplayByID[msg.ModuleSpec.ID] = msg.DisplayOptions

		if msg.DataPoint.IsPlatformInfo() {
			info := platformInfoFromDataPoint(*msg.DataPoint)
			hs.Host.Platform = info
			snapshot.Platform = &info
		} else {
			msg.DataPoint.UpdateCriticalityFromChildren()

			series := hs.Monitors[msg.ModuleSpec.ID]
			series = append(series, *msg.DataPoint)
			hs.Monitors[msg.ModuleSpec.ID] = series

			latest := &series[len(series)-1]
			snapshot.Latest = latest
		}
	}

	if msg.CommandResult != nil {
		hs.CommandByInvo[msg.CommandResult.InvocationID] = *msg.CommandResult
		snapshot.CommandResult = msg.CommandResult
	}

	m.mu.Unlock()

	m.publish(snapshot)
}

func (m *Manager) publish(snapshot Snapshot) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	live := m.observers[:0]

	for _, ch := range m.observers {
		select {
		case ch <- snapshot:
			live = append(live, ch)
		default:
			m.log.Warn("dropping observer channel: send would block")
		}
	}

	m.observers = live
}

// LatestDataPoint returns a monitor's most recent sample, used to compute
// an extension monitor's connector messages from its parent's output.
func (hs *HostState) LatestDataPoint(monitorID string) (datapoint.DataPoint, bool) {
	series := hs.Monitors[monitorID]
	if len(series) == 0 {
		return datapoint.DataPoint{}, false
	}

	return series[len(series)-1], true
}

// platformInfoFromDataPoint reconstructs a host.Info from the special
// "_platform_info" DataPoint the platform-info monitor emits: labelled
// multivalue children carry os/flavor/version/architecture as strings.
func platformInfoFromDataPoint(dp datapoint.DataPoint) host.Info {
	info := host.Pending()

	for _, child := range dp.Multivalue {
		switch child.Label {
		case "os":
			if child.Value == "Linux" {
				info.OS = host.OSLinux
			} else {
				info.OS = host.OSOther
			}
		case "flavor":
			info.Flavor = host.ParseFlavor(child.Value)
		case "version":
			if v, err := host.ParseVersionNumber(child.Value); err == nil {
				info.Version = v
			}
		case "architecture":
			info.Architecture = child.Value
		}
	}

	return info
}

package command

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// Dispatcher is the subset of pkg/dispatcher.Dispatcher the command manager
// needs; kept as an interface so tests can substitute a fake and so this
// package doesn't import the dispatcher package back.
type Dispatcher interface {
	Enqueue(req *connector.Request)
}

// ResultSink receives a command's results as they're produced. The command
// manager never imports the state package directly - that package imports
// this one for the Result type, so the dependency runs one way.
type ResultSink func(hostID string, spec module.Spec, result Result, exit bool)

// HostKeyApprover is asked to resolve a HostKeyNotVerified error; it
// returns true if the operator approved trusting the new key, in which
// case the manager retries the original request once.
type HostKeyApprover func(hostID, connectorID string, err error) bool

// Manager executes commands: it resolves a command's connector messages,
// dispatches them, turns responses into Results, and retries once on an
// approved host-key change. It also tracks per-button cooldowns so the UI
// can rate-limit destructive actions.
type Manager struct {
	log        logrus.FieldLogger
	dispatcher Dispatcher
	registry   *module.Registry[Command]
	sink       ResultSink
	approve    HostKeyApprover

	nextInvocation int64

	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time
}

// NewManager creates a command manager. approve may be nil, in which case
// host-key errors are never retried.
func NewManager(log logrus.FieldLogger, d Dispatcher, registry *module.Registry[Command], sink ResultSink, approve HostKeyApprover) *Manager {
	return &Manager{
		log:        log.WithField("component", "command-manager"),
		dispatcher: d,
		registry:   registry,
		sink:       sink,
		approve:    approve,
		cooldowns:  make(map[string]time.Time),
	}
}

// nextInvocationID hands out the monotonic, 64-bit invocation correlator;
// 0 is reserved for "not issued" per the core data model.
func (m *Manager) nextInvocationID() int64 {
	return atomic.AddInt64(&m.nextInvocation, 1)
}

// Execute resolves spec against h with parameters, dispatches its connector
// messages, and returns the invocation id the caller can use to correlate
// asynchronous Results.
func (m *Manager) Execute(h *host.Host, spec module.Spec, parameters []string) (int64, error) {
	cmd, err := m.registry.New(spec, nil)
	if err != nil {
		return 0, err
	}

	invocationID := m.nextInvocationID()

	var followUpID string
	if cmd.DisplayOptions().Action != module.ActionNone {
		followUpID = uuid.NewString()
	}

	messages, err := cmd.GetConnectorMessages(h, parameters)
	if err != nil {
		if lkerror.KindOf(err) == lkerror.UnsupportedPlatform {
			m.deliver(h.ID, spec, Result{
				InvocationID: invocationID,
				CommandID:    spec.ID,
				Message:      "Unsupported platform",
				Criticality:  datapoint.Error,
			}, true)

			return invocationID, nil
		}

		return invocationID, err
	}

	connectorSpec, hasConnector := cmd.ConnectorSpec()
	if !hasConnector {
		return invocationID, lkerror.New(lkerror.InvalidParameter, "command has no connector spec")
	}

	var (
		responses []ConnectorResponse
		retried   bool
		req       *connector.Request
	)

	req = &connector.Request{
		ConnectorSpec: connectorSpec,
		SourceID:      spec.ID,
		SourceSpec:    spec,
		Host:          h,
		Type:          connector.Command,
		Messages:      messages,
		CachePolicy:   connector.BypassCache,
		Handler: func(resp connector.ResponseMessage) {
			if resp.IsPartial {
				m.deliver(h.ID, spec, Result{
					InvocationID:     invocationID,
					CommandID:        spec.ID,
					FollowUpID:       followUpID,
					Message:          resp.Message,
					MessageIncrement: resp.MessageIncrement,
					IsPartial:        true,
				}, false)

				return
			}

			responses = append(responses, ConnectorResponse{Message: resp.Message, ReturnCode: resp.ReturnCode})

			if len(responses) < len(messages) && resp.ReturnCode == 0 {
				return
			}

			result, perr := cmd.ProcessResponses(h, responses, parameters)
			if perr != nil {
				if !retried && lkerror.KindOf(perr) == lkerror.HostKeyNotVerified && m.approve != nil && m.approve(h.ID, connectorSpec.ID, perr) {
					retried = true
					responses = nil
					m.dispatcher.Enqueue(req)

					return
				}

				result = Result{Message: perr.Error()}
			}

			result.InvocationID = invocationID
			result.CommandID = spec.ID
			result.FollowUpID = followUpID

			m.deliver(h.ID, spec, result, true)
		},
	}

	m.dispatcher.Enqueue(req)

	return invocationID, nil
}

func (m *Manager) deliver(hostID string, spec module.Spec, result Result, exit bool) {
	if m.sink != nil {
		m.sink(hostID, spec, result, exit)
	}
}

// BeginCooldown gates buttonID for the given duration from now.
func (m *Manager) BeginCooldown(buttonID string, d time.Duration) {
	m.cooldownMu.Lock()
	defer m.cooldownMu.Unlock()

	m.cooldowns[buttonID] = time.Now().Add(d)
}

// RemainingCooldown reports how much longer buttonID is gated, or zero if
// it is free.
func (m *Manager) RemainingCooldown(buttonID string) time.Duration {
	m.cooldownMu.Lock()
	defer m.cooldownMu.Unlock()

	until, ok := m.cooldowns[buttonID]
	if !ok {
		return 0
	}

	remaining := time.Until(until)
	if remaining <= 0 {
		delete(m.cooldowns, buttonID)

		return 0
	}

	return remaining
}

// EndCooldown immediately clears buttonID's gate.
func (m *Manager) EndCooldown(buttonID string) {
	m.cooldownMu.Lock()
	defer m.cooldownMu.Unlock()

	delete(m.cooldowns, buttonID)
}

package connector

import (
	"sync"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// Factory builds a fresh, disconnected Connector for the given host
// address. The pool calls it when a (host, connector spec) pair is first
// acquired and keeps the result; stateless connectors are then cloned from
// that instance through Cloner, not rebuilt by the factory.
type Factory func(address string) (Connector, error)

type poolKey struct {
	hostID string
	spec   module.Spec
}

type poolEntry struct {
	mu        sync.Mutex
	connector Connector
}

// Pool owns one connector instance per (host, connector spec) pair.
// Stateful connectors are serialised through the entry's mutex: Acquire
// blocks until any in-flight request on that host/connector finishes.
// Stateless connectors (those implementing Cloner) are cloned on Acquire
// so independent requests can run concurrently without contending on the
// pool lock.
type Pool struct {
	mu        sync.Mutex
	factories map[module.Spec]Factory
	entries   map[poolKey]*poolEntry
}

// NewPool creates an empty connector pool.
func NewPool() *Pool {
	return &Pool{
		factories: make(map[module.Spec]Factory),
		entries:   make(map[poolKey]*poolEntry),
	}
}

// RegisterFactory associates a connector spec with the factory used to
// build new instances of it.
func (p *Pool) RegisterFactory(spec module.Spec, factory Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.factories[spec] = factory
}

// Lease represents a connector checked out of the pool. Release must be
// called exactly once, whether or not the connector was stateful.
type Lease struct {
	Connector Connector
	entry     *poolEntry
	stateful  bool
}

// Release returns a stateful lease's lock to the pool. It is a no-op for
// stateless leases, whose cloned connector is simply discarded.
func (l *Lease) Release() {
	if l.stateful && l.entry != nil {
		l.entry.mu.Unlock()
	}
}

// Acquire returns a connector for hostID/address bound to spec. If the
// underlying connector is stateless (implements Cloner), Acquire returns an
// independent clone and the lease's Release is a no-op. If it is stateful,
// Acquire blocks until any other in-flight use of that host's connector
// completes, and the returned lease must be released when the caller is
// done.
func (p *Pool) Acquire(hostID, address string, spec module.Spec) (*Lease, error) {
	p.mu.Lock()
	factory, ok := p.factories[spec]
	if !ok {
		p.mu.Unlock()

		return nil, lkerror.New(lkerror.NotFound, "no connector factory registered for "+spec.String())
	}

	key := poolKey{hostID: hostID, spec: spec}

	entry, ok := p.entries[key]
	if !ok {
		conn, err := factory(address)
		if err != nil {
			p.mu.Unlock()

			return nil, err
		}

		entry = &poolEntry{connector: conn}
		p.entries[key] = entry
	}
	p.mu.Unlock()

	if cloner, ok := entry.connector.(Cloner); ok {
		clone := cloner.Clone()
		if !clone.IsConnected() {
			if err := clone.Connect(address); err != nil {
				return nil, err
			}
		}

		return &Lease{Connector: clone, stateful: false}, nil
	}

	entry.mu.Lock()

	if !entry.connector.IsConnected() {
		if err := entry.connector.Connect(address); err != nil {
			entry.mu.Unlock()

			return nil, err
		}
	}

	return &Lease{Connector: entry.connector, entry: entry, stateful: true}, nil
}

// Close disconnects every pooled connector.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error

	for _, entry := range p.entries {
		entry.mu.Lock()
		if err := entry.connector.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
		entry.mu.Unlock()
	}

	return firstErr
}

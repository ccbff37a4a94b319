package monitor

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/state"
)

type fakeDispatcher struct {
	requests []*connector.Request
}

func (f *fakeDispatcher) Enqueue(req *connector.Request) {
	f.requests = append(f.requests, req)
}

type kernelMonitor struct {
	unsupported bool
}

func (k *kernelMonitor) Metadata() module.Metadata {
	return module.Metadata{Spec: module.NewSpec("kernel", "0.1"), ConnectorID: "connector-ssh"}
}
func (k *kernelMonitor) DisplayOptions() module.DisplayOptions { return module.DisplayOptions{Category: "system"} }
func (k *kernelMonitor) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}
func (k *kernelMonitor) Category() string { return "system" }
func (k *kernelMonitor) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	if k.unsupported {
		return nil, lkerror.New(lkerror.UnsupportedPlatform, "no branch")
	}

	return []string{"uname -r -m"}, nil
}
func (k *kernelMonitor) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	return datapoint.New("5.10.0 (x86_64)", "Kernel"), nil
}

// multiMessageMonitor stands in for an extension monitor that issues one
// message per parent child (docker-image-updates), so ProcessResponses can
// only correlate correctly if it receives every response at once.
type multiMessageMonitor struct {
	messages []string
}

func (m *multiMessageMonitor) Metadata() module.Metadata {
	return module.Metadata{Spec: module.NewSpec("multi", "0.1"), ConnectorID: "connector-http"}
}
func (m *multiMessageMonitor) DisplayOptions() module.DisplayOptions { return module.DisplayOptions{Category: "docker"} }
func (m *multiMessageMonitor) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-http", "0.1"), true
}
func (m *multiMessageMonitor) Category() string { return "docker" }
func (m *multiMessageMonitor) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	return m.messages, nil
}
func (m *multiMessageMonitor) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	dp := datapoint.New("", "Multi")
	for _, r := range responses {
		dp.Multivalue = append(dp.Multivalue, datapoint.New(r, r))
	}

	return dp, nil
}

func newTestManager(t *testing.T, mon Monitor) (*Manager, *fakeDispatcher, *state.Manager) {
	t.Helper()

	registry := module.NewRegistry[Monitor]()
	registry.Register(mon.Metadata(), func(settings module.Settings) (Monitor, error) {
		return mon, nil
	})

	d := &fakeDispatcher{}
	stateMgr := state.NewManager(logrus.New())

	go stateMgr.Run()

	return NewManager(logrus.New(), d, registry, stateMgr), d, stateMgr
}

func TestRefreshByIDHappyPath(t *testing.T) {
	mon := &kernelMonitor{}
	mgr, d, stateMgr := newTestManager(t, mon)

	h := host.New("host-1", "", "127.0.0.1")
	stateMgr.RegisterHost(h)

	obs := stateMgr.Observe()

	require.NoError(t, mgr.RefreshByID(h, mon.Metadata().Spec, connector.UseCache))
	require.Len(t, d.requests, 1)

	d.requests[0].Handler(connector.Final("5.10.0 x86_64\n", 0))

	select {
	case snap := <-obs:
		require.NotNil(t, snap.Latest)
		assert.Equal(t, "5.10.0 (x86_64)", snap.Latest.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state snapshot")
	}
}

func TestRefreshByIDDeliversEveryMessagesResponse(t *testing.T) {
	mon := &multiMessageMonitor{messages: []string{"web", "db", "cache"}}
	mgr, d, stateMgr := newTestManager(t, mon)

	h := host.New("host-1", "", "127.0.0.1")
	stateMgr.RegisterHost(h)

	obs := stateMgr.Observe()

	require.NoError(t, mgr.RefreshByID(h, mon.Metadata().Spec, connector.UseCache))
	require.Len(t, d.requests, 1)

	handler := d.requests[0].Handler
	handler(connector.Final("web-result", 0))
	handler(connector.Final("db-result", 0))
	handler(connector.Final("cache-result", 0))

	select {
	case snap := <-obs:
		require.NotNil(t, snap.Latest)
		require.Len(t, snap.Latest.Multivalue, 3)
		assert.Equal(t, "web-result", snap.Latest.Multivalue[0].Value)
		assert.Equal(t, "db-result", snap.Latest.Multivalue[1].Value)
		assert.Equal(t, "cache-result", snap.Latest.Multivalue[2].Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state snapshot")
	}
}

func TestRefreshByIDUnsupportedPlatform(t *testing.T) {
	mon := &kernelMonitor{unsupported: true}
	mgr, d, stateMgr := newTestManager(t, mon)

	h := host.New("host-1", "", "127.0.0.1")
	stateMgr.RegisterHost(h)

	obs := stateMgr.Observe()

	require.NoError(t, mgr.RefreshByID(h, mon.Metadata().Spec, connector.UseCache))
	assert.Empty(t, d.requests)

	select {
	case snap := <-obs:
		require.NotNil(t, snap.Latest)
		assert.Equal(t, datapoint.NotAvailable, snap.Latest.Criticality)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state snapshot")
	}
}

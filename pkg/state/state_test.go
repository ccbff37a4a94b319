package state

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

func newRunningManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(logrus.New())
	go m.Run()

	return m
}

func TestRemoveHostDropsState(t *testing.T) {
	m := newRunningManager(t)
	h := host.New("host-1", "", "127.0.0.1")
	m.RegisterHost(h)

	_, ok := m.Host("host-1")
	require.True(t, ok)

	m.RemoveHost("host-1")

	_, ok = m.Host("host-1")
	assert.False(t, ok)
}

func TestDataPointAppendsToSeries(t *testing.T) {
	m := newRunningManager(t)
	h := host.New("host-1", "", "127.0.0.1")
	m.RegisterHost(h)

	obs := m.Observe()

	dp := datapoint.New("ok", "Kernel")
	m.Submit(StateUpdateMessage{
		HostID:     "host-1",
		ModuleSpec: module.NewSpec("kernel", "0.1"),
		DataPoint:  &dp,
	})

	select {
	case snap := <-obs:
		require.NotNil(t, snap.Latest)
		assert.Equal(t, "ok", snap.Latest.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	hs, ok := m.Host("host-1")
	require.True(t, ok)
	assert.Len(t, hs.Monitors["kernel"], 1)
}

func TestPlatformInfoMarkerMutatesPlatform(t *testing.T) {
	m := newRunningManager(t)
	h := host.New("host-1", "", "127.0.0.1")
	m.RegisterHost(h)

	dp := datapoint.DataPoint{
		Value: datapoint.PlatformInfoValue,
		Multivalue: []datapoint.DataPoint{
			{Label: "os", Value: "Linux"},
			{Label: "flavor", Value: "debian"},
			{Label: "version", Value: "12.0.0"},
			{Label: "architecture", Value: "x86_64"},
		},
	}

	obs := m.Observe()

	m.Submit(StateUpdateMessage{
		HostID:     "host-1",
		ModuleSpec: module.NewSpec("platform-info", "0.1"),
		DataPoint:  &dp,
	})

	select {
	case snap := <-obs:
		require.NotNil(t, snap.Platform)
		assert.Equal(t, host.OSLinux, snap.Platform.OS)
		assert.Equal(t, host.FlavorDebian, snap.Platform.Flavor)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	hs, ok := m.Host("host-1")
	require.True(t, ok)
	assert.Empty(t, hs.Monitors["platform-info"])
	assert.Equal(t, host.FlavorDebian, hs.Host.Platform.Flavor)
}

func TestCommandResultRecorded(t *testing.T) {
	m := newRunningManager(t)
	h := host.New("host-1", "", "127.0.0.1")
	m.RegisterHost(h)

	result := command.Result{Message: "done", InvocationID: 7}

	m.Submit(StateUpdateMessage{
		HostID:        "host-1",
		ModuleSpec:    module.NewSpec("systemd-service-restart", "0.1"),
		CommandResult: &result,
	})

	require.Eventually(t, func() bool {
		hs, ok := m.Host("host-1")
		if !ok {
			return false
		}

		_, ok = hs.CommandByInvo[7]

		return ok
	}, time.Second, 10*time.Millisecond)
}

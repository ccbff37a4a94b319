package command

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
)

type fakeDispatcher struct {
	requests []*connector.Request
}

func (f *fakeDispatcher) Enqueue(req *connector.Request) {
	f.requests = append(f.requests, req)
}

type echoCommand struct {
	connSpec module.Spec
	fail     error
}

func (c *echoCommand) Metadata() module.Metadata { return module.Metadata{Spec: module.NewSpec("echo", "0.1")} }
func (c *echoCommand) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Action: module.ActionNone}
}
func (c *echoCommand) ConnectorSpec() (module.Spec, bool) { return c.connSpec, true }
func (c *echoCommand) GetConnectorMessages(h *host.Host, parameters []string) ([]string, error) {
	if c.fail != nil {
		return nil, c.fail
	}

	return []string{"echo hi"}, nil
}
func (c *echoCommand) ProcessResponses(h *host.Host, responses []ConnectorResponse, parameters []string) (Result, error) {
	return Result{Message: responses[0].Message, Criticality: datapoint.Normal}, nil
}

type twoMessageCommand struct{}

func (c *twoMessageCommand) Metadata() module.Metadata {
	return module.Metadata{Spec: module.NewSpec("two-step", "0.1")}
}
func (c *twoMessageCommand) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Action: module.ActionNone}
}
func (c *twoMessageCommand) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-local", "0.1"), true
}
func (c *twoMessageCommand) GetConnectorMessages(h *host.Host, parameters []string) ([]string, error) {
	return []string{"stop", "start"}, nil
}
func (c *twoMessageCommand) ProcessResponses(h *host.Host, responses []ConnectorResponse, parameters []string) (Result, error) {
	return Result{Message: responses[len(responses)-1].Message, Criticality: datapoint.Normal}, nil
}

func newTestManager(t *testing.T, cmd Command) (*Manager, *fakeDispatcher, *[]Result) {
	t.Helper()

	registry := module.NewRegistry[Command]()
	spec := module.NewSpec("echo", "0.1")
	registry.Register(module.Metadata{Spec: spec}, func(settings module.Settings) (Command, error) {
		return cmd, nil
	})

	d := &fakeDispatcher{}

	var results []Result

	sink := func(hostID string, spec module.Spec, result Result, exit bool) {
		results = append(results, result)
	}

	return NewManager(logrus.New(), d, registry, sink, nil), d, &results
}

func TestExecuteHappyPath(t *testing.T) {
	cmd := &echoCommand{connSpec: module.NewSpec("connector-local", "0.1")}
	mgr, d, results := newTestManager(t, cmd)

	h := host.New("host-1", "", "127.0.0.1")

	invocationID, err := mgr.Execute(h, module.NewSpec("echo", "0.1"), nil)
	require.NoError(t, err)
	assert.NotZero(t, invocationID)
	require.Len(t, d.requests, 1)

	d.requests[0].Handler(connector.Final("hi\n", 0))

	require.Len(t, *results, 1)
	assert.Equal(t, "hi\n", (*results)[0].Message)
	assert.Equal(t, invocationID, (*results)[0].InvocationID)
}

func TestExecuteMultiMessageDeliversExactlyOneTerminalResult(t *testing.T) {
	cmd := &twoMessageCommand{}
	mgr, d, results := newTestManager(t, cmd)

	h := host.New("host-1", "", "127.0.0.1")

	invocationID, err := mgr.Execute(h, module.NewSpec("echo", "0.1"), nil)
	require.NoError(t, err)
	require.Len(t, d.requests, 1)

	handler := d.requests[0].Handler
	handler(connector.Final("stopped", 0))
	handler(connector.Final("started", 0))

	require.Len(t, *results, 1)
	assert.Equal(t, "started", (*results)[0].Message)
	assert.Equal(t, invocationID, (*results)[0].InvocationID)
}

func TestExecuteUnsupportedPlatformSkipsDispatch(t *testing.T) {
	cmd := &echoCommand{
		connSpec: module.NewSpec("connector-local", "0.1"),
		fail:     lkerror.New(lkerror.UnsupportedPlatform, "no branch"),
	}
	mgr, d, results := newTestManager(t, cmd)

	h := host.New("host-1", "", "127.0.0.1")

	_, err := mgr.Execute(h, module.NewSpec("echo", "0.1"), nil)
	require.NoError(t, err)
	assert.Empty(t, d.requests)
	require.Len(t, *results, 1)
	assert.Equal(t, "Unsupported platform", (*results)[0].Message)
	assert.Equal(t, datapoint.Error, (*results)[0].Criticality)
}

func TestCooldownTracking(t *testing.T) {
	cmd := &echoCommand{connSpec: module.NewSpec("connector-local", "0.1")}
	mgr, _, _ := newTestManager(t, cmd)

	mgr.BeginCooldown("restart-nginx", 0)
	assert.Equal(t, time.Duration(0), mgr.RemainingCooldown("restart-nginx"))
}

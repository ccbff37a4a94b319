package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

func TestPlatformInfoProcessResponses(t *testing.T) {
	mon := &PlatformInfo{}
	h := host.New("host-1", "", "")

	osRelease := "ID=debian\nVERSION_ID=\"12\"\nPRETTY_NAME=\"Debian GNU/Linux 12\"\nx86_64"

	dp, err := mon.ProcessResponses(h, []string{osRelease}, nil)
	require.NoError(t, err)
	assert.True(t, dp.IsPlatformInfo())

	var flavor, arch string

	for _, child := range dp.Multivalue {
		switch child.Label {
		case "flavor":
			flavor = child.Value
		case "architecture":
			arch = child.Value
		}
	}

	assert.Equal(t, "debian", flavor)
	assert.Equal(t, "x86_64", arch)
}

func TestKernelUnsupportedOnNonLinux(t *testing.T) {
	mon := &Kernel{}
	h := host.New("host-1", "", "")
	h.Platform.OS = host.OSOther

	_, err := mon.GetConnectorMessages(h, nil)
	require.Error(t, err)
	assert.Equal(t, lkerror.UnsupportedPlatform, lkerror.KindOf(err))
}

func TestKernelProcessResponses(t *testing.T) {
	mon := &Kernel{}
	h := host.New("host-1", "", "")

	dp, err := mon.ProcessResponses(h, []string{"5.10.0 x86_64\n"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "5.10.0 (x86_64)", dp.Value)
	assert.Equal(t, datapoint.Normal, dp.Criticality)
}

func TestDockerContainersProcessResponses(t *testing.T) {
	mon := &DockerContainers{}
	h := host.New("host-1", "", "")

	line := `{"ID":"abc123","Names":"web","Image":"nginx:latest","State":"running"}`

	dp, err := mon.ProcessResponses(h, []string{line}, nil)
	require.NoError(t, err)
	require.Len(t, dp.Multivalue, 1)
	assert.Equal(t, "nginx:latest", dp.Multivalue[0].Value)
	assert.Equal(t, "web", dp.Multivalue[0].Label)
}

func TestDockerContainersProcessResponsesWithPorts(t *testing.T) {
	mon := &DockerContainers{}
	h := host.New("host-1", "", "")

	line := `{"ID":"abc123","Names":"web","Image":"nginx:latest","State":"running","Ports":"0.0.0.0:8080->80/tcp"}`

	dp, err := mon.ProcessResponses(h, []string{line}, nil)
	require.NoError(t, err)
	require.Len(t, dp.Multivalue, 1)
	assert.Contains(t, dp.Multivalue[0].Description, "80/tcp")
}

func TestFormatPortsFallsBackOnUnparseable(t *testing.T) {
	assert.Equal(t, "not a port spec", formatPorts("not a port spec"))
	assert.Equal(t, "", formatPorts(""))
}

func TestDockerImageUpdatesRequiresParent(t *testing.T) {
	mon := &DockerImageUpdates{registryBaseURL: "https://registry.example.com"}
	h := host.New("host-1", "", "")

	_, err := mon.GetConnectorMessages(h, nil)
	require.Error(t, err)
	assert.Equal(t, lkerror.InvalidParameter, lkerror.KindOf(err))
}

func TestDockerImageUpdatesMarksStatuses(t *testing.T) {
	mon := &DockerImageUpdates{registryBaseURL: "https://registry.example.com"}
	h := host.New("host-1", "", "")

	parent := datapoint.New("", "Containers")
	parent.Multivalue = []datapoint.DataPoint{
		{Label: "web", Value: "nginx:latest", Description: "2 days"},
	}

	messages, err := mon.GetConnectorMessages(h, &parent)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	enriched, err := mon.ProcessResponses(h, []string{`{"tags":["latest"]}`}, &parent)
	require.NoError(t, err)
	require.Len(t, enriched.Multivalue, 1)
	assert.Equal(t, "Up-to-date", enriched.Multivalue[0].Value)
}

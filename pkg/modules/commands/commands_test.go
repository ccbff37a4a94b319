package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
)

func TestSystemdServiceRestartUnsupportedPlatform(t *testing.T) {
	cmd := &SystemdServiceRestart{}
	h := host.New("host-1", "", "")
	h.Platform.Flavor = host.FlavorAlpine

	_, err := cmd.GetConnectorMessages(h, []string{"nginx"})
	require.Error(t, err)
	assert.Equal(t, lkerror.UnsupportedPlatform, lkerror.KindOf(err))
}

func TestSystemdServiceRestartRejectsDashPrefixedInput(t *testing.T) {
	cmd := &SystemdServiceRestart{}
	h := host.New("host-1", "", "")
	h.Platform.Flavor = host.FlavorDebian

	_, err := cmd.GetConnectorMessages(h, []string{"-rf /; reboot"})
	require.Error(t, err)
	assert.Equal(t, lkerror.InvalidParameter, lkerror.KindOf(err))
}

func TestSystemdServiceRestartBuildsSudoCommand(t *testing.T) {
	cmd := &SystemdServiceRestart{}
	h := host.New("host-1", "", "")
	h.Platform.Flavor = host.FlavorDebian
	h.Settings[host.UseSudo] = true

	messages, err := cmd.GetConnectorMessages(h, []string{"nginx"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "sudo systemctl restart nginx", messages[0])
}

func TestSystemdServiceRestartProcessResponsesError(t *testing.T) {
	cmd := &SystemdServiceRestart{}
	h := host.New("host-1", "", "")

	result, err := cmd.ProcessResponses(h, []command.ConnectorResponse{{Message: "failed", ReturnCode: 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, datapoint.Error, result.Criticality)
}

func TestDockerPruneInvalidAgeFilter(t *testing.T) {
	cmd := &DockerPrune{}
	h := host.New("host-1", "", "")

	_, err := cmd.GetConnectorMessages(h, []string{"not-an-age"})
	require.Error(t, err)
	assert.Equal(t, lkerror.InvalidParameter, lkerror.KindOf(err))
}

func TestDockerPruneBuildsCommand(t *testing.T) {
	cmd := &DockerPrune{}
	h := host.New("host-1", "", "")

	messages, err := cmd.GetConnectorMessages(h, []string{"24h"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "until=24h")
}

func TestDockerPruneParsesReclaimedSpace(t *testing.T) {
	cmd := &DockerPrune{}
	h := host.New("host-1", "", "")

	result, err := cmd.ProcessResponses(h, []command.ConnectorResponse{
		{Message: "Deleted Images:\nTotal reclaimed space: 1.2GB", ReturnCode: 0},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Reclaimed 1.2GB", result.Message)
}

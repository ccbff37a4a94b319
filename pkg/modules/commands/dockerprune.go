package commands

import (
	"strings"

	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/shellcmd"
)

// DockerPrune runs `docker system prune` against a host to reclaim disk
// space from stopped containers, dangling images, and unused networks.
type DockerPrune struct{}

func NewDockerPrune(settings module.Settings) (*DockerPrune, error) {
	return &DockerPrune{}, nil
}

func (d *DockerPrune) Metadata() module.Metadata {
	return module.Metadata{
		Spec:        module.NewSpec("docker-prune", "0.1"),
		Description: "Reclaims disk space via docker system prune.",
		CacheScope:  module.CacheNone,
		ConnectorID: "connector-ssh",
	}
}

func (d *DockerPrune) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "docker", Action: module.ActionTextDialog, ConfirmCommand: true}
}

func (d *DockerPrune) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}

// GetConnectorMessages accepts an optional first parameter, the minimum
// object age ("24h", "720h"); it must parse as a numeric-with-unit value so
// it can never smuggle an extra flag into the command line.
func (d *DockerPrune) GetConnectorMessages(h *host.Host, parameters []string) ([]string, error) {
	cmd := shellcmd.New("docker", "system", "prune", "-f")

	if len(parameters) > 0 && parameters[0] != "" {
		age := parameters[0]
		if !shellcmd.IsNumericWithUnit(age, []string{"h", "m"}) {
			return nil, lkerror.New(lkerror.InvalidParameter, "invalid age filter")
		}

		cmd.Arg("--filter").Arg("until=" + age)
	}

	if h.HasSetting(host.UseSudo) {
		cmd.Sudo()
	}

	return []string{cmd.String()}, nil
}

func (d *DockerPrune) ProcessResponses(h *host.Host, responses []command.ConnectorResponse, parameters []string) (command.Result, error) {
	resp := responses[0]

	if resp.ReturnCode != 0 {
		return command.Result{Message: resp.Message, Criticality: datapoint.Error}, nil
	}

	reclaimed := "unknown"

	for _, line := range strings.Split(resp.Message, "\n") {
		if strings.HasPrefix(line, "Total reclaimed space:") {
			reclaimed = strings.TrimSpace(strings.TrimPrefix(line, "Total reclaimed space:"))
		}
	}

	return command.Result{Message: "Reclaimed " + reclaimed, Criticality: datapoint.Normal}, nil
}

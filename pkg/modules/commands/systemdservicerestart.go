// Package commands holds the exemplar command modules that pin the core's
// command contract: a platform-gated restart and a Docker maintenance
// command, both routing user input through pkg/shellcmd's validators.
package commands

import (
	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/shellcmd"
)

// SystemdServiceRestart restarts a systemd unit. It only has a branch for
// hosts whose platform is a systemd-based distribution; any other flavour
// surfaces UnsupportedPlatform rather than attempting a restart.
type SystemdServiceRestart struct{}

func NewSystemdServiceRestart(settings module.Settings) (*SystemdServiceRestart, error) {
	return &SystemdServiceRestart{}, nil
}

func (s *SystemdServiceRestart) Metadata() module.Metadata {
	return module.Metadata{
		Spec:        module.NewSpec("systemd-service-restart", "0.1"),
		Description: "Restarts a systemd service unit.",
		CacheScope:  module.CacheNone,
		ConnectorID: "connector-ssh",
	}
}

func (s *SystemdServiceRestart) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "system", Action: module.ActionFollowOutput, ConfirmCommand: true}
}

func (s *SystemdServiceRestart) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}

// usesSystemd reports whether h's platform is known to run systemd as
// PID 1; Alpine's OpenRC is the canonical counter-example in this table.
func usesSystemd(h *host.Host) bool {
	switch h.Platform.Flavor {
	case host.FlavorDebian, host.FlavorUbuntu, host.FlavorRedHat, host.FlavorCentOS, host.FlavorFedora, host.FlavorArchLinux, host.FlavorOpenSUSE:
		return true
	default:
		return false
	}
}

func (s *SystemdServiceRestart) GetConnectorMessages(h *host.Host, parameters []string) ([]string, error) {
	if !usesSystemd(h) {
		return nil, lkerror.New(lkerror.UnsupportedPlatform, "host does not use systemd")
	}

	if len(parameters) != 1 {
		return nil, lkerror.New(lkerror.InvalidParameter, "expected exactly one service name")
	}

	serviceName := parameters[0]

	if shellcmd.BeginsWithDash(serviceName) || !shellcmd.IsAlphanumericWith(serviceName, "-_.@") {
		return nil, lkerror.New(lkerror.InvalidParameter, "invalid service name")
	}

	cmd := shellcmd.New("systemctl", "restart", serviceName)
	if h.HasSetting(host.UseSudo) {
		cmd.Sudo()
	}

	return []string{cmd.String()}, nil
}

func (s *SystemdServiceRestart) ProcessResponses(h *host.Host, responses []command.ConnectorResponse, parameters []string) (command.Result, error) {
	resp := responses[0]

	if resp.ReturnCode != 0 {
		return command.Result{Message: resp.Message, Criticality: datapoint.Error}, nil
	}

	return command.NewHidden(resp.Message), nil
}

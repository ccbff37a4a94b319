package monitors

import (
	"fmt"
	"strings"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// Kernel reports the running kernel release and architecture. It gates on
// host.Platform.OS being Linux, the textbook platform-gating example from
// the core data model.
type Kernel struct{}

func NewKernel(settings module.Settings) (*Kernel, error) {
	return &Kernel{}, nil
}

func (k *Kernel) Metadata() module.Metadata {
	return module.Metadata{
		Spec:        module.NewSpec("kernel", "0.1"),
		Description: "Running kernel release and architecture.",
		CacheScope:  module.CacheHost,
		ConnectorID: "connector-ssh",
	}
}

func (k *Kernel) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "system", DisplayText: "Kernel"}
}

func (k *Kernel) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}

func (k *Kernel) Category() string { return "system" }

func (k *Kernel) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	if h.Platform.OS != host.OSLinux {
		return nil, lkerror.New(lkerror.UnsupportedPlatform, "kernel monitor requires Linux")
	}

	return []string{"uname -r -m"}, nil
}

func (k *Kernel) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	fields := strings.Fields(responses[0])
	if len(fields) < 2 {
		return datapoint.DataPoint{}, lkerror.New(lkerror.Other, "unexpected uname output")
	}

	value := fmt.Sprintf("%s (%s)", fields[0], fields[1])

	return datapoint.New(value, "Kernel"), nil
}

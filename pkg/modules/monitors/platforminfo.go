// Package monitors holds the exemplar monitor modules that pin the core
// module contract: platform-info (the root every other monitor can gate
// on), kernel, and the docker-containers/docker-image-updates extension
// pair.
package monitors

import (
	"strings"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// PlatformInfoSpec identifies the platform-info monitor; every host's
// first refresh after registration should target this spec.
var PlatformInfoSpec = module.NewSpec("platform-info", "0.1")

// PlatformInfo reads /etc/os-release and uname over SSH and emits the
// special "_platform_info" marker DataPoint the state manager translates
// into host.Info, rather than a monitoring series entry.
type PlatformInfo struct{}

// NewPlatformInfo constructs a PlatformInfo monitor; it takes no settings.
func NewPlatformInfo(settings module.Settings) (*PlatformInfo, error) {
	return &PlatformInfo{}, nil
}

func (p *PlatformInfo) Metadata() module.Metadata {
	return module.Metadata{
		Spec:        PlatformInfoSpec,
		Description: "Collects OS, distribution, version, and architecture facts.",
		IsStateless: false,
		CacheScope:  module.CacheHost,
		ConnectorID: "connector-ssh",
	}
}

func (p *PlatformInfo) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "host", DisplayText: "Platform"}
}

func (p *PlatformInfo) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}

func (p *PlatformInfo) Category() string { return "host" }

func (p *PlatformInfo) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	return []string{"cat /etc/os-release; uname -m"}, nil
}

// ProcessResponses parses the combined os-release + uname output into the
// platform-info marker DataPoint's labelled children.
func (p *PlatformInfo) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	var id, versionID string

	lines := strings.Split(responses[0], "\n")
	arch := strings.TrimSpace(lines[len(lines)-1])

	for _, line := range lines {
		if v, ok := strings.CutPrefix(line, "ID="); ok {
			id = strings.Trim(v, `"`)
		}

		if v, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
			versionID = strings.Trim(v, `"`)
		}
	}

	dp := datapoint.DataPoint{
		Value: datapoint.PlatformInfoValue,
		Multivalue: []datapoint.DataPoint{
			{Label: "os", Value: "Linux"},
			{Label: "flavor", Value: id},
			{Label: "version", Value: versionID},
			{Label: "architecture", Value: arch},
		},
	}

	return dp, nil
}

package monitors

import (
	"fmt"
	"strings"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// DockerImageUpdates is an extension monitor: its parent is
// docker-containers, and it checks each non-local image tag against its
// registry's tags/list endpoint (a Docker Registry v2 call, handled by the
// HTTP/JWT connector's bearer-challenge flow) to report whether a newer tag
// exists.
type DockerImageUpdates struct {
	registryBaseURL string
}

func NewDockerImageUpdates(settings module.Settings) (*DockerImageUpdates, error) {
	base := settings["registry_base_url"]
	if base == "" {
		base = "https://registry-1.docker.io"
	}

	return &DockerImageUpdates{registryBaseURL: base}, nil
}

func (d *DockerImageUpdates) Metadata() module.Metadata {
	parent := DockerContainersSpec

	return module.Metadata{
		Spec:         module.NewSpec("docker-image-updates", "0.1"),
		Description:  "Checks running container images against their registry for newer tags.",
		ParentModule: &parent,
		CacheScope:   module.CacheGlobal,
		ConnectorID:  "connector-http",
	}
}

func (d *DockerImageUpdates) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "docker", DisplayText: "Image updates"}
}

func (d *DockerImageUpdates) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-http", "0.1"), true
}

func (d *DockerImageUpdates) Category() string { return "docker" }

// GetConnectorMessages issues one registry tags/list URL per non-local
// image tag found in the parent's last multivalue children.
func (d *DockerImageUpdates) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	if parent == nil {
		return nil, lkerror.New(lkerror.InvalidParameter, "docker-image-updates requires docker-containers data")
	}

	var messages []string

	for _, child := range parent.Multivalue {
		repo, tag, ok := strings.Cut(child.Value, ":")
		if !ok || strings.Contains(repo, "localhost") {
			continue
		}

		messages = append(messages, fmt.Sprintf("%s/v2/%s/tags/list", d.registryBaseURL, repo))
		_ = tag
	}

	return messages, nil
}

// ProcessResponses marks each checked container's child as Up-to-date or
// Outdated, preserving the original age string in Description, per the
// extension-monitor invariant that the enriched point replaces the
// parent's under the extension's own module id.
func (d *DockerImageUpdates) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	if parent == nil {
		return datapoint.DataPoint{}, lkerror.New(lkerror.InvalidParameter, "missing parent data point")
	}

	enriched := *parent
	enriched.Multivalue = make([]datapoint.DataPoint, len(parent.Multivalue))

	responseIdx := 0

	for i, child := range parent.Multivalue {
		out := child

		if !strings.Contains(child.Value, ":") || strings.Contains(child.Value, "localhost") {
			enriched.Multivalue[i] = out

			continue
		}

		status := "Up-to-date"
		if responseIdx < len(responses) && strings.Contains(responses[responseIdx], "newer") {
			status = "Outdated"
		}

		out.Description = child.Description
		out.Value = status
		enriched.Multivalue[i] = out
		responseIdx++
	}

	enriched.UpdateCriticalityFromChildren()

	return enriched, nil
}

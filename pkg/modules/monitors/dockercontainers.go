package monitors

import (
	"encoding/json"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
)

// dockerSummary mirrors the subset of container.Summary fields `docker ps
// --format '{{json .}}'` actually emits (Go template JSON, not the engine
// API's own wire shape) - we reuse the engine API's field names so the
// extension monitor below and the UI can share one vocabulary.
type dockerSummary struct {
	ID    string `json:"ID"`
	Names string `json:"Names"`
	Image string `json:"Image"`
	State string `json:"State"`
	Ports string `json:"Ports"`
}

// formatPorts re-parses the CLI's "0.0.0.0:8080->80/tcp, 443/tcp" style
// ports string with the same port-spec parser the engine itself uses for
// -p flags, so malformed or unusual specs degrade the same way the engine
// would treat them rather than tripping up a hand-rolled parser.
func formatPorts(raw string) string {
	if raw == "" {
		return ""
	}

	specs := strings.Split(raw, ", ")

	_, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return raw
	}

	ports := make([]string, 0, len(bindings))
	for port := range bindings {
		ports = append(ports, string(port))
	}

	return strings.Join(ports, ", ")
}

// DockerContainers lists running containers on a host and reports each as
// a multivalue child whose value is the container's image reference
// ("<repo>:<tag>") and whose label is the container name; the
// docker-image-updates extension monitor keys off that value.
type DockerContainers struct{}

func NewDockerContainers(settings module.Settings) (*DockerContainers, error) {
	return &DockerContainers{}, nil
}

// DockerContainersSpec identifies this monitor; referenced as the parent
// of docker-image-updates.
var DockerContainersSpec = module.NewSpec("docker-containers", "0.1")

func (d *DockerContainers) Metadata() module.Metadata {
	return module.Metadata{
		Spec:        DockerContainersSpec,
		Description: "Lists running Docker containers and their images.",
		CacheScope:  module.CacheHost,
		ConnectorID: "connector-ssh",
	}
}

func (d *DockerContainers) DisplayOptions() module.DisplayOptions {
	return module.DisplayOptions{Category: "docker", DisplayText: "Containers"}
}

func (d *DockerContainers) ConnectorSpec() (module.Spec, bool) {
	return module.NewSpec("connector-ssh", "0.1"), true
}

func (d *DockerContainers) Category() string { return "docker" }

func (d *DockerContainers) GetConnectorMessages(h *host.Host, parent *datapoint.DataPoint) ([]string, error) {
	return []string{`docker ps --format '{{json .}}'`}, nil
}

func (d *DockerContainers) ProcessResponses(h *host.Host, responses []string, parent *datapoint.DataPoint) (datapoint.DataPoint, error) {
	root := datapoint.New("", "Containers")

	for _, line := range strings.Split(strings.TrimSpace(responses[0]), "\n") {
		if line == "" {
			continue
		}

		var summary dockerSummary
		if err := json.Unmarshal([]byte(line), &summary); err != nil {
			return datapoint.DataPoint{}, lkerror.Wrap(lkerror.Other, "parse docker ps output", err)
		}

		// Re-expressed as the engine API's own container.Summary shape so
		// downstream code (and the extension monitor below) works against
		// one vocabulary instead of the CLI's ad hoc JSON template fields.
		engineSummary := container.Summary{
			ID:    summary.ID,
			Names: []string{summary.Names},
			Image: summary.Image,
			State: summary.State,
		}

		child := datapoint.New(engineSummary.Image, strings.TrimPrefix(engineSummary.Names[0], "/"))
		child.Description = engineSummary.State

		if ports := formatPorts(summary.Ports); ports != "" {
			child.Description += " (" + ports + ")"
		}

		root.Multivalue = append(root.Multivalue, child)
	}

	root.UpdateCriticalityFromChildren()

	return root, nil
}

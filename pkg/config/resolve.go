package config

import (
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
)

// ResolvedHost is a host entry with every group fragment it references
// merged in. Host-level values always win over group-level ones; among
// groups, later entries in HostEntry.Groups win, matching the "last one
// wins" merge order used elsewhere for settings overlays.
type ResolvedHost struct {
	ID         string
	Address    string
	FQDN       string
	Groups     []string
	Settings   map[string]string
	Monitors   map[string]ModuleRef
	Commands   map[string]ModuleRef
	Connectors map[string]ConnectorRef
}

// Resolve merges every group fragment id references, in order, under the
// host's own entry, which always wins ties.
func Resolve(id string, entry HostEntry, groups GroupsConfig) ResolvedHost {
	resolved := ResolvedHost{
		ID:         id,
		Address:    entry.Address,
		FQDN:       entry.FQDN,
		Groups:     entry.Groups,
		Settings:   map[string]string{},
		Monitors:   map[string]ModuleRef{},
		Commands:   map[string]ModuleRef{},
		Connectors: map[string]ConnectorRef{},
	}

	for _, groupName := range entry.Groups {
		group, ok := groups.Groups[groupName]
		if !ok {
			continue
		}

		mergeSettings(resolved.Settings, group.Settings)
		mergeModuleRefs(resolved.Monitors, group.Monitors)
		mergeModuleRefs(resolved.Commands, group.Commands)
		mergeConnectorRefs(resolved.Connectors, group.Connectors)
	}

	mergeSettings(resolved.Settings, entry.Settings)
	mergeModuleRefs(resolved.Monitors, entry.Monitors)
	mergeModuleRefs(resolved.Commands, entry.Commands)
	mergeConnectorRefs(resolved.Connectors, entry.Connectors)

	return resolved
}

func mergeSettings(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeModuleRefs(dst, src map[string]ModuleRef) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeConnectorRefs(dst, src map[string]ConnectorRef) {
	for k, v := range src {
		dst[k] = v
	}
}

// ToHost builds the registry-facing *host.Host from a resolved host entry.
// Boolean-valued settings recognised by the host package (currently only
// UseSudo) are copied over; unrecognised settings are module-specific and
// stay in ResolvedHost.Settings for the module factories to read.
func (r ResolvedHost) ToHost() *host.Host {
	h := host.New(r.ID, r.FQDN, r.Address)
	h.Groups = r.Groups

	if v, ok := r.Settings[string(host.UseSudo)]; ok && v == "true" {
		h.Settings[host.UseSudo] = true
	}

	return h
}

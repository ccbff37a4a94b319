package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/cache"
	"github.com/lightkeeper-hq/lightkeeper/pkg/command"
	"github.com/lightkeeper-hq/lightkeeper/pkg/config"
	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/dispatcher"
	"github.com/lightkeeper-hq/lightkeeper/pkg/host"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/modules/commands"
	"github.com/lightkeeper-hq/lightkeeper/pkg/modules/monitors"
	"github.com/lightkeeper-hq/lightkeeper/pkg/monitor"
	"github.com/lightkeeper-hq/lightkeeper/pkg/state"
)

// configPaths returns the resolved main/hosts/groups config file paths,
// read from the root command's persistent flags after parsing.
type configPaths func() (mainPath, hostsPath, groupsPath string)

// app bundles every core component the subcommands need, built once from
// the three configuration documents. This is the "glue" layer: it wires
// real components together but contains no core logic of its own.
type app struct {
	log *logrus.Logger

	mainConfig *config.Config
	hosts      map[string]*host.Host

	pool       *connector.Pool
	dispatcher *dispatcher.Dispatcher
	stateMgr   *state.Manager

	monitorRegistry *module.Registry[monitor.Monitor]
	commandRegistry *module.Registry[command.Command]

	monitorMgr *monitor.Manager
	commandMgr *command.Manager
}

// newApp loads the three configuration documents and wires the core
// components together: registries, connector pool, response cache,
// dispatcher, state manager, monitor/command managers.
func newApp(log *logrus.Logger, mainPath, hostsPath, groupsPath string) (*app, error) {
	mainCfg, err := config.Load(mainPath)
	if err != nil {
		return nil, err
	}

	hostsCfg, err := config.LoadHosts(hostsPath)
	if err != nil {
		return nil, err
	}

	groupsCfg, err := config.LoadGroups(groupsPath)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string]*host.Host, len(hostsCfg.Hosts))
	for id, entry := range hostsCfg.Hosts {
		hosts[id] = config.Resolve(id, entry, *groupsCfg).ToHost()
	}

	pool, err := buildConnectorPool(log)
	if err != nil {
		return nil, fmt.Errorf("build connector pool: %w", err)
	}

	monitorRegistry := module.NewRegistry[monitor.Monitor]()
	registerMonitors(monitorRegistry)

	commandRegistry := module.NewRegistry[command.Command]()
	registerCommands(commandRegistry)

	store := cache.NewMemoryStore(1024, 0)

	metadataLookup := func(spec module.Spec) (module.Metadata, bool) {
		if meta, ok := monitorRegistry.Metadata(spec); ok {
			return meta, true
		}

		return commandRegistry.Metadata(spec)
	}

	disp := dispatcher.New(log, pool, store, metadataLookup, "")

	stateMgr := state.NewManager(log)
	for _, h := range hosts {
		stateMgr.RegisterHost(h)
	}

	monitorMgr := monitor.NewManager(log, disp, monitorRegistry, stateMgr)

	commandSink := func(hostID string, spec module.Spec, result command.Result, exit bool) {
		stateMgr.Submit(state.StateUpdateMessage{
			HostID:        hostID,
			ModuleSpec:    spec,
			CommandResult: &result,
			Exit:          exit,
		})
	}

	commandMgr := command.NewManager(log, disp, commandRegistry, commandSink, nil)

	return &app{
		log:             log,
		mainConfig:      mainCfg,
		hosts:           hosts,
		pool:            pool,
		dispatcher:      disp,
		stateMgr:        stateMgr,
		monitorRegistry: monitorRegistry,
		commandRegistry: commandRegistry,
		monitorMgr:      monitorMgr,
		commandMgr:      commandMgr,
	}, nil
}

// buildConnectorPool registers one factory per connector kind. Credential
// material (SSH agent, known_hosts path) is sourced from the environment
// rather than per-host settings: fleet access in practice goes through an
// ssh-agent shared across hosts, not per-host passwords in a config file.
func buildConnectorPool(log *logrus.Logger) (*connector.Pool, error) {
	pool := connector.NewPool()

	knownHostsPath, err := defaultKnownHostsPath()
	if err != nil {
		return nil, err
	}

	hostKeyStore, err := connector.NewFileHostKeyStore(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("open known_hosts: %w", err)
	}

	sshUser := os.Getenv("LIGHTKEEPER_SSH_USER")
	if sshUser == "" {
		sshUser = os.Getenv("USER")
	}

	pool.RegisterFactory(module.NewSpec("connector-ssh", "0.1"), func(address string) (connector.Connector, error) {
		c := connector.NewSSH(log, connector.SSHAuth{User: sshUser, UseAgent: true}, hostKeyStore)
		return c, nil
	})

	pool.RegisterFactory(module.NewSpec("connector-http", "0.1"), func(address string) (connector.Connector, error) {
		return connector.NewHTTP(log), nil
	})

	pool.RegisterFactory(module.NewSpec("connector-tcp", "0.1"), func(address string) (connector.Connector, error) {
		return connector.NewTCP(log, connector.TCPOptions{}), nil
	})

	pool.RegisterFactory(module.NewSpec("connector-local", "0.1"), func(address string) (connector.Connector, error) {
		return connector.NewLocal(log, ""), nil
	})

	return pool, nil
}

func defaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return home + "/.ssh/known_hosts", nil
}

func registerMonitors(r *module.Registry[monitor.Monitor]) {
	r.Register((&monitors.PlatformInfo{}).Metadata(),
		func(settings module.Settings) (monitor.Monitor, error) { return monitors.NewPlatformInfo(settings) })

	r.Register((&monitors.Kernel{}).Metadata(),
		func(settings module.Settings) (monitor.Monitor, error) { return monitors.NewKernel(settings) })

	r.Register((&monitors.DockerContainers{}).Metadata(),
		func(settings module.Settings) (monitor.Monitor, error) { return monitors.NewDockerContainers(settings) })

	r.Register((&monitors.DockerImageUpdates{}).Metadata(),
		func(settings module.Settings) (monitor.Monitor, error) { return monitors.NewDockerImageUpdates(settings) })
}

func registerCommands(r *module.Registry[command.Command]) {
	r.Register((&commands.SystemdServiceRestart{}).Metadata(),
		func(settings module.Settings) (command.Command, error) { return commands.NewSystemdServiceRestart(settings) })

	r.Register((&commands.DockerPrune{}).Metadata(),
		func(settings module.Settings) (command.Command, error) { return commands.NewDockerPrune(settings) })
}

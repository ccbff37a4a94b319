package main

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/sidecar"
	"github.com/lightkeeper-hq/lightkeeper/pkg/state"
	"github.com/lightkeeper-hq/lightkeeper/pkg/ui"
	"github.com/lightkeeper-hq/lightkeeper/pkg/version"
)

// newServeCommand builds the long-lived daemon command: it wires the
// dispatcher, state manager, and monitor/command managers, optionally
// starts the metrics sidecar, then blocks printing state-manager deltas -
// a stand-in for the desktop UI this core has no opinion on.
func newServeCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived monitoring daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.PrintStartupBanner(version.GetVersion())

			mainPath, hostsPath, groupsPath := paths()

			a, err := newApp(log, mainPath, hostsPath, groupsPath)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			sc, err := startSidecarIfConfigured(log, a)
			if err != nil {
				log.WithError(err).Warn("sidecar unavailable, charting disabled")
			}
			if sc != nil {
				defer sc.Stop()
			}

			go a.dispatcher.Run(cmd.Context())
			go a.stateMgr.Run()

			for _, h := range a.hosts {
				if err := a.monitorMgr.RefreshPlatformInfo(h, 0); err != nil {
					log.WithError(err).WithField("host", h.ID).Warn("platform-info refresh failed")
				}
			}

			observer := a.stateMgr.Observe()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case snap, ok := <-observer:
					if !ok {
						return nil
					}

					printSnapshot(snap)
				}
			}
		},
	}
}

// printSnapshot is the stand-in for the desktop UI's observer panel: it
// renders each state-manager delta to stdout, coloured by criticality.
func printSnapshot(snap state.Snapshot) {
	switch {
	case snap.Platform != nil:
		ui.Info(fmt.Sprintf("[%s] platform: %s %s (%s)", snap.HostID, snap.Platform.Flavor, snap.Platform.Version, snap.Platform.OS))
	case snap.CommandResult != nil:
		printByCriticality(snap.CommandResult.Criticality, fmt.Sprintf("[%s] %s: %s (%s)", snap.HostID, snap.ModuleSpec.ID, snap.CommandResult.Message, snap.CommandResult.Criticality))
	case snap.Latest != nil:
		printByCriticality(snap.Latest.Criticality, fmt.Sprintf("[%s] %s: %s (%s)", snap.HostID, snap.ModuleSpec.ID, snap.Latest.Value, snap.Latest.Criticality))
	}
}

// printByCriticality routes a rendered line to the matching ui helper so
// the daemon's plain-text stream still calls out warnings and errors.
func printByCriticality(c datapoint.Criticality, line string) {
	switch c {
	case datapoint.Error, datapoint.Critical:
		ui.Error(line)
	case datapoint.Warning:
		ui.Warning(line)
	default:
		fmt.Println(line)
	}
}

// startSidecarIfConfigured checks for the external metrics process's trust
// material and launches it if the main config names a binary; a missing config is not an
// error, it just leaves charting disabled.
func startSidecarIfConfigured(log *logrus.Logger, a *app) (*sidecar.Supervisor, error) {
	cfg := a.mainConfig.Sidecar
	if cfg.BinaryPath == "" {
		return nil, nil
	}

	caPool := x509.NewCertPool()

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, err
		}

		caPool.AppendCertsFromPEM(pem)
	}

	sig, err := os.ReadFile(cfg.BinaryPath + ".sig")
	if err != nil {
		return nil, err
	}

	sc, err := sidecar.New(log, cfg.BinaryPath, cfg.SocketPath, caPool, sig)
	if err != nil {
		return nil, err
	}

	if err := sc.Start(); err != nil {
		return nil, err
	}

	return sc, nil
}

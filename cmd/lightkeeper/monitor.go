package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/ui"
)

func newMonitorCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run monitors against a host",
	}

	monitorCmd.AddCommand(newMonitorRefreshCommand(log, paths))

	return monitorCmd
}

func newMonitorRefreshCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	var (
		hostID      string
		monitorID   string
		category    string
		bypassCache bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one monitor refresh cycle and print the resulting data points",
		RunE: func(cmd *cobra.Command, args []string) error {
			if monitorID == "" && category == "" {
				return lkerror.New(lkerror.InvalidParameter, "one of --monitor or --category is required")
			}

			mainPath, hostsPath, groupsPath := paths()

			a, err := newApp(log, mainPath, hostsPath, groupsPath)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			h, ok := a.hosts[hostID]
			if !ok {
				return lkerror.New(lkerror.NotFound, "unknown host "+hostID)
			}

			go a.dispatcher.Run(cmd.Context())
			go a.stateMgr.Run()

			policy := connector.UseCache
			if bypassCache {
				policy = connector.BypassCache
			}

			if monitorID != "" {
				spec, err := module.ParseSpec(monitorID)
				if err != nil {
					return err
				}

				if err := a.monitorMgr.RefreshByID(h, spec, policy); err != nil {
					return err
				}
			} else if err := a.monitorMgr.RefreshByCategory(h, category, policy); err != nil {
				return err
			}

			spinner := ui.NewSilentSpinner("waiting for monitor results")
			time.Sleep(500 * time.Millisecond)
			_ = spinner.Stop()

			state, ok := a.stateMgr.Host(hostID)
			if !ok {
				return nil
			}

			ui.Header(fmt.Sprintf("%s monitor results", hostID))

			for id, points := range state.Monitors {
				for _, p := range points {
					line := fmt.Sprintf("%s: %s (%s)", id, p.Value, p.Criticality)

					switch p.Criticality {
					case datapoint.Error, datapoint.Critical:
						ui.Error(line)
					case datapoint.Warning:
						ui.Warning(line)
					default:
						fmt.Println(line)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hostID, "host", "", "Host id")
	cmd.Flags().StringVar(&monitorID, "monitor", "", "Monitor spec, e.g. kernel-0.1")
	cmd.Flags().StringVar(&category, "category", "", "Monitor category")
	cmd.Flags().BoolVar(&bypassCache, "bypass-cache", false, "Skip the response cache")

	_ = cmd.MarkFlagRequired("host")

	return cmd
}

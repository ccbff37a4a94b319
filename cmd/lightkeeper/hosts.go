package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/ui"
)

func newHostsCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	hostsCmd := &cobra.Command{
		Use:   "hosts",
		Short: "Inspect configured hosts",
	}

	hostsCmd.AddCommand(newHostsListCommand(log, paths))
	hostsCmd.AddCommand(newHostsForgetCommand(log, paths))

	return hostsCmd
}

func newHostsListCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print configured hosts and their last-known platform/status",
		RunE: func(cmd *cobra.Command, args []string) error {
			mainPath, hostsPath, groupsPath := paths()

			a, err := newApp(log, mainPath, hostsPath, groupsPath)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			ids := make([]string, 0, len(a.hosts))
			for id := range a.hosts {
				ids = append(ids, id)
			}

			sort.Strings(ids)

			ui.Section("Configured hosts")

			for _, id := range ids {
				h := a.hosts[id]
				fmt.Printf("%-20s %-20s status=%-8s flavor=%s\n", h.ID, h.Address(), h.Status, h.Platform.Flavor)
			}

			ui.Blank()

			return nil
		},
	}
}

// newHostsForgetCommand drops a host's accumulated state and cached
// responses, the natural trigger for invalidating entries a re-provisioned
// or decommissioned host should never see served back to it.
func newHostsForgetCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <host-id>",
		Short: "Remove a host's accumulated state and invalidate its cached responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostID := args[0]

			mainPath, hostsPath, groupsPath := paths()

			a, err := newApp(log, mainPath, hostsPath, groupsPath)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			if _, ok := a.hosts[hostID]; !ok {
				return lkerror.New(lkerror.NotFound, "unknown host "+hostID)
			}

			a.stateMgr.RemoveHost(hostID)
			a.dispatcher.Invalidate(context.Background(), hostID)

			ui.Success(fmt.Sprintf("forgot host %s", hostID))

			return nil
		},
	}
}

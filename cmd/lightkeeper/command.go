package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lightkeeper-hq/lightkeeper/pkg/datapoint"
	"github.com/lightkeeper-hq/lightkeeper/pkg/lkerror"
	"github.com/lightkeeper-hq/lightkeeper/pkg/module"
	"github.com/lightkeeper-hq/lightkeeper/pkg/ui"
)

func newCommandCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	commandCmd := &cobra.Command{
		Use:   "command",
		Short: "Execute commands against a host",
	}

	commandCmd.AddCommand(newCommandExecCommand(log, paths))

	return commandCmd
}

// commandExecTimeout bounds how long `command exec` waits for a command's
// final result before giving up on printing it; the invocation itself is
// not cancelled.
const commandExecTimeout = 30 * time.Second

func newCommandExecCommand(log *logrus.Logger, paths configPaths) *cobra.Command {
	var (
		hostID    string
		commandID string
		params    []string
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a command and print its resulting stream of results",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			spec, err := module.ParseSpec(commandID)
			if err != nil {
				return err
			}

			go a.dispatcher.Run(cmd.Context())
			go a.stateMgr.Run()

			observer := a.stateMgr.Observe()

			var invocationID int64

			if err := ui.WithSpinner(fmt.Sprintf("dispatching %s to %s", spec.ID, hostID), func() error {
				id, err := a.commandMgr.Execute(h, spec, params)
				if err != nil {
					return err
				}

				invocationID = id

				return nil
			}); err != nil {
				return err
			}

			deadline := time.After(commandExecTimeout)

			for {
				select {
				case snap, ok := <-observer:
					if !ok {
						return nil
					}

					if snap.CommandResult == nil || snap.CommandResult.InvocationID != invocationID {
						continue
					}

					line := fmt.Sprintf("[%s] %s (%s)", snap.CommandResult.Criticality, snap.CommandResult.Message, spec.ID)

					switch snap.CommandResult.Criticality {
					case datapoint.Error, datapoint.Critical:
						ui.Error(line)
					case datapoint.Warning:
						ui.Warning(line)
					case datapoint.Normal:
						ui.Success(line)
					default:
						fmt.Println(line)
					}

					if !snap.CommandResult.IsPartial {
						return nil
					}
				case <-deadline:
					return lkerror.New(lkerror.Timeout, "timed out waiting for command result")
				}
			}
		},
	}

	cmd.Flags().StringVar(&hostID, "host", "", "Host id")
	cmd.Flags().StringVar(&commandID, "command", "", "Command spec, e.g. docker-prune-0.1")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Command parameter (repeatable)")

	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("command")

	return cmd
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openark/golib/log"
	"github.com/spf13/cobra"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/logic"
	"github.com/github/gh-rpl/go/mysql"
)

// topologyOperation runs against a connected topology
type topologyOperation func(ctx context.Context, topology *logic.Topology) error

func newTopologyCommand(topologyContext *base.TopologyContext, flags *cliFlags) *cobra.Command {
	topologyCmd := &cobra.Command{
		Use:   "topology",
		Short: "Check and change a master and its slaves",
	}
	persistent := topologyCmd.PersistentFlags()
	persistent.StringVar(&flags.master, "master", "", "master connection: [user[:password]@]host[:port]")
	persistent.StringVar(&flags.slaves, "slaves", "", "comma delimited slave connections")
	persistent.StringVar(&flags.candidates, "candidates", "", "comma delimited candidate connections, in order of preference")
	persistent.BoolVar(&topologyContext.Discover, "discover", false, "also operate on the slaves the master lists in SHOW SLAVE HOSTS")
	persistent.BoolVar(&topologyContext.Demote, "demote", false, "on switchover, make the old master a read only slave of the new master")
	persistent.BoolVar(&topologyContext.Strict, "strict", false, "only consider the given candidates for promotion")
	persistent.Int64Var(&flags.maxDelay, "max-delay", 0, "slave delay, in seconds, above which health reports a problem")
	persistent.Int64Var(&flags.maxPosition, "max-position", 0, "binlog position drift above which health reports a problem")

	run := func(requireMaster bool, operation topologyOperation) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return runTopologyOperation(cmd.Context(), topologyContext, flags, requireMaster, operation)
		}
	}
	printResults := func(report func(topology *logic.Topology, ctx context.Context) ([]string, [][]string, error)) topologyOperation {
		return func(ctx context.Context, topology *logic.Topology) error {
			columns, rows, err := report(topology, ctx)
			if err != nil {
				return err
			}
			return base.PrintResults(os.Stdout, topologyContext.OutputFormat, columns, rows)
		}
	}

	topologyCmd.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Report the replication health of every server",
			RunE:  run(false, printResults((*logic.Topology).GetHealth)),
		},
		&cobra.Command{
			Use:   "gtid",
			Short: "Report executed, purged and owned GTIDs of every server",
			RunE:  run(false, printResults((*logic.Topology).GetGTIDReport)),
		},
		&cobra.Command{
			Use:   "uuids",
			Short: "Report the server UUID of every server",
			RunE:  run(false, printResults((*logic.Topology).GetUUIDReport)),
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the replication tree below the master",
			RunE: run(true, func(ctx context.Context, topology *logic.Topology) error {
				root, err := topology.Map(ctx)
				if err != nil {
					return err
				}
				for _, line := range logic.RenderMap(root) {
					fmt.Println(line)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "switchover",
			Short: "Move the master role to a live candidate",
			RunE: run(true, func(ctx context.Context, topology *logic.Topology) error {
				candidates, err := parseConnectionConfigs(topologyContext, "candidates", flags.candidates)
				if err != nil {
					return err
				}
				if len(candidates) != 1 {
					return fmt.Errorf("switchover takes exactly one --candidates server; got %d", len(candidates))
				}
				change, err := topology.Switchover(ctx, candidates[0])
				if err != nil {
					return err
				}
				printLeadershipChange(change)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "failover",
			Short: "Promote the best slave when the master is gone",
			RunE: run(false, func(ctx context.Context, topology *logic.Topology) error {
				candidates, err := parseConnectionConfigs(topologyContext, "candidates", flags.candidates)
				if err != nil {
					return err
				}
				change, err := topology.Failover(ctx, candidates, topologyContext.Strict)
				if err != nil {
					return err
				}
				printLeadershipChange(change)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "elect",
			Short: "Print the slave a switchover or failover would promote",
			RunE: run(false, func(ctx context.Context, topology *logic.Topology) error {
				candidates, err := parseConnectionConfigs(topologyContext, "candidates", flags.candidates)
				if err != nil {
					return err
				}
				elected, err := topology.Elect(ctx, candidates, topologyContext.Strict)
				if err != nil {
					return err
				}
				if elected == nil {
					return mysql.NewReplicationError(mysql.CheckConnected, "No eligible candidate found.")
				}
				fmt.Println(elected.Key.DisplayString())
				return nil
			}),
		},
	)
	for _, command := range []string{logic.SlaveStartCommand, logic.SlaveStopCommand, logic.SlaveResetCommand} {
		command := command
		topologyCmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: fmt.Sprintf("Run %s slave on every slave", command),
			RunE: run(false, func(ctx context.Context, topology *logic.Topology) error {
				return topology.RunCmdOnSlaves(ctx, command)
			}),
		})
	}
	return topologyCmd
}

func runTopologyOperation(ctx context.Context, topologyContext *base.TopologyContext, flags *cliFlags, requireMaster bool, operation topologyOperation) error {
	slaveConfigs, err := parseConnectionConfigs(topologyContext, "slaves", flags.slaves)
	if err != nil {
		return err
	}
	var masterConfig *mysql.ConnectionConfig
	switch {
	case flags.master != "":
		if masterConfig, err = parseConnectionConfig(topologyContext, "master", flags.master); err != nil {
			return err
		}
	case requireMaster && len(slaveConfigs) > 0:
		// Find the master by walking up from the first slave
		if masterConfig, err = mysql.GetTopologyMaster(ctx, slaveConfigs[0], mysql.NewSQLDriver(), false); err != nil {
			return err
		}
		if masterConfig.Key.Equals(&slaveConfigs[0].Key) {
			return fmt.Errorf("%s replicates from no one; --master must be provided", slaveConfigs[0].Key.DisplayString())
		}
		log.Infof("Master found: %s", masterConfig.Key.DisplayString())
	case requireMaster:
		return fmt.Errorf("--master must be provided")
	}
	topology, err := logic.NewTopology(topologyContext, masterConfig, slaveConfigs, mysql.NewSQLDriver())
	if err != nil {
		return err
	}
	defer topology.Close()

	// With no slaves given, they can only come from discovery on the master
	if requireMaster || len(slaveConfigs) == 0 {
		err = topology.Connect(ctx)
	} else {
		err = topology.ConnectWithoutMaster(ctx)
	}
	if err != nil {
		return err
	}
	if topologyContext.Discover && topology.Master() != nil {
		if _, err := topology.DiscoverSlaves(ctx); err != nil {
			return err
		}
	}
	return operation(ctx, topology)
}

func printLeadershipChange(change *logic.LeadershipChange) {
	for _, warning := range change.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", warning)
	}
	if change.OldMaster != nil {
		fmt.Printf("# Old master: %s", change.OldMaster.DisplayString())
		if change.Demoted {
			fmt.Print(" (demoted)")
		}
		fmt.Println()
	}
	fmt.Printf("# New master: %s\n", change.NewMaster.DisplayString())
	for _, failed := range change.FailedSlaves {
		fmt.Printf("# Not replicating from the new master: %s\n", failed.DisplayString())
	}
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openark/golib/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/logic"
	"github.com/github/gh-rpl/go/mysql"
)

// acceptSignals reloads the config file on SIGHUP and stops the scheduler on SIGINT or
// SIGTERM, until ctx is done
func acceptSignals(ctx context.Context, topologyContext *base.TopologyContext, flagSet *pflag.FlagSet, scheduler *logic.MultiSourceScheduler) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-c:
			switch sig {
			case syscall.SIGHUP:
				log.Infof("Received SIGHUP. Reloading configuration")
				if err := topologyContext.ReadConfigFile(); err != nil {
					log.Errore(err)
				} else {
					topologyContext.ApplyConfig(flagSet.Changed)
					topologyContext.ApplyCredentials()
					topologyContext.MarkPointOfInterest()
				}
			default:
				log.Infof("Received %s. Stopping", sig)
				scheduler.Stop()
			}
		}
	}
}

func newMultiSourceCommand(topologyContext *base.TopologyContext, flags *cliFlags) *cobra.Command {
	multiSourceCmd := &cobra.Command{
		Use:   "multisource",
		Short: "Replicate one slave from several masters in turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMultiSource(cmd.Context(), topologyContext, flags, cmd.Flags())
		},
	}
	local := multiSourceCmd.Flags()
	local.StringVar(&flags.slave, "slave", "", "slave connection: [user[:password]@]host[:port]")
	local.StringVar(&flags.masters, "masters", "", "comma delimited master connections, replicated from in this order")
	local.DurationVar(&flags.interval, "interval", base.DefaultInterval, "reporting interval")
	local.DurationVar(&flags.switchoverInterval, "switchover-interval", base.DefaultSwitchoverInterval, "how long to replicate from each master")
	local.StringVar(&flags.reportValues, "report-values", string(base.HealthReportValue), "comma delimited values to report on: health, gtid, uuid")
	local.StringVar(&topologyContext.ServeSocketFile, "serve-socket-file", "", "Unix socket file to serve on")
	local.BoolVar(&topologyContext.DropServeSocket, "initially-drop-socket-file", false, "Should gh-rpl forcibly delete an existing socket file. Be careful: this might drop the socket file of a running process!")
	local.Int64Var(&topologyContext.ServeTCPPort, "serve-tcp-port", 0, "TCP port to serve on. Default: disabled")
	return multiSourceCmd
}

func runMultiSource(ctx context.Context, topologyContext *base.TopologyContext, flags *cliFlags, flagSet *pflag.FlagSet) error {
	slaveConfig, err := parseConnectionConfig(topologyContext, "slave", flags.slave)
	if err != nil {
		return err
	}
	masterConfigs, err := parseConnectionConfigs(topologyContext, "masters", flags.masters)
	if err != nil {
		return err
	}
	scheduler, err := logic.NewMultiSourceScheduler(topologyContext, slaveConfig, masterConfigs, mysql.NewSQLDriver())
	if err != nil {
		return err
	}
	scheduler.Writer = os.Stdout

	server := logic.NewServer(topologyContext, logic.NewHooksExecutor(topologyContext), scheduler)
	if err := server.BindSocketFile(); err != nil {
		return err
	}
	if err := server.BindTCPPort(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		return scheduler.Run(ctx)
	})
	group.Go(func() error {
		return server.Serve(ctx)
	})
	group.Go(func() error {
		return acceptSignals(ctx, topologyContext, flagSet, scheduler)
	})
	return group.Wait()
}

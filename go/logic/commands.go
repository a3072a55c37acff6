/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"errors"
	"fmt"
)

const (
	SlaveStartCommand = "start"
	SlaveStopCommand  = "stop"
	SlaveResetCommand = "reset"
)

// RunCmdOnSlaves runs start, stop or reset on every tracked slave. Unreachable slaves are
// skipped with a warning. Reset stops the slave first. A failure on one slave does not stop
// the command on the others; the returned error joins every failure.
func (this *Topology) RunCmdOnSlaves(ctx context.Context, command string) error {
	switch command {
	case SlaveStartCommand, SlaveStopCommand, SlaveResetCommand:
	default:
		return fmt.Errorf("Unknown slave command: %s. Expected one of start, stop, reset", command)
	}
	var errs []error
	for _, slave := range this.slaves {
		if !this.isAlive(ctx, slave.Server) {
			this.topologyContext.Log.Warningf("Skipping unreachable slave %+v", slave.Key)
			continue
		}
		slaveView := this.slaveView(slave.Server)
		var err error
		switch command {
		case SlaveStartCommand:
			err = slaveView.Start(ctx)
		case SlaveStopCommand:
			err = slaveView.Stop(ctx)
		case SlaveResetCommand:
			if this.master != nil {
				if configured, _ := slaveView.IsConfiguredForMaster(ctx, this.master, false, false); !configured {
					this.topologyContext.Log.Warningf("%+v does not replicate from %+v; resetting anyway", slave.Key, this.master.Key())
				}
			}
			if err = slaveView.Stop(ctx); err == nil {
				err = slaveView.Reset(ctx)
			}
		}
		if err != nil {
			err = fmt.Errorf("%s on %+v: %w", command, slave.Key, err)
			this.topologyContext.Log.Errore(err)
			errs = append(errs, err)
			continue
		}
		this.topologyContext.Log.Infof("%s done on %+v", command, slave.Key)
	}
	return errors.Join(errs...)
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"fmt"

	"github.com/openark/golib/log"

	"github.com/github/gh-rpl/go/mysql"
)

// LeadershipChange is the outcome of a switchover or failover
type LeadershipChange struct {
	OldMaster *mysql.InstanceKey
	NewMaster mysql.InstanceKey
	Demoted   bool
	// FailedSlaves could not be pointed at, or did not reconnect to, the new master
	FailedSlaves []mysql.InstanceKey
	Warnings     []string
}

func (this *LeadershipChange) warn(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	log.Warning(message)
	this.Warnings = append(this.Warnings, message)
}

func (this *LeadershipChange) fail(key mysql.InstanceKey, format string, args ...interface{}) {
	this.warn(format, args...)
	for _, failed := range this.FailedSlaves {
		if failed.Equals(&key) {
			return
		}
	}
	this.FailedSlaves = append(this.FailedSlaves, key)
}

// rplCredentials are the credentials slaves use against a new master. Empty values make
// each slave keep the user and password it already replicates with.
func (this *Topology) rplCredentials() (user string, password string) {
	return this.topologyContext.RplUser, this.topologyContext.GetRplPassword()
}

// ensureRplUser creates the replication user on a server about to become master
func (this *Topology) ensureRplUser(ctx context.Context, server *mysql.Server) error {
	user, password := this.rplCredentials()
	if user == "" {
		return nil
	}
	_, err := createRplUser(ctx, server, "%", user, password, !this.sslOptions().IsEmpty())
	return err
}

// Switchover moves the master role from a live master to a slave. Writes are blocked on
// the master while every slave catches up; should that not happen in time, writes are
// unblocked and the topology is left as it was.
func (this *Topology) Switchover(ctx context.Context, candidateConfig *mysql.ConnectionConfig) (*LeadershipChange, error) {
	if !this.masterIsAlive(ctx) {
		return nil, ErrNoMaster
	}
	oldMasterKey := this.master.Key()
	if candidateConfig.Key.Equals(&oldMasterKey) {
		return nil, fmt.Errorf("Candidate %+v is already the master", candidateConfig.Key)
	}
	candidate, tracked, err := this.candidateDescriptor(ctx, candidateConfig)
	if err != nil {
		return nil, err
	}
	change := &LeadershipChange{OldMaster: &oldMasterKey, NewMaster: candidate.Key}
	this.topologyContext.Log.Infof("Switching over from %+v to %+v", oldMasterKey, candidate.Key)

	if err := this.CheckCandidateEligibility(ctx, candidate, true); err != nil {
		return nil, err
	}
	if rplUser, _ := this.rplCredentials(); rplUser == "" && this.topologyContext.Force {
		if hasRplUser, err := AsMaster(candidate.Server).HasRplUser(ctx, ""); err != nil {
			return nil, err
		} else if !hasRplUser {
			return nil, mysql.NewReplicationError(mysql.CheckRplUser, "Candidate %+v has no replication user and none was given to create.", candidate.Key)
		}
	}

	participants := this.reachableSlaves(ctx)
	if !tracked {
		participants = append(participants, candidate)
	}
	masterGTID, err := gtidModeOn(ctx, this.master)
	if err != nil {
		return nil, err
	}
	if masterGTID {
		for _, slave := range participants {
			slaveGTID, err := gtidModeOn(ctx, slave.Server)
			if err != nil {
				return nil, err
			}
			if !slaveGTID {
				return nil, mysql.NewReplicationError(mysql.CheckGTID, "%+v has GTID_MODE=OFF while the master has it ON.", slave.Key)
			}
		}
	}
	if err := this.ensureRplUser(ctx, candidate.Server); err != nil {
		return nil, err
	}
	if err := this.hooksExecutor.onBeforeSwitchover(ctx, &oldMasterKey, &candidate.Key); err != nil {
		return nil, err
	}

	master := AsMaster(this.master)
	wasReadOnly, err := master.BlockWrites(ctx)
	if err != nil {
		return nil, err
	}
	abort := func(err error) (*LeadershipChange, error) {
		if unblockErr := master.UnblockWrites(ctx, wasReadOnly); unblockErr != nil {
			log.Errore(unblockErr)
		}
		this.hooksExecutor.onFailure(ctx, "switchover", err)
		return nil, err
	}
	if err := this.catchUpWithMaster(ctx, change, candidate, participants, masterGTID); err != nil {
		return abort(err)
	}

	// Every slave has what the master has. From here on the change goes through and
	// failures are reported on the LeadershipChange.
	for _, slave := range participants {
		if err := this.slaveView(slave.Server).Stop(ctx); err != nil {
			change.fail(slave.Key, "Cannot stop %+v: %+v", slave.Key, err)
		}
	}
	var demotedCredentials *MasterInfoValues
	if this.topologyContext.Demote {
		if demotedCredentials, err = this.slaveView(candidate.Server).MasterInfo().Read(ctx); err != nil {
			change.warn("Cannot read the replication user of %+v: %+v", candidate.Key, err)
		}
	}
	readOnly := wasReadOnly || this.topologyContext.Demote
	if err := master.UnblockWrites(ctx, readOnly); err != nil {
		change.warn("Cannot unblock writes on %+v: %+v", oldMasterKey, err)
	}
	if err := this.promote(ctx, candidate); err != nil {
		for _, slave := range participants {
			this.slaveView(slave.Server).Start(ctx)
		}
		return abort(err)
	}

	oldMaster := this.master
	this.removeSlave(candidate.Key)
	if this.topologyContext.Demote {
		oldMaster.SetRole("slave")
		this.slaves = append(this.slaves, &SlaveDescriptor{Key: oldMasterKey, Config: this.masterConfig, Server: oldMaster})
		change.Demoted = true
	} else {
		oldMaster.Disconnect()
	}
	this.master = candidate.Server
	this.masterConfig = candidate.Config

	this.repointSlaves(ctx, change, demotedCredentials)
	if err := this.hooksExecutor.onAfterSwitchover(ctx, &oldMasterKey, &candidate.Key); err != nil {
		change.warn("After switchover hooks failed: %+v", err)
	}
	this.verifyReconnection(ctx, change)
	this.topologyContext.Log.Infof("Switchover complete. %+v is the new master", candidate.Key)
	return change, nil
}

// catchUpWithMaster waits for every participant to execute what the master has. A slave
// that does not catch up fails the switchover, unless forced and it is not the candidate.
func (this *Topology) catchUpWithMaster(ctx context.Context, change *LeadershipChange, candidate *SlaveDescriptor, participants []*SlaveDescriptor, masterGTID bool) error {
	master := AsMaster(this.master)
	status, err := master.GetStatus(ctx)
	if err != nil {
		return err
	}
	if status == nil {
		return mysql.NewReplicationError(mysql.CheckBinlog, "Master %+v must have binary logging turned on.", this.master.Key())
	}
	executed, err := master.GetGTIDExecuted(ctx)
	if err != nil {
		return err
	}
	timeout := this.topologyContext.GetTimeout()
	for _, slave := range participants {
		slaveView := this.slaveView(slave.Server)
		var err error
		if masterGTID {
			err = slaveView.WaitForSlaveGTID(ctx, executed, timeout)
		} else {
			err = slaveView.WaitForSlave(ctx, &status.Coordinates, timeout)
		}
		if err == nil {
			continue
		}
		if slave.Key.Equals(&candidate.Key) || !this.topologyContext.Force {
			return fmt.Errorf("%+v did not catch up with the master: %w", slave.Key, err)
		}
		change.fail(slave.Key, "%+v did not catch up with the master and is left behind: %+v", slave.Key, err)
	}
	return nil
}

// promote turns a stopped slave into a writable master with no replication configured
func (this *Topology) promote(ctx context.Context, candidate *SlaveDescriptor) error {
	candidateView := this.slaveView(candidate.Server)
	if err := candidateView.Stop(ctx); err != nil {
		return err
	}
	if err := candidateView.ResetAll(ctx); err != nil {
		return err
	}
	if err := setReadOnly(ctx, candidate.Server, false); err != nil {
		return err
	}
	candidate.Server.SetRole("master")
	return nil
}

// repointSlaves points every reachable tracked slave at the current master. Slaves with no
// replication user recorded, such as a demoted master, use the fallback credentials.
func (this *Topology) repointSlaves(ctx context.Context, change *LeadershipChange, fallback *MasterInfoValues) {
	for _, slave := range this.slaves {
		if !this.isAlive(ctx, slave.Server) {
			change.fail(slave.Key, "%+v is not reachable and still points at the old master", slave.Key)
			continue
		}
		slaveView := this.slaveView(slave.Server)
		user, password := this.rplCredentials()
		if user == "" && fallback != nil {
			if recorded, err := slaveView.MasterInfo().Read(ctx); err == nil && recorded.User == "" {
				user, password = fallback.User, fallback.Password
			}
		}
		if err := slaveView.SwitchMaster(ctx, this.master, user, password, this.sslOptions()); err != nil {
			change.fail(slave.Key, "Cannot point %+v at %+v: %+v", slave.Key, this.master.Key(), err)
			continue
		}
		masterKey := this.master.Key()
		this.hooksExecutor.onMasterChange(ctx, &slave.Key, &masterKey)
	}
}

// verifyReconnection waits for every re-pointed slave to connect to the new master
func (this *Topology) verifyReconnection(ctx context.Context, change *LeadershipChange) {
	for _, slave := range this.slaves {
		if slave.Server == nil || isFailed(change, slave.Key) {
			continue
		}
		link, err := this.link(this.master, slave.Server)
		if err != nil {
			change.fail(slave.Key, "%+v", err)
			continue
		}
		operation := fmt.Sprintf("waiting for %+v to connect to %+v", slave.Key, this.master.Key())
		err = pollUntil(ctx, this.topologyContext.PollInterval, operation, this.topologyContext.GetTimeout(), func() (bool, error) {
			return link.CheckSlaveConnection(ctx)
		})
		if err != nil {
			change.fail(slave.Key, "%+v did not reconnect to %+v: %+v", slave.Key, this.master.Key(), err)
		}
	}
}

func isFailed(change *LeadershipChange, key mysql.InstanceKey) bool {
	for _, failed := range change.FailedSlaves {
		if failed.Equals(&key) {
			return true
		}
	}
	return false
}

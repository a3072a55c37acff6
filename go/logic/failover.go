/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"

	"github.com/github/gh-rpl/go/mysql"
)

// Failover promotes a slave when the master is gone. Every reachable server must run
// with GTIDs: the candidate first fetches from its peers the transactions it lacks, then
// becomes master and the peers are pointed at it.
func (this *Topology) Failover(ctx context.Context, candidates []*mysql.ConnectionConfig, strict bool) (*LeadershipChange, error) {
	reachable := this.reachableSlaves(ctx)
	if len(reachable) == 0 {
		return nil, mysql.NewReplicationError(mysql.CheckConnected, "No reachable slaves to fail over to.")
	}
	for _, slave := range reachable {
		on, err := gtidModeOn(ctx, slave.Server)
		if err != nil {
			return nil, err
		}
		if !on {
			return nil, mysql.NewReplicationError(mysql.CheckGTID, "Topology must support global transaction ids and have GTID_MODE=ON. %+v does not.", slave.Key)
		}
	}
	if this.masterIsAlive(ctx) {
		this.topologyContext.Log.Warningf("Master %+v is reachable; failing over anyway", this.master.Key())
	}

	candidate, err := this.FindBestSlave(ctx, candidates, false, strict)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, mysql.NewReplicationError(mysql.CheckConnected, "No eligible candidate found for failover.")
	}
	// The candidate may be a server given by the caller and not among the tracked slaves
	if on, err := gtidModeOn(ctx, candidate.Server); err != nil {
		return nil, err
	} else if !on {
		return nil, mysql.NewReplicationError(mysql.CheckGTID, "Topology must support global transaction ids and have GTID_MODE=ON. Candidate %+v does not.", candidate.Key)
	}
	var oldMasterKey *mysql.InstanceKey
	if this.masterConfig != nil {
		key := this.masterConfig.Key
		oldMasterKey = &key
	}
	change := &LeadershipChange{OldMaster: oldMasterKey, NewMaster: candidate.Key}
	this.topologyContext.Log.Infof("Failing over to %+v", candidate.Key)

	if err := this.hooksExecutor.onBeforeFailover(ctx, oldMasterKey, &candidate.Key); err != nil {
		return nil, err
	}
	peers := []*SlaveDescriptor{}
	for _, slave := range reachable {
		if !slave.Key.Equals(&candidate.Key) {
			peers = append(peers, slave)
		}
	}
	if err := this.catchUpFromPeers(ctx, candidate, peers); err != nil {
		this.hooksExecutor.onFailure(ctx, "failover", err)
		return nil, err
	}
	if err := this.promote(ctx, candidate); err != nil {
		this.hooksExecutor.onFailure(ctx, "failover", err)
		return nil, err
	}
	if err := this.ensureRplUser(ctx, candidate.Server); err != nil {
		change.warn("Cannot create the replication user on %+v: %+v", candidate.Key, err)
	}

	this.removeSlave(candidate.Key)
	if this.master != nil {
		this.master.Disconnect()
	}
	this.master = candidate.Server
	this.masterConfig = candidate.Config

	this.repointSlaves(ctx, change, nil)
	if err := this.hooksExecutor.onAfterFailover(ctx, oldMasterKey, &candidate.Key); err != nil {
		change.warn("After failover hooks failed: %+v", err)
	}
	this.verifyReconnection(ctx, change)
	this.topologyContext.Log.Infof("Failover complete. %+v is the new master", candidate.Key)
	return change, nil
}

// catchUpFromPeers makes the candidate execute every transaction any peer has. It first
// applies its own relay log, then replicates from each peer that has transactions it lacks.
func (this *Topology) catchUpFromPeers(ctx context.Context, candidate *SlaveDescriptor, peers []*SlaveDescriptor) error {
	candidateView := this.slaveView(candidate.Server)
	timeout := this.topologyContext.GetTimeout()

	retrieved, err := candidateView.GetRetrievedGTIDSet(ctx)
	if err != nil {
		return err
	}
	if retrieved != "" {
		if err := candidateView.WaitForSlaveGTID(ctx, retrieved, timeout); err != nil {
			return err
		}
	}
	user, password := this.rplCredentials()
	for _, peer := range peers {
		candidateExecuted, err := AsMaster(candidate.Server).GetGTIDExecuted(ctx)
		if err != nil {
			return err
		}
		peerExecuted, err := AsMaster(peer.Server).GetGTIDExecuted(ctx)
		if err != nil {
			return err
		}
		missing, err := gtidSubtract(ctx, candidate.Server, peerExecuted, candidateExecuted)
		if err != nil {
			return err
		}
		if missing == "" {
			this.topologyContext.Log.Debugf("%+v has everything %+v has", candidate.Key, peer.Key)
			continue
		}
		this.topologyContext.Log.Infof("%+v is missing %s; fetching from %+v", candidate.Key, missing, peer.Key)
		if err := candidateView.SwitchMaster(ctx, peer.Server, user, password, this.sslOptions()); err != nil {
			return err
		}
		if err := candidateView.WaitForSlaveGTID(ctx, peerExecuted, timeout); err != nil {
			return err
		}
	}
	return nil
}

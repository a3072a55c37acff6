/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"strings"

	"github.com/github/gh-rpl/go/mysql"
)

// CheckCandidateEligibility decides whether a slave may become the master. With checkMaster
// the candidate is also verified against the current master, which must then be reachable.
// A failed check returns a *mysql.ReplicationError naming it.
func (this *Topology) CheckCandidateEligibility(ctx context.Context, candidate *SlaveDescriptor, checkMaster bool) error {
	if !this.isAlive(ctx, candidate.Server) {
		return mysql.NewReplicationError(mysql.CheckConnected, "Candidate %+v is not reachable.", candidate.Key)
	}
	candidateView := this.slaveView(candidate.Server)
	if checkMaster {
		if !this.masterIsAlive(ctx) {
			return mysql.NewReplicationError(mysql.CheckConnected, "Cannot check candidate %+v against an unreachable master.", candidate.Key)
		}
		if _, err := candidateView.IsConfiguredForMaster(ctx, this.master, false, true); err != nil {
			return err
		}
	}

	candidateGTID, err := gtidModeOn(ctx, candidate.Server)
	if err != nil {
		return err
	}
	if checkMaster {
		masterGTID, err := gtidModeOn(ctx, this.master)
		if err != nil {
			return err
		}
		if masterGTID != candidateGTID {
			return mysql.NewReplicationError(mysql.CheckGTID, "Candidate %+v has GTID_MODE=%s, the master has GTID_MODE=%s.", candidate.Key, onOff(candidateGTID), onOff(masterGTID))
		}
		if !candidateGTID {
			link, err := this.link(this.master, candidate.Server)
			if err != nil {
				return err
			}
			diagnostics, err := link.CheckSlaveDelay(ctx)
			if err != nil {
				return err
			}
			if failed := diagnostics.Errors(); len(failed) > 0 {
				return mysql.NewReplicationError(mysql.CheckBehind, "Candidate %+v is behind the master: %s", candidate.Key, strings.Join(failed.Messages(), ", "))
			}
		}
		if !this.topologyContext.Force {
			filtersMatch, err := binlogFiltersMatch(ctx, this.master, candidate.Server)
			if err != nil {
				return err
			}
			if !filtersMatch {
				return mysql.NewReplicationError(mysql.CheckFilters, "Candidate %+v has binary log filters that differ from the master's.", candidate.Key)
			}
			if filtersMatch, err = replicateFiltersMatch(ctx, this.master, candidate.Server); err != nil {
				return err
			}
			if !filtersMatch {
				return mysql.NewReplicationError(mysql.CheckFilters, "Candidate %+v has replication filters that differ from the master's.", candidate.Key)
			}
		}
	}
	if !candidateGTID {
		logBin, _, err := candidate.Server.GetVariable(ctx, "log_bin")
		if err != nil {
			return err
		}
		if !strings.EqualFold(logBin, "ON") && logBin != "1" {
			return mysql.NewReplicationError(mysql.CheckBinlog, "Candidate %+v must have binary logging turned on.", candidate.Key)
		}
	}
	if !this.topologyContext.Force {
		hasRplUser, err := AsMaster(candidate.Server).HasRplUser(ctx, "")
		if err != nil {
			return err
		}
		if !hasRplUser {
			return mysql.NewReplicationError(mysql.CheckRplUser, "Candidate %+v has no replication user.", candidate.Key)
		}
	}
	return nil
}

// replicateFiltersMatch compares Replicate_Do_DB / Replicate_Ignore_DB of two servers. A
// master that is not itself a slave has no replication filters.
func replicateFiltersMatch(ctx context.Context, master *mysql.Server, other *mysql.Server) (bool, error) {
	masterDoDB, masterIgnoreDB, err := AsSlave(master).GetReplicationFilters(ctx)
	if err != nil {
		return false, err
	}
	otherDoDB, otherIgnoreDB, err := AsSlave(other).GetReplicationFilters(ctx)
	if err != nil {
		return false, err
	}
	return masterDoDB == otherDoDB && masterIgnoreDB == otherIgnoreDB, nil
}

// candidateDescriptor returns the tracked slave for config, or connects a new, untracked one
func (this *Topology) candidateDescriptor(ctx context.Context, config *mysql.ConnectionConfig) (descriptor *SlaveDescriptor, tracked bool, err error) {
	if descriptor := this.findSlave(config.Key); descriptor != nil {
		return descriptor, true, nil
	}
	server := this.newServer(config)
	if err := server.Connect(ctx); err != nil {
		return nil, false, err
	}
	server.SetRole("slave")
	return &SlaveDescriptor{Key: config.Key, Config: config, Server: server}, false, nil
}

// FindBestSlave returns the first eligible server, trying the candidates in order and then,
// unless strict, the tracked slaves in order. It returns nil when no server is eligible.
func (this *Topology) FindBestSlave(ctx context.Context, candidates []*mysql.ConnectionConfig, checkMaster bool, strict bool) (*SlaveDescriptor, error) {
	for _, config := range candidates {
		if this.masterConfig != nil && config.Key.Equals(&this.masterConfig.Key) {
			this.topologyContext.Log.Warningf("Candidate %+v is the master; skipping", config.Key)
			continue
		}
		descriptor, tracked, err := this.candidateDescriptor(ctx, config)
		if err != nil {
			this.topologyContext.Log.Warningf("Candidate %+v is not reachable: %+v", config.Key, err)
			continue
		}
		if err := this.CheckCandidateEligibility(ctx, descriptor, checkMaster); err != nil {
			this.topologyContext.Log.Infof("Candidate %+v is not eligible (%s): %+v", config.Key, mysql.ReplicationCheckOf(err), err)
			if !tracked {
				descriptor.Server.Disconnect()
			}
			continue
		}
		return descriptor, nil
	}
	if strict {
		return nil, nil
	}
	for _, descriptor := range this.slaves {
		if err := this.CheckCandidateEligibility(ctx, descriptor, checkMaster); err != nil {
			this.topologyContext.Log.Debugf("Slave %+v is not eligible (%s): %+v", descriptor.Key, mysql.ReplicationCheckOf(err), err)
			continue
		}
		return descriptor, nil
	}
	return nil, nil
}

// Elect returns the slave a switchover or failover would promote, without promoting it
func (this *Topology) Elect(ctx context.Context, candidates []*mysql.ConnectionConfig, strict bool) (*SlaveDescriptor, error) {
	return this.FindBestSlave(ctx, candidates, this.masterIsAlive(ctx), strict)
}

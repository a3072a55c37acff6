/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
)

const (
	stateUp   = "UP"
	stateDown = "DOWN"

	healthOK            = "OK"
	healthCannotConnect = "Cannot connect"
)

var (
	healthColumns        = []string{"host", "port", "role", "state", "gtid_mode", "health"}
	verboseHealthColumns = []string{"version", "master_log_file", "master_log_pos", "IO_Thread", "SQL_Thread", "Secs_Behind", "IO_Error_Num", "IO_Error", "SQL_Error_Num", "SQL_Error", "Trans_Behind"}
	gtidColumns          = []string{"host", "port", "role", "gtid_executed", "transactions", "gtid_purged", "gtid_owned"}
	uuidColumns          = []string{"host", "port", "role", "uuid"}
)

// topologyMember is a server to report on, in report order
type topologyMember struct {
	key    mysql.InstanceKey
	role   string
	server *mysql.Server
	alive  bool
}

// members lists the master, if there is one, then the slaves sorted by host and port
func (this *Topology) members(ctx context.Context) []*topologyMember {
	members := []*topologyMember{}
	if this.masterConfig != nil {
		members = append(members, &topologyMember{
			key:    this.masterConfig.Key,
			role:   "MASTER",
			server: this.master,
			alive:  this.masterIsAlive(ctx),
		})
	}
	slaves := this.Slaves()
	sort.SliceStable(slaves, func(i, j int) bool {
		return slaves[i].Key.SmallerThan(&slaves[j].Key)
	})
	for _, slave := range slaves {
		members = append(members, &topologyMember{
			key:    slave.Key,
			role:   "SLAVE",
			server: slave.Server,
			alive:  this.isAlive(ctx, slave.Server),
		})
	}
	return members
}

// GetHealth reports one row per server. Unreachable servers are reported, not returned as errors.
func (this *Topology) GetHealth(ctx context.Context) (columns []string, rows [][]string, err error) {
	columns = append(columns, healthColumns...)
	if this.topologyContext.Verbose {
		columns = append(columns, verboseHealthColumns...)
	}
	masterAlive := this.masterIsAlive(ctx)
	var masterExecuted string
	if masterAlive {
		if masterExecuted, err = AsMaster(this.master).GetGTIDExecuted(ctx); err != nil {
			return columns, rows, err
		}
	}
	for _, member := range this.members(ctx) {
		row := []string{member.key.Hostname, strconv.Itoa(member.key.Port), member.role}
		if !member.alive {
			row = append(row, stateDown, "", healthCannotConnect)
			if this.topologyContext.Verbose {
				row = append(row, make([]string, len(verboseHealthColumns))...)
			}
			rows = append(rows, row)
			continue
		}
		gtidMode, _, err := member.server.GetVariable(ctx, "gtid_mode")
		if err != nil {
			return columns, rows, err
		}
		var health string
		if member.role == "MASTER" {
			health = this.masterHealth(ctx)
		} else {
			health = this.slaveHealth(ctx, member.server, masterAlive)
		}
		row = append(row, stateUp, gtidMode, health)
		if this.topologyContext.Verbose {
			verboseRow, err := this.verboseHealth(ctx, member, masterExecuted)
			if err != nil {
				return columns, rows, err
			}
			row = append(row, verboseRow...)
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

func diagnosticsHealth(diagnostics mysql.Diagnostics, err error) string {
	if err != nil {
		return err.Error()
	}
	if failed := diagnostics.Errors(); len(failed) > 0 {
		return strings.Join(failed.Messages(), ", ")
	}
	return healthOK
}

func (this *Topology) masterHealth(ctx context.Context) string {
	return diagnosticsHealth(AsMaster(this.master).CheckRplHealth(ctx))
}

// slaveHealth checks a slave against the master. With the master gone only the
// slave's own threads can be checked.
func (this *Topology) slaveHealth(ctx context.Context, server *mysql.Server, masterAlive bool) string {
	if masterAlive {
		link, err := this.link(this.master, server)
		if err != nil {
			return err.Error()
		}
		return diagnosticsHealth(link.CheckRplHealth(ctx, this.topologyContext.GetMaxDelay(), this.topologyContext.GetMaxPosition()))
	}
	status, err := this.slaveView(server).GetStatus(ctx)
	if err != nil {
		return err.Error()
	}
	var diagnostics mysql.Diagnostics
	switch {
	case status == nil:
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "Slave is not configured."))
	case !status.IOThreadRunning():
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "IO thread is not running."))
	}
	if status != nil && !status.SQLThreadRunning() {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "SQL thread is not running."))
	}
	return diagnosticsHealth(diagnostics, nil)
}

func (this *Topology) verboseHealth(ctx context.Context, member *topologyMember, masterExecuted string) ([]string, error) {
	row := make([]string, len(verboseHealthColumns))
	row[0] = member.server.Version()
	if member.role == "MASTER" {
		status, err := AsMaster(member.server).GetStatus(ctx)
		if err != nil {
			return nil, err
		}
		if status != nil {
			row[1] = status.Coordinates.LogFile
			row[2] = strconv.FormatInt(status.Coordinates.LogPos, 10)
		}
		return row, nil
	}
	slave := this.slaveView(member.server)
	delay, err := slave.GetDelay(ctx)
	if err != nil || delay == nil {
		return row, err
	}
	threads, err := slave.GetThreadStatus(ctx)
	if err != nil || threads == nil {
		return row, err
	}
	row[1] = delay.ReadCoordinates.LogFile
	row[2] = strconv.FormatInt(delay.ReadCoordinates.LogPos, 10)
	row[3] = threads.IORunning
	row[4] = threads.SQLRunning
	if delay.SecondsBehind.Valid {
		row[5] = strconv.FormatInt(delay.SecondsBehind.Int64, 10)
	}
	row[6] = strconv.Itoa(threads.IOErrno)
	row[7] = threads.IOError
	row[8] = strconv.Itoa(threads.SQLErrno)
	row[9] = threads.SQLError
	if masterExecuted != "" {
		executed, _, err := member.server.GetVariable(ctx, "gtid_executed")
		if err != nil {
			return nil, err
		}
		behind, err := mysql.GTIDSetSubtract(masterExecuted, executed)
		if err != nil {
			return nil, err
		}
		count, err := mysql.GTIDTransactionCount(behind)
		if err != nil {
			return nil, err
		}
		row[10] = base.FormatNumber(count)
	}
	return row, nil
}

// requireGTID fails unless every reachable server runs with gtid_mode=ON
func (this *Topology) requireGTID(ctx context.Context, members []*topologyMember) error {
	for _, member := range members {
		if !member.alive {
			continue
		}
		on, err := gtidModeOn(ctx, member.server)
		if err != nil {
			return err
		}
		if !on {
			return mysql.NewReplicationError(mysql.CheckGTID, "Topology must support global transaction ids and have GTID_MODE=ON. %+v does not.", member.key)
		}
	}
	return nil
}

// GetGTIDReport lists the executed, purged and owned GTID sets of every reachable server
func (this *Topology) GetGTIDReport(ctx context.Context) (columns []string, rows [][]string, err error) {
	members := this.members(ctx)
	if err := this.requireGTID(ctx, members); err != nil {
		return gtidColumns, nil, err
	}
	for _, member := range members {
		if !member.alive {
			continue
		}
		values := map[string]string{}
		for _, name := range []string{"gtid_executed", "gtid_purged", "gtid_owned"} {
			value, _, err := member.server.GetVariable(ctx, name)
			if err != nil {
				return gtidColumns, rows, err
			}
			values[name] = value
		}
		count, err := mysql.GTIDTransactionCount(values["gtid_executed"])
		if err != nil {
			return gtidColumns, rows, err
		}
		rows = append(rows, []string{
			member.key.Hostname, strconv.Itoa(member.key.Port), member.role,
			values["gtid_executed"], base.FormatNumber(count), values["gtid_purged"], values["gtid_owned"],
		})
	}
	return gtidColumns, rows, nil
}

// GetUUIDReport lists the server_uuid of every reachable server
func (this *Topology) GetUUIDReport(ctx context.Context) (columns []string, rows [][]string, err error) {
	for _, member := range this.members(ctx) {
		if !member.alive {
			continue
		}
		serverUUID, found, err := member.server.GetVariable(ctx, "server_uuid")
		if err != nil {
			return uuidColumns, rows, err
		}
		if !found {
			serverUUID = "unsupported"
		}
		rows = append(rows, []string{member.key.Hostname, strconv.Itoa(member.key.Port), member.role, serverUUID})
	}
	return uuidColumns, rows, nil
}

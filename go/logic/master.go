/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"fmt"

	"github.com/openark/golib/log"
	"github.com/openark/golib/sqlutils"

	"github.com/github/gh-rpl/go/mysql"
)

// MasterStatus is the server's SHOW MASTER STATUS
type MasterStatus struct {
	Coordinates     mysql.BinlogCoordinates
	BinlogDoDB      string
	BinlogIgnoreDB  string
	ExecutedGTIDSet string
}

// RplUser is an account holding the REPLICATION SLAVE privilege
type RplUser struct {
	User string
	Host string
}

// Master is the master-side view of a server handle. It borrows the handle's
// connection and never connects on its own.
type Master struct {
	server *mysql.Server
}

func AsMaster(server *mysql.Server) *Master {
	return &Master{server: server}
}

func (this *Master) Server() *mysql.Server {
	return this.server
}

// GetStatus returns the master status, or nil when binary logging is off
func (this *Master) GetStatus(ctx context.Context) (status *MasterStatus, err error) {
	query := fmt.Sprintf(`show /* gh-rpl */ %s`, this.server.Term("master status"))
	err = this.server.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		status = &MasterStatus{
			Coordinates: mysql.BinlogCoordinates{
				LogFile: m.GetString("File"),
				LogPos:  m.GetInt64("Position"),
			},
			BinlogDoDB:      m.GetString("Binlog_Do_DB"),
			BinlogIgnoreDB:  m.GetString("Binlog_Ignore_DB"),
			ExecutedGTIDSet: m.GetString("Executed_Gtid_Set"),
		}
		return nil
	})
	return status, err
}

// GetBinlogExceptions returns the binlog do/ignore database filters
func (this *Master) GetBinlogExceptions(ctx context.Context) (doDB string, ignoreDB string, err error) {
	status, err := this.GetStatus(ctx)
	if err != nil || status == nil {
		return "", "", err
	}
	return status.BinlogDoDB, status.BinlogIgnoreDB, nil
}

// GetRplUsers lists accounts with the REPLICATION SLAVE privilege
func (this *Master) GetRplUsers(ctx context.Context) (users []RplUser, err error) {
	query := `select /* gh-rpl */ user, host from mysql.user where repl_slave_priv = 'Y'`
	err = this.server.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		users = append(users, RplUser{User: m.GetString("user"), Host: m.GetString("host")})
		return nil
	})
	return users, err
}

// HasRplUser returns true when the named account, on any host, may replicate. An empty
// name matches any replication account.
func (this *Master) HasRplUser(ctx context.Context, user string) (bool, error) {
	users, err := this.GetRplUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, rplUser := range users {
		if user == "" || rplUser.User == user {
			return true, nil
		}
	}
	return false, nil
}

// Reset discards the binary logs and the executed GTID set
func (this *Master) Reset(ctx context.Context) error {
	return this.server.Exec(ctx, fmt.Sprintf(`%s /* gh-rpl */`, this.server.Term("reset master")))
}

func (this *Master) GetBinaryLogs(ctx context.Context) ([]string, error) {
	return mysql.GetBinaryLogs(ctx, this.server)
}

// GetGTIDExecuted returns the canonical gtid_executed set; empty when GTIDs are off
func (this *Master) GetGTIDExecuted(ctx context.Context) (string, error) {
	executed, _, err := this.server.GetVariable(ctx, "gtid_executed")
	if err != nil {
		return "", err
	}
	return mysql.NormalizeGTIDSet(executed)
}

// BlockWrites takes the global read lock on this session and turns read_only on.
// It returns the read_only value found beforehand, to be handed to UnblockWrites.
func (this *Master) BlockWrites(ctx context.Context) (wasReadOnly bool, err error) {
	readOnly, _, err := this.server.GetVariable(ctx, "read_only")
	if err != nil {
		return false, err
	}
	wasReadOnly = readOnly == "ON" || readOnly == "1"

	log.Infof("Blocking writes on %+v", this.server.Key())
	if err := this.server.Exec(ctx, `flush /* gh-rpl */ tables with read lock`); err != nil {
		return wasReadOnly, err
	}
	if err := setReadOnly(ctx, this.server, true); err != nil {
		this.server.Exec(ctx, `unlock /* gh-rpl */ tables`)
		return wasReadOnly, err
	}
	return wasReadOnly, nil
}

// UnblockWrites releases the global read lock and sets read_only to the given value
func (this *Master) UnblockWrites(ctx context.Context, readOnly bool) error {
	log.Infof("Unblocking writes on %+v", this.server.Key())
	if err := this.server.Exec(ctx, `unlock /* gh-rpl */ tables`); err != nil {
		return err
	}
	return setReadOnly(ctx, this.server, readOnly)
}

// CheckRplHealth verifies the master can serve slaves: binary logging is on and at
// least one replication account exists
func (this *Master) CheckRplHealth(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	status, err := this.GetStatus(ctx)
	if err != nil {
		return diagnostics, err
	}
	if status == nil {
		diagnostics.Append(mysql.NewError(mysql.CheckBinlog, "Binary logging is not enabled."))
	}
	hasRplUser, err := this.HasRplUser(ctx, "")
	if err != nil {
		return diagnostics, err
	}
	if !hasRplUser {
		diagnostics.Append(mysql.NewError(mysql.CheckRplUser, "There are no users with replication privileges."))
	}
	return diagnostics, nil
}

func setReadOnly(ctx context.Context, server *mysql.Server, readOnly bool) error {
	value := 0
	if readOnly {
		value = 1
	}
	return server.Exec(ctx, `set /* gh-rpl */ global read_only = ?`, value)
}

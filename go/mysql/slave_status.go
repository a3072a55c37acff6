/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"context"
	gosql "database/sql"
	"fmt"
	"strings"

	"github.com/openark/golib/sqlutils"
)

// SlaveStatus is one row of SHOW SLAVE STATUS, with 8.4+ column names mapped back
type SlaveStatus struct {
	MasterHost          string
	MasterPort          int
	MasterUser          string
	MasterUUID          string
	MasterServerID      int64
	MasterLogFile       string
	ReadMasterLogPos    int64
	RelayMasterLogFile  string
	ExecMasterLogPos    int64
	SlaveIORunning      string
	SlaveSQLRunning     string
	SlaveIOState        string
	SecondsBehindMaster gosql.NullInt64
	LastIOErrno         int
	LastIOError         string
	LastSQLErrno        int
	LastSQLError        string
	ReplicateDoDB       string
	ReplicateIgnoreDB   string
	RetrievedGTIDSet    string
	ExecutedGTIDSet     string
	AutoPosition        bool
	SSLAllowed          string
	SSLCA               string
	SSLCert             string
	SSLKey              string
	SSLCipher           string
}

// ReadSlaveStatus returns the server's slave status, or nil if the server is not configured as a slave
func ReadSlaveStatus(ctx context.Context, server *Server) (*SlaveStatus, error) {
	var status *SlaveStatus
	query := fmt.Sprintf(`show /* gh-rpl */ %s`, server.Term("slave status"))
	err := server.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		if status != nil {
			// multi-source channels: only the default channel is managed
			return nil
		}
		status = &SlaveStatus{
			MasterHost:          m.GetString(server.Term("Master_Host")),
			MasterPort:          m.GetInt(server.Term("Master_Port")),
			MasterUser:          m.GetString(server.Term("Master_User")),
			MasterUUID:          m.GetString(server.Term("Master_UUID")),
			MasterServerID:      m.GetInt64(server.Term("Master_Server_Id")),
			MasterLogFile:       m.GetString(server.Term("Master_Log_File")),
			ReadMasterLogPos:    m.GetInt64(server.Term("Read_Master_Log_Pos")),
			RelayMasterLogFile:  m.GetString(server.Term("Relay_Master_Log_File")),
			ExecMasterLogPos:    m.GetInt64(server.Term("Exec_Master_Log_Pos")),
			SlaveIORunning:      m.GetString(server.Term("Slave_IO_Running")),
			SlaveSQLRunning:     m.GetString(server.Term("Slave_SQL_Running")),
			SlaveIOState:        m.GetString(server.Term("Slave_IO_State")),
			SecondsBehindMaster: m.GetNullInt64(server.Term("Seconds_Behind_Master")),
			LastIOErrno:         m.GetInt("Last_IO_Errno"),
			LastIOError:         m.GetString("Last_IO_Error"),
			LastSQLErrno:        m.GetInt("Last_SQL_Errno"),
			LastSQLError:        m.GetString("Last_SQL_Error"),
			ReplicateDoDB:       m.GetString("Replicate_Do_DB"),
			ReplicateIgnoreDB:   m.GetString("Replicate_Ignore_DB"),
			RetrievedGTIDSet:    m.GetString("Retrieved_Gtid_Set"),
			ExecutedGTIDSet:     m.GetString("Executed_Gtid_Set"),
			AutoPosition:        m.GetString("Auto_Position") == "1",
			SSLAllowed:          m.GetString(server.Term("Master_SSL_Allowed")),
			SSLCA:               m.GetString(server.Term("Master_SSL_CA_File")),
			SSLCert:             m.GetString(server.Term("Master_SSL_Cert")),
			SSLKey:              m.GetString(server.Term("Master_SSL_Key")),
			SSLCipher:           m.GetString(server.Term("Master_SSL_Cipher")),
		}
		return nil
	})
	return status, err
}

// IsConfigured is true when the slave has a master host configured.
// A `RESET SLAVE` (without ALL) leaves the host in place.
func (this *SlaveStatus) IsConfigured() bool {
	return this.MasterHost != ""
}

func (this *SlaveStatus) IOThreadRunning() bool {
	return this.SlaveIORunning == "Yes"
}

func (this *SlaveStatus) SQLThreadRunning() bool {
	return this.SlaveSQLRunning == "Yes"
}

// IsStopped is true when neither replication thread runs
func (this *SlaveStatus) IsStopped() bool {
	return !this.IOThreadRunning() && !this.SQLThreadRunning() && this.SlaveIORunning != "Connecting"
}

// IsWaitingForEvents is true when the I/O thread is connected and idle, waiting for the master
func (this *SlaveStatus) IsWaitingForEvents() bool {
	return strings.Contains(this.SlaveIOState, "to send event")
}

func (this *SlaveStatus) MasterKey() InstanceKey {
	return InstanceKey{Hostname: this.MasterHost, Port: this.MasterPort}
}

// ReadCoordinates are the master coordinates the I/O thread has read up to
func (this *SlaveStatus) ReadCoordinates() *BinlogCoordinates {
	return &BinlogCoordinates{LogFile: this.MasterLogFile, LogPos: this.ReadMasterLogPos}
}

// ExecCoordinates are the master coordinates the SQL thread has executed up to
func (this *SlaveStatus) ExecCoordinates() *BinlogCoordinates {
	return &BinlogCoordinates{LogFile: this.RelayMasterLogFile, LogPos: this.ExecMasterLogPos}
}

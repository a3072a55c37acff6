/*
   Copyright 2023 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"context"
	"strconv"
	"strings"

	"github.com/openark/golib/sqlutils"
)

// ServerInfo represents the online config of a MySQL server.
type ServerInfo struct {
	ServerID             uint64
	ServerUUID           string
	Version              string
	VersionComment       string
	Hostname             string
	Port                 int
	LogBin               bool
	LogSlaveUpdates      bool
	GTIDMode             string
	ReadOnly             bool
	SuperReadOnly        bool
	LowerCaseTableNames  int
	MasterInfoRepository string
	ReportHost           string
	ReportPort           int
	InnoDBVersion        string
	HaveSSL              string

	// variables is the raw name → value set this info was read from
	variables map[string]string
}

// GetServerInfo returns a ServerInfo struct representing
// the online config of a MySQL server.
func GetServerInfo(ctx context.Context, server *Server) (*ServerInfo, error) {
	variables := map[string]string{}
	err := server.QueryRowsMap(ctx, `show /* gh-rpl */ global variables`, func(m sqlutils.RowMap) error {
		variables[strings.ToLower(m.GetString("Variable_name"))] = m.GetString("Value")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewServerInfo(variables), nil
}

// NewServerInfo builds a ServerInfo from lowercase variable names and their values
func NewServerInfo(variables map[string]string) *ServerInfo {
	info := &ServerInfo{variables: variables}
	info.ServerID, _ = strconv.ParseUint(variables["server_id"], 10, 64)
	info.ServerUUID = variables["server_uuid"]
	info.Version = variables["version"]
	info.VersionComment = variables["version_comment"]
	info.Hostname = variables["hostname"]
	info.Port, _ = strconv.Atoi(variables["port"])
	info.LogBin = isOn(variables["log_bin"])
	info.LogSlaveUpdates = isOn(variables["log_slave_updates"]) || isOn(variables["log_replica_updates"])
	info.GTIDMode = strings.ToUpper(variables["gtid_mode"])
	info.ReadOnly = isOn(variables["read_only"])
	info.SuperReadOnly = isOn(variables["super_read_only"])
	info.LowerCaseTableNames, _ = strconv.Atoi(variables["lower_case_table_names"])
	info.MasterInfoRepository = strings.ToUpper(variables["master_info_repository"])
	info.ReportHost = variables["report_host"]
	info.ReportPort, _ = strconv.Atoi(variables["report_port"])
	info.InnoDBVersion = variables["innodb_version"]
	info.HaveSSL = strings.ToUpper(variables["have_ssl"])
	return info
}

// Variable returns a raw variable value, and whether the server has it
func (this *ServerInfo) Variable(name string) (string, bool) {
	value, ok := this.variables[strings.ToLower(name)]
	return value, ok
}

// SupportsGTID is true when the server knows about gtid_mode at all
func (this *ServerInfo) SupportsGTID() bool {
	return this.GTIDMode != ""
}

// GTIDEnabled is true when gtid_mode is ON
func (this *ServerInfo) GTIDEnabled() bool {
	return this.GTIDMode == "ON"
}

// SupportsUUID is true for servers reporting a server_uuid (5.6 and above)
func (this *ServerInfo) SupportsUUID() bool {
	_, ok := this.variables["server_uuid"]
	return ok
}

// MasterInfoInTable is true when replication metadata lives in mysql.slave_master_info.
// Servers that dropped the variable (8.0.23+) only support tables.
func (this *ServerInfo) MasterInfoInTable() bool {
	if _, ok := this.variables["master_info_repository"]; !ok {
		return true
	}
	return this.MasterInfoRepository == "TABLE"
}

func isOn(value string) bool {
	switch strings.ToUpper(value) {
	case "ON", "1", "YES", "TRUE":
		return true
	}
	return false
}

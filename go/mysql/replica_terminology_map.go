/*
   Copyright 2024 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"regexp"

	version "github.com/hashicorp/go-version"
)

const (
	MysqlVersionCutoff = "8.4"
)

var (
	mysqlVersionCutoff  = version.Must(version.NewVersion(MysqlVersionCutoff))
	versionNumberRegexp = regexp.MustCompile(`^[0-9]+([.][0-9]+)*`)
)

// MysqlReplicaTermMap maps pre-8.4 replication vocabulary onto its 8.4+ spelling.
// It is never mutated.
var MysqlReplicaTermMap = map[string]string{
	"Seconds_Behind_Master": "Seconds_Behind_Source",
	"Master_Log_File":       "Source_Log_File",
	"Master_Host":           "Source_Host",
	"Master_Port":           "Source_Port",
	"Master_User":           "Source_User",
	"Master_UUID":           "Source_UUID",
	"Master_Server_Id":      "Source_Server_Id",
	"Master_SSL_Allowed":    "Source_SSL_Allowed",
	"Master_SSL_CA_File":    "Source_SSL_CA_File",
	"Master_SSL_Cert":       "Source_SSL_Cert",
	"Master_SSL_Key":        "Source_SSL_Key",
	"Master_SSL_Cipher":     "Source_SSL_Cipher",
	"Master_id":             "Source_id",
	"Exec_Master_Log_Pos":   "Exec_Source_Log_Pos",
	"Read_Master_Log_Pos":   "Read_Source_Log_Pos",
	"Relay_Master_Log_File": "Relay_Source_Log_File",
	"Slave_IO_Running":      "Replica_IO_Running",
	"Slave_SQL_Running":     "Replica_SQL_Running",
	"Slave_IO_State":        "Replica_IO_State",
	"master status":         "binary log status",
	"slave hosts":           "replicas",
	"slave status":          "replica status",
	"slave":                 "replica",
	"reset master":          "reset binary logs and gtids",
	"change master to":      "change replication source to",
	"master_pos_wait":       "source_pos_wait",
	"MASTER_HOST":           "SOURCE_HOST",
	"MASTER_PORT":           "SOURCE_PORT",
	"MASTER_USER":           "SOURCE_USER",
	"MASTER_PASSWORD":       "SOURCE_PASSWORD",
	"MASTER_LOG_FILE":       "SOURCE_LOG_FILE",
	"MASTER_LOG_POS":        "SOURCE_LOG_POS",
	"MASTER_AUTO_POSITION":  "SOURCE_AUTO_POSITION",
	"MASTER_SSL":            "SOURCE_SSL",
	"MASTER_SSL_CA":         "SOURCE_SSL_CA",
	"MASTER_SSL_CERT":       "SOURCE_SSL_CERT",
	"MASTER_SSL_KEY":        "SOURCE_SSL_KEY",
	"MASTER_SSL_CIPHER":     "SOURCE_SSL_CIPHER",
}

// ReplicaTermFor returns the spelling of term appropriate for the given server version
func ReplicaTermFor(mysqlVersion string, term string) string {
	vs, err := ParseServerVersion(mysqlVersion)
	if err != nil {
		// default to returning the same term if we cannot determine the version
		return term
	}

	if vs.GreaterThanOrEqual(mysqlVersionCutoff) {
		if replicaTerm, ok := MysqlReplicaTermMap[term]; ok {
			return replicaTerm
		}
	}
	return term
}

// ParseServerVersion parses the numeric part of a server version string such as "8.0.36-log"
func ParseServerVersion(mysqlVersion string) (*version.Version, error) {
	if number := versionNumberRegexp.FindString(mysqlVersion); number != "" {
		mysqlVersion = number
	}
	return version.NewVersion(mysqlVersion)
}

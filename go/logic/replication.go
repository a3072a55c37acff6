/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openark/golib/log"
	"github.com/openark/golib/sqlutils"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/sql"
)

const firstBinlogPosition = 4

// cleanupTimeout bounds statements that undo changes after the caller's context is done
const cleanupTimeout = 10 * time.Second

type SSLOptions struct {
	CA     string
	Cert   string
	Key    string
	Cipher string
}

func (this SSLOptions) IsEmpty() bool {
	return this.CA == "" && this.Cert == "" && this.Key == "" && this.Cipher == ""
}

// ReplicationOptions tune a ReplicationLink
type ReplicationOptions struct {
	Verbose          bool
	Pedantic         bool
	SuppressWarnings bool
	SSL              SSLOptions

	// MasterHost and MasterPort are how the slave reaches the master, when that differs
	// from the address the master handle was opened with
	MasterHost string
	MasterPort int

	MasterLogFile string
	MasterLogPos  int64
	FromBeginning bool
	RplUserHost   string
	Interval      time.Duration
}

func NewReplicationOptions() *ReplicationOptions {
	return &ReplicationOptions{
		MasterLogPos: -1,
		RplUserHost:  "%",
		Interval:     base.DefaultPollInterval,
	}
}

// ReplicationLink is a master/slave pair of server handles. It keeps no replication
// state of its own: every check queries the servers.
type ReplicationLink struct {
	master  *mysql.Server
	slave   *mysql.Server
	options *ReplicationOptions
}

func NewReplicationLink(master *mysql.Server, slave *mysql.Server, options *ReplicationOptions) (*ReplicationLink, error) {
	if master == nil || slave == nil {
		return nil, fmt.Errorf("NewReplicationLink: both master and slave are required")
	}
	if master.SameServerAs(slave) {
		return nil, fmt.Errorf("Master and slave are the same server: %+v", master.Key())
	}
	if options == nil {
		options = NewReplicationOptions()
	}
	return &ReplicationLink{
		master:  master,
		slave:   slave,
		options: options,
	}, nil
}

func (this *ReplicationLink) Master() *Master {
	return AsMaster(this.master)
}

func (this *ReplicationLink) Slave() *Slave {
	slave := AsSlave(this.slave)
	slave.PollInterval = this.options.Interval
	return slave
}

func (this *ReplicationLink) String() string {
	return fmt.Sprintf("%+v -> %+v", this.master.Key(), this.slave.Key())
}

// mismatch reports a compatibility difference per the pedantic / suppress-warnings policy
func (this *ReplicationLink) mismatch(check string, format string, args ...interface{}) *mysql.Diagnostic {
	if this.options.Pedantic {
		return mysql.NewError(check, format, args...)
	}
	if this.options.SuppressWarnings {
		return nil
	}
	return mysql.NewWarning(check, format, args...)
}

func (this *ReplicationLink) serverInfos(ctx context.Context) (masterInfo *mysql.ServerInfo, slaveInfo *mysql.ServerInfo, err error) {
	if masterInfo, err = mysql.GetServerInfo(ctx, this.master); err != nil {
		return nil, nil, err
	}
	if slaveInfo, err = mysql.GetServerInfo(ctx, this.slave); err != nil {
		return nil, nil, err
	}
	return masterInfo, slaveInfo, nil
}

// CheckServerIDs requires nonzero, distinct server ids
func (this *ReplicationLink) CheckServerIDs(ctx context.Context) (mysql.Diagnostics, error) {
	masterInfo, slaveInfo, err := this.serverInfos(ctx)
	if err != nil {
		return nil, err
	}
	return checkServerIDs(masterInfo.ServerID, slaveInfo.ServerID), nil
}

func checkServerIDs(masterID uint64, slaveID uint64) (diagnostics mysql.Diagnostics) {
	if masterID == 0 {
		diagnostics.Append(mysql.NewError(mysql.CheckServerID, "Master server_id is 0. Replication requires a nonzero server_id."))
	}
	if slaveID == 0 {
		diagnostics.Append(mysql.NewError(mysql.CheckServerID, "Slave server_id is 0. Replication requires a nonzero server_id."))
	}
	if masterID != 0 && masterID == slaveID {
		diagnostics.Append(mysql.NewError(mysql.CheckServerID, "The slave's server_id is the same as the master's: %d.", slaveID))
	}
	return diagnostics
}

// CheckServerUUIDs requires distinct, well formed UUIDs on both sides, or no UUID support on either
func (this *ReplicationLink) CheckServerUUIDs(ctx context.Context) (mysql.Diagnostics, error) {
	masterInfo, slaveInfo, err := this.serverInfos(ctx)
	if err != nil {
		return nil, err
	}
	return checkServerUUIDs(masterInfo, slaveInfo), nil
}

func checkServerUUIDs(masterInfo *mysql.ServerInfo, slaveInfo *mysql.ServerInfo) (diagnostics mysql.Diagnostics) {
	masterSupports, slaveSupports := masterInfo.SupportsUUID(), slaveInfo.SupportsUUID()
	if !masterSupports && !slaveSupports {
		return diagnostics
	}
	if masterSupports != slaveSupports {
		diagnostics.Append(mysql.NewError(mysql.CheckServerUUID, "Only one of master and slave supports server_uuid."))
		return diagnostics
	}
	if _, err := uuid.Parse(masterInfo.ServerUUID); err != nil {
		diagnostics.Append(mysql.NewError(mysql.CheckServerUUID, "Master server_uuid %q is malformed.", masterInfo.ServerUUID))
	}
	if _, err := uuid.Parse(slaveInfo.ServerUUID); err != nil {
		diagnostics.Append(mysql.NewError(mysql.CheckServerUUID, "Slave server_uuid %q is malformed.", slaveInfo.ServerUUID))
	}
	if strings.EqualFold(masterInfo.ServerUUID, slaveInfo.ServerUUID) {
		diagnostics.Append(mysql.NewError(mysql.CheckServerUUID, "The slave's server_uuid is the same as the master's: %s.", slaveInfo.ServerUUID))
	}
	return diagnostics
}

// CheckGTIDModes requires GTIDs on both sides or on neither
func (this *ReplicationLink) CheckGTIDModes(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	masterGTID, err := gtidModeOn(ctx, this.master)
	if err != nil {
		return nil, err
	}
	slaveGTID, err := gtidModeOn(ctx, this.slave)
	if err != nil {
		return nil, err
	}
	if masterGTID != slaveGTID {
		diagnostics.Append(mysql.NewError(mysql.CheckGTID, "GTID_MODE differs: master %s, slave %s. Both must be ON or both OFF.", onOff(masterGTID), onOff(slaveGTID)))
	}
	return diagnostics, nil
}

func readEngines(ctx context.Context, server *mysql.Server) (engines map[string]string, err error) {
	engines = map[string]string{}
	err = server.QueryRowsMap(ctx, `show /* gh-rpl */ engines`, func(m sqlutils.RowMap) error {
		engines[m.GetString("Engine")] = strings.ToUpper(m.GetString("Support"))
		return nil
	})
	return engines, err
}

func engineSupported(support string) bool {
	return support == "YES" || support == "DEFAULT"
}

// CheckInnoDBCompatibility compares InnoDB availability and version
func (this *ReplicationLink) CheckInnoDBCompatibility(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	masterInfo, slaveInfo, err := this.serverInfos(ctx)
	if err != nil {
		return nil, err
	}
	masterEngines, err := readEngines(ctx, this.master)
	if err != nil {
		return nil, err
	}
	slaveEngines, err := readEngines(ctx, this.slave)
	if err != nil {
		return nil, err
	}
	masterInnoDB, slaveInnoDB := engineSupported(masterEngines["InnoDB"]), engineSupported(slaveEngines["InnoDB"])
	if masterInnoDB != slaveInnoDB {
		diagnostics.Append(this.mismatch(mysql.CheckInnoDB, "InnoDB is enabled on only one side: master %t, slave %t.", masterInnoDB, slaveInnoDB))
	}
	if masterInfo.InnoDBVersion != slaveInfo.InnoDBVersion {
		diagnostics.Append(this.mismatch(mysql.CheckInnoDB, "InnoDB versions differ: master %s, slave %s.", masterInfo.InnoDBVersion, slaveInfo.InnoDBVersion))
	}
	return diagnostics, nil
}

// CheckStorageEngines requires the slave to support every engine the master supports
func (this *ReplicationLink) CheckStorageEngines(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	masterEngines, err := readEngines(ctx, this.master)
	if err != nil {
		return nil, err
	}
	slaveEngines, err := readEngines(ctx, this.slave)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for name := range masterEngines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if engineSupported(masterEngines[name]) && !engineSupported(slaveEngines[name]) {
			diagnostics.Append(this.mismatch(mysql.CheckEngines, "Slave does not support the %s storage engine.", name))
		}
	}
	masterDefault, slaveDefault := defaultEngine(masterEngines), defaultEngine(slaveEngines)
	if masterDefault != slaveDefault {
		diagnostics.Append(this.mismatch(mysql.CheckEngines, "Default storage engines differ: master %s, slave %s.", masterDefault, slaveDefault))
	}
	return diagnostics, nil
}

func defaultEngine(engines map[string]string) string {
	for name, support := range engines {
		if support == "DEFAULT" {
			return name
		}
	}
	return ""
}

// CheckMasterBinlog requires binary logging on the master
func (this *ReplicationLink) CheckMasterBinlog(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	logBin, _, err := this.master.GetVariable(ctx, "log_bin")
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(logBin, "ON") && logBin != "1" {
		diagnostics.Append(mysql.NewError(mysql.CheckBinlog, "Master must have binary logging turned on."))
	}
	return diagnostics, nil
}

// CheckLCTN compares lower_case_table_names on both sides
func (this *ReplicationLink) CheckLCTN(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	masterInfo, slaveInfo, err := this.serverInfos(ctx)
	if err != nil {
		return nil, err
	}
	if diagnostic := checkLCTN(masterInfo.LowerCaseTableNames, slaveInfo.LowerCaseTableNames); diagnostic != nil && !this.options.SuppressWarnings {
		diagnostics.Append(diagnostic)
	}
	return diagnostics, nil
}

func checkLCTN(masterLCTN int, slaveLCTN int) *mysql.Diagnostic {
	if masterLCTN != slaveLCTN {
		return mysql.NewWarning(mysql.CheckLCTN, "lower_case_table_names differs: master %d, slave %d. Identifiers may replicate with inconsistent case.", masterLCTN, slaveLCTN)
	}
	if masterLCTN != 0 {
		return mysql.NewWarning(mysql.CheckLCTN, "Master and slave both use lower_case_table_names=%d. Identifiers that differ only in case will collide.", masterLCTN)
	}
	return nil
}

// CheckPrerequisites runs every compatibility check and collects the outcome
func (this *ReplicationLink) CheckPrerequisites(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	checks := []func(context.Context) (mysql.Diagnostics, error){
		this.CheckServerIDs,
		this.CheckServerUUIDs,
		this.CheckGTIDModes,
		this.CheckInnoDBCompatibility,
		this.CheckStorageEngines,
		this.CheckMasterBinlog,
		this.CheckLCTN,
	}
	for _, check := range checks {
		checkDiagnostics, err := check(ctx)
		if err != nil {
			return diagnostics, err
		}
		diagnostics.Append(checkDiagnostics...)
	}
	for _, warning := range diagnostics.Warnings() {
		log.Warningf("%s: %s", this, warning.Message)
	}
	return diagnostics, nil
}

// CheckSlaveConnection returns true when the slave's I/O thread runs against this master.
// A stopped slave is an error rather than false.
func (this *ReplicationLink) CheckSlaveConnection(ctx context.Context) (bool, error) {
	slave := this.Slave()
	status, err := slave.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	if status == nil || status.IsStopped() {
		return false, mysql.NewReplicationError(mysql.CheckConnected, "Slave is stopped.")
	}
	configured, err := slave.IsConfiguredForMaster(ctx, this.master, false, false)
	if err != nil {
		return false, err
	}
	return configured && status.IOThreadRunning(), nil
}

// CheckSlaveDelay reports a slave that is behind. Reading short of the master's
// coordinates counts as behind even when Seconds_Behind_Master is 0.
func (this *ReplicationLink) CheckSlaveDelay(ctx context.Context) (diagnostics mysql.Diagnostics, err error) {
	masterStatus, err := this.Master().GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if masterStatus == nil {
		diagnostics.Append(mysql.NewError(mysql.CheckBinlog, "Master must have binary logging turned on."))
		return diagnostics, nil
	}
	status, err := this.Slave().GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "%+v is not configured as a slave.", this.slave.Key()))
		return diagnostics, nil
	}
	diagnostics.Append(checkSlaveDelay(masterStatus, status))
	return diagnostics, nil
}

func checkSlaveDelay(masterStatus *MasterStatus, status *mysql.SlaveStatus) *mysql.Diagnostic {
	if !status.SecondsBehindMaster.Valid {
		return mysql.NewError(mysql.CheckSlaveDelay, "Slave delay is unknown. Replication is not running.")
	}
	if status.SecondsBehindMaster.Int64 > 0 {
		return mysql.NewError(mysql.CheckSlaveDelay, "Slave is %d seconds behind master.", status.SecondsBehindMaster.Int64)
	}
	if status.ReadCoordinates().SmallerThan(&masterStatus.Coordinates) {
		return mysql.NewError(mysql.CheckSlaveDelay, "Slave has read up to %+v, master is at %+v.", *status.ReadCoordinates(), masterStatus.Coordinates)
	}
	return nil
}

// CheckRplHealth runs the slave side health checks: right master, both threads running
// without errors, delay and position drift within bounds, and binlog filters agreeing
func (this *ReplicationLink) CheckRplHealth(ctx context.Context, maxDelay int64, maxPosition int64) (diagnostics mysql.Diagnostics, err error) {
	slave := this.Slave()
	status, err := slave.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "Slave is not configured."))
		return diagnostics, nil
	}
	configured, err := slave.IsConfiguredForMaster(ctx, this.master, false, false)
	if err != nil {
		return nil, err
	}
	if !configured {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "Slave is not connected to master."))
		return diagnostics, nil
	}
	if !status.IOThreadRunning() {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "IO thread is not running."))
	}
	if !status.SQLThreadRunning() {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "SQL thread is not running."))
	}
	if status.LastIOErrno > 0 {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "Got IO error %d: %s", status.LastIOErrno, status.LastIOError))
	}
	if status.LastSQLErrno > 0 {
		diagnostics.Append(mysql.NewError(mysql.CheckConnected, "Got SQL error %d: %s", status.LastSQLErrno, status.LastSQLError))
	}
	if status.SecondsBehindMaster.Valid && status.SecondsBehindMaster.Int64 > maxDelay {
		diagnostics.Append(mysql.NewError(mysql.CheckSlaveDelay, "Slave delay is %d seconds behind master.", status.SecondsBehindMaster.Int64))
	}

	master := this.Master()
	masterStatus, err := master.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if masterStatus != nil {
		drift := status.ReadCoordinates().PositionDrift(&masterStatus.Coordinates)
		if drift < 0 {
			diagnostics.Append(mysql.NewError(mysql.CheckBehind, "Slave reads %s, master writes %s.", status.MasterLogFile, masterStatus.Coordinates.LogFile))
		} else if drift > maxPosition {
			diagnostics.Append(mysql.NewError(mysql.CheckBehind, "Slave is %d bytes behind master.", drift))
		}
	}
	filtersMatch, err := binlogFiltersMatch(ctx, this.master, this.slave)
	if err != nil {
		return nil, err
	}
	if !filtersMatch {
		diagnostics.Append(mysql.NewError(mysql.CheckFilters, "Binary log filters differ from the master's."))
	}
	return diagnostics, nil
}

// binlogFiltersMatch compares Binlog_Do_DB / Binlog_Ignore_DB of two servers. A server
// without binary logging has no filters to disagree with.
func binlogFiltersMatch(ctx context.Context, master *mysql.Server, other *mysql.Server) (bool, error) {
	masterStatus, err := AsMaster(master).GetStatus(ctx)
	if err != nil {
		return false, err
	}
	otherStatus, err := AsMaster(other).GetStatus(ctx)
	if err != nil {
		return false, err
	}
	if masterStatus == nil || otherStatus == nil {
		return true, nil
	}
	return masterStatus.BinlogDoDB == otherStatus.BinlogDoDB && masterStatus.BinlogIgnoreDB == otherStatus.BinlogIgnoreDB, nil
}

// CreateRplUser makes sure user@host exists on the master with the REPLICATION SLAVE privilege.
// An existing user is never dropped or re-created. Returns true when the user was created.
func (this *ReplicationLink) CreateRplUser(ctx context.Context, host string, user string, password string, ssl bool) (created bool, err error) {
	return createRplUser(ctx, this.master, host, user, password, ssl)
}

func createRplUser(ctx context.Context, server *mysql.Server, host string, user string, password string, ssl bool) (created bool, err error) {
	if host == "" {
		host = "%"
	}
	rows, err := server.Query(ctx, `select /* gh-rpl */ count(*) as user_count from mysql.user where user = ? and host = ?`, user, host)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 || rows[0].GetInt("user_count") == 0 {
		query := `create /* gh-rpl */ user ?@? identified by ?`
		if ssl {
			query = query + ` require ssl`
		}
		if err := server.Exec(ctx, query, user, host, password); err != nil {
			return false, err
		}
		log.Infof("Created replication user %s@%s on %+v", user, host, server.Key())
		created = true
	}

	hasGrant := false
	err = server.QueryRowsMap(ctx, `show /* gh-rpl */ grants for ?@?`, func(m sqlutils.RowMap) error {
		for _, cell := range m {
			if strings.Contains(strings.ToUpper(cell.String), "REPLICATION SLAVE") {
				hasGrant = true
			}
		}
		return nil
	}, user, host)
	if err != nil {
		return created, err
	}
	if !hasGrant {
		if err := server.Exec(ctx, `grant /* gh-rpl */ replication slave on *.* to ?@?`, user, host); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Setup points the slave at the master and starts it. It returns false, without error, when
// replication did not reach a steady state within maxTries polls.
func (this *ReplicationLink) Setup(ctx context.Context, rplUser string, rplPassword string, maxTries int) (bool, error) {
	master := this.Master()
	slave := this.Slave()

	gtidDiagnostics, err := this.CheckGTIDModes(ctx)
	if err != nil {
		return false, err
	}
	if err := gtidDiagnostics.Err(); err != nil {
		return false, err
	}

	overrides := this.changeMasterOverrides(rplUser, rplPassword)
	if this.options.MasterLogFile != "" {
		binaryLogs, err := master.GetBinaryLogs(ctx)
		if err != nil {
			return false, err
		}
		found := false
		for _, binaryLog := range binaryLogs {
			found = found || binaryLog == this.options.MasterLogFile
		}
		if !found {
			return false, mysql.NewReplicationError(mysql.CheckBinlog, "Master %+v has no binary log named %s.", this.master.Key(), this.options.MasterLogFile)
		}
		overrides.LogFile = this.options.MasterLogFile
		overrides.LogPos = this.options.MasterLogPos
		if overrides.LogPos < 0 {
			overrides.LogPos = firstBinlogPosition
		}
	} else if !this.options.FromBeginning {
		status, err := master.GetStatus(ctx)
		if err != nil {
			return false, err
		}
		if status == nil {
			return false, mysql.NewReplicationError(mysql.CheckBinlog, "Master must have binary logging turned on.")
		}
		overrides.LogFile = status.Coordinates.LogFile
		overrides.LogPos = status.Coordinates.LogPos
	}

	if rplUser != "" {
		if _, err := this.CreateRplUser(ctx, this.options.RplUserHost, rplUser, rplPassword, !this.options.SSL.IsEmpty()); err != nil {
			return false, err
		}
	}

	status, err := slave.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	if status != nil && !status.IsStopped() {
		if err := slave.Stop(ctx); err != nil {
			return false, err
		}
	}
	statement, err := slave.MakeChangeMaster(ctx, this.options.FromBeginning, overrides)
	if err != nil {
		return false, err
	}
	if err := this.slave.Exec(ctx, statement); err != nil {
		return false, err
	}
	slave.MasterInfo().Invalidate()
	if err := slave.Start(ctx); err != nil {
		return false, err
	}

	for try := 0; try < maxTries; try++ {
		status, err := slave.GetStatus(ctx)
		if err != nil {
			return false, err
		}
		if status != nil && status.IsWaitingForEvents() && status.SQLThreadRunning() {
			log.Infof("Replication %s is running", this)
			return true, nil
		}
		if status != nil && !status.SQLThreadRunning() {
			log.Debugf("SQL thread on %+v is not running; starting it", this.slave.Key())
			if err := slave.StartSQLThread(ctx); err != nil {
				log.Errore(err)
			}
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(this.options.Interval):
		}
	}
	log.Warningf("Replication %s did not reach a steady state after %d tries", this, maxTries)
	return false, nil
}

func (this *ReplicationLink) changeMasterOverrides(rplUser string, rplPassword string) *ChangeMasterOverrides {
	overrides := NewChangeMasterOverrides()
	overrides.Host = firstNonEmpty(this.options.MasterHost, this.master.Key().Hostname)
	overrides.Port = this.master.Key().Port
	if this.options.MasterPort != 0 {
		overrides.Port = this.options.MasterPort
	}
	overrides.User = rplUser
	overrides.Password = rplPassword
	overrides.SSL = this.options.SSL
	return overrides
}

// Test creates a database on the master and waits for it to show up on the slave, then
// drops it. It returns false, without error, when the database never arrived.
func (this *ReplicationLink) Test(ctx context.Context, databaseName string, maxTries int) (bool, error) {
	if databaseName == "" {
		databaseName = fmt.Sprintf("gh_rpl_test_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if err := this.master.Exec(ctx, fmt.Sprintf(`create /* gh-rpl */ database %s`, sql.EscapeName(databaseName))); err != nil {
		return false, err
	}
	defer func() {
		dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := this.master.Exec(dropCtx, fmt.Sprintf(`drop /* gh-rpl */ database if exists %s`, sql.EscapeName(databaseName))); err != nil {
			log.Errore(err)
		}
	}()

	for try := 0; try < maxTries; try++ {
		found := false
		err := this.slave.QueryRowsMap(ctx, `show /* gh-rpl */ databases`, func(m sqlutils.RowMap) error {
			found = found || m.GetString("Database") == databaseName
			return nil
		})
		if err != nil {
			return false, err
		}
		if found {
			log.Infof("Database %s replicated from %+v to %+v", databaseName, this.master.Key(), this.slave.Key())
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(this.options.Interval):
		}
	}
	log.Warningf("Database %s did not replicate to %+v after %d tries", databaseName, this.slave.Key(), maxTries)
	return false, nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

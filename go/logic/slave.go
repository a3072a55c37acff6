/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	gosql "database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/openark/golib/log"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/sql"
)

// SlaveDelay is how far a slave is behind its master
type SlaveDelay struct {
	SecondsBehind    gosql.NullInt64
	ReadCoordinates  mysql.BinlogCoordinates
	ExecCoordinates  mysql.BinlogCoordinates
	RetrievedGTIDSet string
	ExecutedGTIDSet  string
}

type ThreadStatus struct {
	IORunning  string
	SQLRunning string
	IOState    string
	IOErrno    int
	IOError    string
	SQLErrno   int
	SQLError   string
}

// ChangeMasterOverrides are explicit CHANGE MASTER TO values. Zero values fall back
// to what the slave has recorded; a negative LogPos means no position.
type ChangeMasterOverrides struct {
	Host     string
	Port     int
	User     string
	Password string
	LogFile  string
	LogPos   int64
	SSL      SSLOptions
}

func NewChangeMasterOverrides() *ChangeMasterOverrides {
	return &ChangeMasterOverrides{LogPos: -1}
}

// Slave is the slave-side view of a server handle. It borrows the handle's
// connection and never connects on its own.
type Slave struct {
	PollInterval time.Duration

	server     *mysql.Server
	masterInfo *MasterInfo
}

func AsSlave(server *mysql.Server) *Slave {
	return &Slave{
		PollInterval: base.DefaultPollInterval,
		server:       server,
		masterInfo:   NewMasterInfo(server),
	}
}

func (this *Slave) Server() *mysql.Server {
	return this.server
}

func (this *Slave) MasterInfo() *MasterInfo {
	return this.masterInfo
}

// GetStatus returns the slave status, or nil when the server is not a slave
func (this *Slave) GetStatus(ctx context.Context) (*mysql.SlaveStatus, error) {
	return mysql.ReadSlaveStatus(ctx, this.server)
}

// GetDelay returns the slave's lag, or nil when the server is not a slave
func (this *Slave) GetDelay(ctx context.Context) (*SlaveDelay, error) {
	status, err := this.GetStatus(ctx)
	if err != nil || status == nil {
		return nil, err
	}
	return &SlaveDelay{
		SecondsBehind:    status.SecondsBehindMaster,
		ReadCoordinates:  *status.ReadCoordinates(),
		ExecCoordinates:  *status.ExecCoordinates(),
		RetrievedGTIDSet: status.RetrievedGTIDSet,
		ExecutedGTIDSet:  status.ExecutedGTIDSet,
	}, nil
}

func (this *Slave) GetThreadStatus(ctx context.Context) (*ThreadStatus, error) {
	status, err := this.GetStatus(ctx)
	if err != nil || status == nil {
		return nil, err
	}
	return &ThreadStatus{
		IORunning:  status.SlaveIORunning,
		SQLRunning: status.SlaveSQLRunning,
		IOState:    status.SlaveIOState,
		IOErrno:    status.LastIOErrno,
		IOError:    status.LastIOError,
		SQLErrno:   status.LastSQLErrno,
		SQLError:   status.LastSQLError,
	}, nil
}

// GetReplicationFilters returns the replicate do/ignore database filters
func (this *Slave) GetReplicationFilters(ctx context.Context) (doDB string, ignoreDB string, err error) {
	status, err := this.GetStatus(ctx)
	if err != nil || status == nil {
		return "", "", err
	}
	return status.ReplicateDoDB, status.ReplicateIgnoreDB, nil
}

func (this *Slave) GetRetrievedGTIDSet(ctx context.Context) (string, error) {
	status, err := this.GetStatus(ctx)
	if err != nil || status == nil {
		return "", err
	}
	return mysql.NormalizeGTIDSet(status.RetrievedGTIDSet)
}

// MakeChangeMaster builds the CHANGE MASTER TO statement for this slave. Overrides win over
// the recorded master info. With gtid_mode=ON the statement auto positions and carries no
// coordinates; otherwise coordinates are included unless fromBeginning is set.
func (this *Slave) MakeChangeMaster(ctx context.Context, fromBeginning bool, overrides *ChangeMasterOverrides) (string, error) {
	if overrides == nil {
		overrides = NewChangeMasterOverrides()
	}
	recorded, err := this.masterInfo.Read(ctx)
	if err != nil {
		return "", err
	}
	gtidEnabled, err := gtidModeOn(ctx, this.server)
	if err != nil {
		return "", err
	}

	host := firstNonEmpty(overrides.Host, recorded.Host)
	if host == "" {
		return "", fmt.Errorf("No master host given for %+v, and none recorded", this.server.Key())
	}
	port := overrides.Port
	if port == 0 {
		port = recorded.Port
	}
	user := firstNonEmpty(overrides.User, recorded.User)
	password := overrides.Password
	if overrides.User == "" {
		password = recorded.Password
	}

	term := this.server.Term
	options := []sql.StatementOption{
		{Name: term("MASTER_HOST"), Value: host},
	}
	if user != "" {
		options = append(options, sql.StatementOption{Name: term("MASTER_USER"), Value: user})
		options = append(options, sql.StatementOption{Name: term("MASTER_PASSWORD"), Value: password})
	}
	if port != 0 {
		options = append(options, sql.StatementOption{Name: term("MASTER_PORT"), Value: port})
	}
	if gtidEnabled {
		options = append(options, sql.StatementOption{Name: term("MASTER_AUTO_POSITION"), Value: 1})
	} else if !fromBeginning {
		logFile := overrides.LogFile
		logPos := overrides.LogPos
		if logFile == "" {
			logFile = recorded.LogFile
			logPos = recorded.LogPos
		}
		if logFile != "" {
			options = append(options, sql.StatementOption{Name: term("MASTER_LOG_FILE"), Value: logFile})
			if logPos >= 0 {
				options = append(options, sql.StatementOption{Name: term("MASTER_LOG_POS"), Value: logPos})
			}
		}
	}

	ssl := overrides.SSL
	if ssl.IsEmpty() {
		ssl = recorded.SSL
	}
	if !ssl.IsEmpty() {
		options = append(options, sql.StatementOption{Name: term("MASTER_SSL"), Value: 1})
		sslOptions := []sql.StatementOption{
			{Name: term("MASTER_SSL_CA"), Value: ssl.CA},
			{Name: term("MASTER_SSL_CERT"), Value: ssl.Cert},
			{Name: term("MASTER_SSL_KEY"), Value: ssl.Key},
			{Name: term("MASTER_SSL_CIPHER"), Value: ssl.Cipher},
		}
		for _, option := range sslOptions {
			if option.Value != "" {
				options = append(options, option)
			}
		}
	}
	return sql.BuildOptionsStatement(term("change master to"), options)
}

func (this *Slave) Start(ctx context.Context) error {
	log.Debugf("Starting replication on %+v", this.server.Key())
	return this.server.Exec(ctx, fmt.Sprintf(`start /* gh-rpl */ %s`, this.server.Term("slave")))
}

func (this *Slave) StartSQLThread(ctx context.Context) error {
	return this.server.Exec(ctx, fmt.Sprintf(`start /* gh-rpl */ %s sql_thread`, this.server.Term("slave")))
}

func (this *Slave) Stop(ctx context.Context) error {
	log.Debugf("Stopping replication on %+v", this.server.Key())
	return this.server.Exec(ctx, fmt.Sprintf(`stop /* gh-rpl */ %s`, this.server.Term("slave")))
}

// Reset clears relay logs and coordinates, keeping the connection parameters
func (this *Slave) Reset(ctx context.Context) error {
	defer this.masterInfo.Invalidate()
	return this.server.Exec(ctx, fmt.Sprintf(`reset /* gh-rpl */ %s`, this.server.Term("slave")))
}

// ResetAll makes the server forget it was ever a slave
func (this *Slave) ResetAll(ctx context.Context) error {
	defer this.masterInfo.Invalidate()
	return this.server.Exec(ctx, fmt.Sprintf(`reset /* gh-rpl */ %s all`, this.server.Term("slave")))
}

// IsConfiguredForMaster returns true when this slave replicates from master. With verifyState
// the I/O thread must also be running. With raiseOnMismatch a false answer comes with a
// *ReplicationError explaining it.
func (this *Slave) IsConfiguredForMaster(ctx context.Context, master *mysql.Server, verifyState bool, raiseOnMismatch bool) (bool, error) {
	mismatch := func(format string, args ...interface{}) (bool, error) {
		if raiseOnMismatch {
			return false, mysql.NewReplicationError(mysql.CheckConnected, format, args...)
		}
		return false, nil
	}
	status, err := this.GetStatus(ctx)
	if err != nil {
		return false, err
	}
	if status == nil || !status.IsConfigured() {
		return mismatch("%+v is not configured as a slave", this.server.Key())
	}
	pointsAtMaster, err := slavePointsAt(ctx, status, master)
	if err != nil {
		return false, err
	}
	if !pointsAtMaster {
		return mismatch("%+v replicates from %+v, not from %+v", this.server.Key(), status.MasterKey(), master.Key())
	}
	if verifyState && !status.IOThreadRunning() {
		return mismatch("%+v is configured for %+v but its I/O thread is not running", this.server.Key(), master.Key())
	}
	return true, nil
}

// slavePointsAt compares the slave's configured master with a handle. Hosts may be known
// by several names, so identity falls back to server_uuid and the reported host.
func slavePointsAt(ctx context.Context, status *mysql.SlaveStatus, master *mysql.Server) (bool, error) {
	configuredKey := status.MasterKey()
	masterKey := master.Key()
	if configuredKey.Equals(&masterKey) {
		return true, nil
	}
	info, err := mysql.GetServerInfo(ctx, master)
	if err != nil {
		return false, err
	}
	if status.MasterUUID != "" && info.ServerUUID != "" {
		return status.MasterUUID == info.ServerUUID, nil
	}
	if info.ReportHost != "" {
		reportedKey := mysql.InstanceKey{Hostname: info.ReportHost, Port: info.ReportPort}
		if configuredKey.Equals(&reportedKey) {
			return true, nil
		}
	}
	if status.MasterServerID != 0 && uint64(status.MasterServerID) == info.ServerID {
		return true, nil
	}
	return false, nil
}

// WaitForSlave polls until the SQL thread has executed up to the given master coordinates
func (this *Slave) WaitForSlave(ctx context.Context, coordinates *mysql.BinlogCoordinates, timeout time.Duration) error {
	operation := fmt.Sprintf("waiting for %+v to execute up to %+v", this.server.Key(), *coordinates)
	return this.pollUntil(ctx, operation, timeout, func() (bool, error) {
		status, err := this.GetStatus(ctx)
		if err != nil {
			return false, err
		}
		if status == nil {
			return false, mysql.NewReplicationError(mysql.CheckConnected, "%+v is not configured as a slave", this.server.Key())
		}
		return coordinates.SmallerThanOrEquals(status.ExecCoordinates()), nil
	})
}

// WaitForSlaveGTID polls until gtidSet is contained in the slave's gtid_executed
func (this *Slave) WaitForSlaveGTID(ctx context.Context, gtidSet string, timeout time.Duration) error {
	operation := fmt.Sprintf("waiting for %+v to execute %s", this.server.Key(), gtidSet)
	return this.pollUntil(ctx, operation, timeout, func() (bool, error) {
		executed, _, err := this.server.GetVariable(ctx, "gtid_executed")
		if err != nil {
			return false, err
		}
		return gtidSubset(ctx, this.server, gtidSet, executed)
	})
}

// pollUntil calls probe every PollInterval until it returns true, the timeout elapses,
// or the context is done
func (this *Slave) pollUntil(ctx context.Context, operation string, timeout time.Duration, probe func() (bool, error)) error {
	return pollUntil(ctx, this.PollInterval, operation, timeout, probe)
}

// SwitchMaster re-points this slave at newMaster and starts it. Without GTIDs the slave
// starts at the new master's current coordinates.
func (this *Slave) SwitchMaster(ctx context.Context, newMaster *mysql.Server, user string, password string, ssl SSLOptions) error {
	overrides := NewChangeMasterOverrides()
	overrides.Host = newMaster.Key().Hostname
	overrides.Port = newMaster.Key().Port
	overrides.User = user
	overrides.Password = password
	overrides.SSL = ssl

	gtidEnabled, err := gtidModeOn(ctx, this.server)
	if err != nil {
		return err
	}
	if !gtidEnabled {
		status, err := AsMaster(newMaster).GetStatus(ctx)
		if err != nil {
			return err
		}
		if status == nil {
			return mysql.NewReplicationError(mysql.CheckBinlog, "%+v has binary logging turned off and cannot serve as master", newMaster.Key())
		}
		overrides.LogFile = status.Coordinates.LogFile
		overrides.LogPos = status.Coordinates.LogPos
	}
	if err := this.Stop(ctx); err != nil {
		return err
	}
	statement, err := this.MakeChangeMaster(ctx, false, overrides)
	if err != nil {
		return err
	}
	if err := this.server.Exec(ctx, statement); err != nil {
		return err
	}
	this.masterInfo.Invalidate()
	log.Infof("%+v now replicates from %+v", this.server.Key(), newMaster.Key())
	return this.Start(ctx)
}

func pollUntil(ctx context.Context, interval time.Duration, operation string, timeout time.Duration, probe func() (bool, error)) error {
	startTime := time.Now()
	for {
		done, err := probe()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Since(startTime) >= timeout {
			return mysql.NewTimeoutError(operation, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func gtidModeOn(ctx context.Context, server *mysql.Server) (bool, error) {
	mode, _, err := server.GetVariable(ctx, "gtid_mode")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(mode, "ON"), nil
}

// gtidSubset asks the server whether every transaction of subset is in superset
func gtidSubset(ctx context.Context, server *mysql.Server, subset string, superset string) (bool, error) {
	rows, err := server.Query(ctx, `select /* gh-rpl */ gtid_subset(?, ?) as is_subset`, subset, superset)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, fmt.Errorf("gtid_subset returned no rows on %+v", server.Key())
	}
	return rows[0].GetInt("is_subset") == 1, nil
}

// gtidSubtract asks the server for the transactions of gtidSet missing from subtract
func gtidSubtract(ctx context.Context, server *mysql.Server, gtidSet string, subtract string) (string, error) {
	rows, err := server.Query(ctx, `select /* gh-rpl */ gtid_subtract(?, ?) as missing`, gtidSet, subtract)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("gtid_subtract returned no rows on %+v", server.Key())
	}
	return mysql.NormalizeGTIDSet(rows[0].GetString("missing"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

// Package mysqltest simulates a set of replicating MySQL servers behind the
// mysql.Driver interface, for unit tests that cannot reach a real server.
package mysqltest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"

	drivermysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/openark/golib/sqlutils"

	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/sql"
)

var (
	commentRegexp = regexp.MustCompile(`/\*.*?\*/`)
	spacesRegexp  = regexp.MustCompile(`\s+`)
	uuidNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

	ErrServerGone = errors.New("invalid connection")
)

// User is an account known to a FakeServer
type User struct {
	Name      string
	Host      string
	Password  string
	ReplSlave bool
}

// SlaveState is the replication state a FakeServer keeps as a slave
type SlaveState struct {
	MasterHost        string
	MasterPort        int
	MasterUser        string
	MasterPassword    string
	MasterLogFile     string
	ReadPos           int64
	ExecPos           int64
	AutoPosition      bool
	SSLCA             string
	SSLCert           string
	SSLKey            string
	SSLCipher         string
	IORunning         bool
	SQLRunning        bool
	RetrievedGTIDs    string
	LastIOErrno       int
	LastIOError       string
	LastSQLErrno      int
	LastSQLError      string
	ReplicateDoDB     string
	ReplicateIgnoreDB string
	// the server id of the master as seen by the I/O thread
	masterServerID int64
	masterUUID     string
}

// FakeServer is a single simulated server. Tests mutate its fields directly,
// under World.Lock() when a handle may be in use concurrently.
type FakeServer struct {
	Key                  mysql.InstanceKey
	ServerID             int64
	ServerUUID           string
	Version              string
	GTIDMode             string
	LogBin               bool
	LogSlaveUpdates      bool
	LowerCaseTableNames  int
	ReadOnly             bool
	SuperReadOnly        bool
	MasterInfoRepository string
	InnoDBVersion        string
	HaveSSL              string
	Engines              map[string]string
	BinlogDoDB           string
	BinlogIgnoreDB       string
	BinlogFile           string
	BinlogPos            int64
	GTIDExecuted         string
	GTIDPurged           string
	Users                []*User
	Databases            map[string]bool
	ReportHost           string
	ReportPort           int
	// ExtraSlaveHosts are listed by SHOW SLAVE HOSTS in addition to the connected slaves
	ExtraSlaveHosts []mysql.InstanceKey
	// Unreachable servers refuse new connections and break existing ones
	Unreachable bool
	// UnknownHost servers fail name resolution
	UnknownHost bool
	// Lagging slaves read events but never apply them
	Lagging bool
	// SecondsBehind is reported while the SQL thread runs
	SecondsBehind int64
	// Failures maps a normalized statement prefix to the error it returns
	Failures map[string]error
	Slave    SlaveState

	gtidSequence int64
	readLocked   bool
	statements   []string
}

// World is a set of FakeServers addressed by host:port. It implements mysql.Driver.
type World struct {
	mutex   sync.Mutex
	servers map[string]*FakeServer
}

func NewWorld() *World {
	return &World{servers: map[string]*FakeServer{}}
}

// AddServer registers a GTID enabled, binlogging 8.0 server with the given id
func (this *World) AddServer(hostname string, port int, serverID int64) *FakeServer {
	key := mysql.InstanceKey{Hostname: hostname, Port: port}
	server := &FakeServer{
		Key:                  key,
		ServerID:             serverID,
		ServerUUID:           uuid.NewSHA1(uuidNamespace, []byte(key.StringCode())).String(),
		Version:              "8.0.36",
		GTIDMode:             "ON",
		LogBin:               true,
		LogSlaveUpdates:      true,
		MasterInfoRepository: "TABLE",
		InnoDBVersion:        "8.0.36",
		HaveSSL:              "YES",
		Engines:              map[string]string{"InnoDB": "DEFAULT", "MyISAM": "YES", "MEMORY": "YES", "CSV": "YES"},
		BinlogFile:           "mysql-bin.000001",
		BinlogPos:            4,
		Databases:            map[string]bool{"mysql": true, "information_schema": true, "performance_schema": true, "sys": true},
		ReportHost:           hostname,
		ReportPort:           port,
		Users: []*User{
			{Name: "root", Host: "%", Password: "secret"},
		},
		Failures: map[string]error{},
	}
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.servers[key.StringCode()] = server
	return server
}

// Lock gives tests exclusive access to server fields
func (this *World) Lock() {
	this.mutex.Lock()
}

func (this *World) Unlock() {
	this.mutex.Unlock()
}

func (this *World) Server(hostname string, port int) *FakeServer {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.servers[mysql.InstanceKey{Hostname: hostname, Port: port}.StringCode()]
}

// Config returns connection parameters for a registered server
func (this *World) Config(server *FakeServer) *mysql.ConnectionConfig {
	config := mysql.NewConnectionConfig()
	config.Key = server.Key
	config.User = "root"
	config.Password = "secret"
	return config
}

// Replicate configures and starts slave replicating from master with auto positioning
// when both run with GTIDs, and from the master's current coordinates otherwise
func (this *World) Replicate(slave *FakeServer, master *FakeServer) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	slave.Slave = SlaveState{
		MasterHost:     master.Key.Hostname,
		MasterPort:     master.Key.Port,
		MasterUser:     "rpl",
		MasterPassword: "rplpass",
		MasterLogFile:  master.BinlogFile,
		ReadPos:        master.BinlogPos,
		ExecPos:        master.BinlogPos,
		AutoPosition:   slave.gtidOn() && master.gtidOn(),
		IORunning:      true,
		SQLRunning:     true,
	}
	if !master.hasUser("rpl", "%") {
		master.Users = append(master.Users, &User{Name: "rpl", Host: "%", Password: "rplpass", ReplSlave: true})
	}
	slave.ReadOnly = true
	this.sync()
}

// Commit writes n transactions on server and propagates them to running slaves
func (this *World) Commit(server *FakeServer, n int) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	for i := 0; i < n; i++ {
		server.commit(server.ServerUUID)
	}
	this.sync()
}

// Sync propagates pending events along every running replication link
func (this *World) Sync() {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.sync()
}

// Statements returns the normalized statements a server has executed, in order
func (this *World) Statements(server *FakeServer) []string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]string{}, server.statements...)
}

// Executed returns true when server has executed a statement starting with prefix
func (this *World) Executed(server *FakeServer, prefix string) bool {
	for _, statement := range this.Statements(server) {
		if strings.HasPrefix(statement, prefix) {
			return true
		}
	}
	return false
}

func (this *FakeServer) gtidOn() bool {
	return strings.EqualFold(this.GTIDMode, "ON")
}

func (this *FakeServer) hasUser(name, host string) bool {
	return this.findUser(name, host) != nil
}

func (this *FakeServer) findUser(name, host string) *User {
	for _, user := range this.Users {
		if user.Name == name && user.Host == host {
			return user
		}
	}
	return nil
}

func (this *FakeServer) commit(sourceUUID string) {
	if this.LogBin {
		this.BinlogPos += 100
	}
	if this.gtidOn() {
		this.gtidSequence++
		executed, _ := mysql.GTIDSetUnion(this.GTIDExecuted, fmt.Sprintf("%s:%d", sourceUUID, this.gtidSequence))
		this.GTIDExecuted = executed
	}
}

// applyRelayLog executes the retrieved transactions this server has not executed yet
func (this *FakeServer) applyRelayLog() {
	if !this.gtidOn() || !this.Slave.SQLRunning || this.Lagging {
		return
	}
	missing, err := mysql.GTIDSetSubtract(this.Slave.RetrievedGTIDs, this.GTIDExecuted)
	if err == nil && missing != "" {
		executed, _ := mysql.GTIDSetUnion(this.GTIDExecuted, missing)
		this.GTIDExecuted = executed
		if this.LogBin && this.LogSlaveUpdates {
			count, _ := mysql.GTIDTransactionCount(missing)
			this.BinlogPos += 100 * count
		}
	}
}

// applyFrom applies on this server the master's transactions that it misses
func (this *FakeServer) applyFrom(master *FakeServer) {
	if this.gtidOn() {
		this.applyRelayLog()
	} else if this.Slave.ExecPos < this.Slave.ReadPos {
		if this.LogBin && this.LogSlaveUpdates {
			this.BinlogPos += this.Slave.ReadPos - this.Slave.ExecPos
		}
	}
	this.Slave.ExecPos = this.Slave.ReadPos
	for _, user := range master.Users {
		if !this.hasUser(user.Name, user.Host) {
			replicated := *user
			this.Users = append(this.Users, &replicated)
		}
	}
	for database := range master.Databases {
		this.Databases[database] = true
	}
	for database := range this.Databases {
		if !master.Databases[database] {
			delete(this.Databases, database)
		}
	}
}

func (this *World) masterOf(server *FakeServer) *FakeServer {
	if server.Slave.MasterHost == "" {
		return nil
	}
	return this.servers[mysql.InstanceKey{Hostname: server.Slave.MasterHost, Port: server.Slave.MasterPort}.StringCode()]
}

// sync moves events along replication links until nothing changes. Chains of any
// depth settle in at most len(servers) passes.
func (this *World) sync() {
	for pass := 0; pass <= len(this.servers); pass++ {
		for _, server := range this.servers {
			if server.Unreachable {
				continue
			}
			if !server.Slave.IORunning {
				server.applyRelayLog()
				continue
			}
			master := this.masterOf(server)
			if master == nil || master.Unreachable || master.UnknownHost {
				server.applyRelayLog()
				server.Slave.LastIOErrno = 2003
				server.Slave.LastIOError = fmt.Sprintf("error connecting to master '%s@%s:%d' - retry-time: 60 retries: 1", server.Slave.MasterUser, server.Slave.MasterHost, server.Slave.MasterPort)
				continue
			}
			if !master.LogBin {
				server.Slave.LastIOErrno = 13114
				server.Slave.LastIOError = "Got fatal error 1236 from master when reading data from binary log: 'Binary log is not open'"
				continue
			}
			server.Slave.LastIOErrno = 0
			server.Slave.LastIOError = ""
			server.Slave.masterServerID = master.ServerID
			server.Slave.masterUUID = master.ServerUUID
			server.Slave.MasterLogFile = master.BinlogFile
			server.Slave.ReadPos = master.BinlogPos
			if server.gtidOn() {
				retrieved, err := mysql.GTIDSetSubtract(master.GTIDExecuted, server.GTIDExecuted)
				if err == nil {
					retrieved, err = mysql.GTIDSetUnion(server.Slave.RetrievedGTIDs, retrieved)
				}
				if err == nil {
					server.Slave.RetrievedGTIDs = retrieved
				}
			}
			if server.Slave.SQLRunning && !server.Lagging {
				server.applyFrom(master)
			}
		}
	}
}

func (this *FakeServer) ioThreadState() (running string, state string) {
	switch {
	case !this.Slave.IORunning:
		return "No", ""
	case this.Slave.LastIOErrno == 2003:
		return "Connecting", "Connecting to master"
	case this.Slave.LastIOErrno != 0:
		return "No", ""
	default:
		return "Yes", "Waiting for master to send event"
	}
}

// Open implements mysql.Driver
func (this *World) Open(ctx context.Context, config *mysql.ConnectionConfig) (mysql.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	this.mutex.Lock()
	defer this.mutex.Unlock()
	server, ok := this.servers[config.Key.StringCode()]
	if !ok || server.UnknownHost {
		return nil, &net.DNSError{Err: "no such host", Name: config.Key.Hostname, IsNotFound: true}
	}
	if server.Unreachable {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}
	}
	user := server.findUser(config.User, "%")
	if user == nil || user.Password != config.Password {
		return nil, &drivermysql.MySQLError{Number: 1045, Message: fmt.Sprintf("Access denied for user '%s'@'localhost' (using password: YES)", config.User)}
	}
	return &fakeConn{world: this, server: server}, nil
}

type fakeConn struct {
	world  *World
	server *FakeServer
	closed bool
	locked bool
}

func (this *fakeConn) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	this.world.mutex.Lock()
	defer this.world.mutex.Unlock()
	if this.closed || this.server.Unreachable {
		return ErrServerGone
	}
	return nil
}

func (this *fakeConn) Close() error {
	this.world.mutex.Lock()
	defer this.world.mutex.Unlock()
	if this.locked {
		this.server.readLocked = false
		this.locked = false
	}
	this.closed = true
	return nil
}

func (this *fakeConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	return this.QueryRowsMap(ctx, query, func(sqlutils.RowMap) error { return nil }, args...)
}

func (this *fakeConn) QueryRowsMap(ctx context.Context, query string, onRow func(sqlutils.RowMap) error, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := this.execute(query, args)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := onRow(row); err != nil {
			return err
		}
	}
	return nil
}

func normalizeStatement(query string) string {
	query = commentRegexp.ReplaceAllString(query, " ")
	query = spacesRegexp.ReplaceAllString(query, " ")
	return strings.TrimSuffix(strings.TrimSpace(query), ";")
}

func argString(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	return fmt.Sprint(args[i])
}

func row(keyValues ...string) sqlutils.RowMap {
	m := sqlutils.RowMap{}
	for i := 0; i+1 < len(keyValues); i += 2 {
		m[keyValues[i]] = sqlutils.CellData{String: keyValues[i+1], Valid: true}
	}
	return m
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func boolInt(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func likeMatch(pattern string, value string) bool {
	expression := "^" + strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(pattern)), "%", ".*") + "$"
	matched, _ := regexp.MatchString(expression, strings.ToLower(value))
	return matched
}

func (this *fakeConn) execute(query string, args []interface{}) ([]sqlutils.RowMap, error) {
	this.world.mutex.Lock()
	defer this.world.mutex.Unlock()

	server := this.server
	if this.closed || server.Unreachable {
		return nil, ErrServerGone
	}
	this.world.sync()

	statement := normalizeStatement(query)
	lower := strings.ToLower(statement)
	server.statements = append(server.statements, lower)
	for prefix, err := range server.Failures {
		if strings.HasPrefix(lower, prefix) {
			return nil, err
		}
	}
	term := func(term string) string {
		return mysql.ReplicaTermFor(server.Version, term)
	}
	is := func(prefixes ...string) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
		}
		return false
	}

	switch {
	case is("show global variables"):
		return server.variableRows(args), nil
	case is("show global status"):
		rows := []sqlutils.RowMap{}
		status := map[string]string{"Uptime": "3600", "Threads_connected": "3", "Slave_open_temp_tables": "0"}
		for name, value := range status {
			if len(args) == 0 || likeMatch(argString(args, 0), name) {
				rows = append(rows, row("Variable_name", name, "Value", value))
			}
		}
		return rows, nil
	case is("show slave status", "show replica status"):
		return server.slaveStatusRows(term), nil
	case is("show master status", "show binary log status"):
		if !server.LogBin {
			return nil, nil
		}
		return []sqlutils.RowMap{row("File", server.BinlogFile, "Position", fmt.Sprint(server.BinlogPos),
			"Binlog_Do_DB", server.BinlogDoDB, "Binlog_Ignore_DB", server.BinlogIgnoreDB,
			"Executed_Gtid_Set", server.GTIDExecuted)}, nil
	case is("show slave hosts", "show replicas"):
		return this.world.slaveHostRows(server, term), nil
	case is("show binary logs"):
		if !server.LogBin {
			return nil, &drivermysql.MySQLError{Number: 1381, Message: "You are not using binary logging"}
		}
		return []sqlutils.RowMap{row("Log_name", server.BinlogFile, "File_size", fmt.Sprint(server.BinlogPos))}, nil
	case is("show engines"):
		rows := []sqlutils.RowMap{}
		names := []string{}
		for name := range server.Engines {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, row("Engine", name, "Support", server.Engines[name]))
		}
		return rows, nil
	case is("show databases"):
		rows := []sqlutils.RowMap{}
		names := []string{}
		for name := range server.Databases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, row("Database", name))
		}
		return rows, nil
	case is("show grants for"):
		user := server.findUser(argString(args, 0), argString(args, 1))
		if user == nil {
			return nil, &drivermysql.MySQLError{Number: 1141, Message: fmt.Sprintf("There is no such grant defined for user '%s' on host '%s'", argString(args, 0), argString(args, 1))}
		}
		grant := fmt.Sprintf("GRANT USAGE ON *.* TO `%s`@`%s`", user.Name, user.Host)
		if user.ReplSlave {
			grant = fmt.Sprintf("GRANT REPLICATION SLAVE ON *.* TO `%s`@`%s`", user.Name, user.Host)
		}
		return []sqlutils.RowMap{row(fmt.Sprintf("Grants for %s@%s", user.Name, user.Host), grant)}, nil
	case is("select user, host from mysql.user"):
		rows := []sqlutils.RowMap{}
		for _, user := range server.Users {
			if user.ReplSlave {
				rows = append(rows, row("user", user.Name, "host", user.Host))
			}
		}
		return rows, nil
	case is("select count(*) as user_count from mysql.user"):
		return []sqlutils.RowMap{row("user_count", boolInt(server.hasUser(argString(args, 0), argString(args, 1))))}, nil
	case is("create user"):
		if server.hasUser(argString(args, 0), argString(args, 1)) {
			return nil, &drivermysql.MySQLError{Number: 1396, Message: fmt.Sprintf("Operation CREATE USER failed for '%s'@'%s'", argString(args, 0), argString(args, 1))}
		}
		server.Users = append(server.Users, &User{Name: argString(args, 0), Host: argString(args, 1), Password: argString(args, 2)})
		return nil, nil
	case is("grant replication slave"):
		user := server.findUser(argString(args, 0), argString(args, 1))
		if user == nil {
			return nil, &drivermysql.MySQLError{Number: 1410, Message: "You are not allowed to create a user with GRANT"}
		}
		user.ReplSlave = true
		return nil, nil
	case is("select gtid_subset"):
		contains, err := mysql.GTIDSetContains(argString(args, 1), argString(args, 0))
		if err != nil {
			return nil, &drivermysql.MySQLError{Number: 1772, Message: "Malformed GTID set specification"}
		}
		return []sqlutils.RowMap{row("is_subset", boolInt(contains))}, nil
	case is("select gtid_subtract"):
		missing, err := mysql.GTIDSetSubtract(argString(args, 0), argString(args, 1))
		if err != nil {
			return nil, &drivermysql.MySQLError{Number: 1772, Message: "Malformed GTID set specification"}
		}
		return []sqlutils.RowMap{row("missing", missing)}, nil
	case is("select") && strings.Contains(lower, "from mysql.slave_master_info"):
		return server.masterInfoRows(), nil
	case is("flush tables with read lock"):
		server.readLocked = true
		this.locked = true
		return nil, nil
	case is("unlock tables"):
		if this.locked {
			server.readLocked = false
			this.locked = false
		}
		return nil, nil
	case is("set global read_only"):
		server.ReadOnly = argString(args, 0) == "1" || strings.EqualFold(argString(args, 0), "ON")
		if !server.ReadOnly {
			server.SuperReadOnly = false
		}
		return nil, nil
	case is("set global super_read_only"):
		server.SuperReadOnly = argString(args, 0) == "1" || strings.EqualFold(argString(args, 0), "ON")
		if server.SuperReadOnly {
			server.ReadOnly = true
		}
		return nil, nil
	case is("start slave", "start replica"):
		if !server.Slave.IsConfigured() {
			return nil, &drivermysql.MySQLError{Number: 1200, Message: "The server is not configured as slave; fix in config file or with CHANGE MASTER TO"}
		}
		if !strings.HasSuffix(lower, "sql_thread") {
			server.Slave.IORunning = true
		}
		if !strings.HasSuffix(lower, "io_thread") {
			server.Slave.SQLRunning = true
		}
		this.world.sync()
		return nil, nil
	case is("stop slave", "stop replica"):
		if !strings.HasSuffix(lower, "sql_thread") {
			server.Slave.IORunning = false
		}
		if !strings.HasSuffix(lower, "io_thread") {
			server.Slave.SQLRunning = false
		}
		return nil, nil
	case is("reset slave", "reset replica"):
		if server.Slave.IORunning || server.Slave.SQLRunning {
			return nil, &drivermysql.MySQLError{Number: 1198, Message: "This operation cannot be performed with a running slave; run STOP SLAVE first"}
		}
		if strings.HasSuffix(lower, " all") {
			server.Slave = SlaveState{}
		} else {
			server.Slave.MasterLogFile = ""
			server.Slave.ReadPos = 0
			server.Slave.ExecPos = 0
			server.Slave.RetrievedGTIDs = ""
		}
		return nil, nil
	case is("reset master", "reset binary logs and gtids"):
		server.BinlogFile = "mysql-bin.000001"
		server.BinlogPos = 4
		server.GTIDExecuted = ""
		server.GTIDPurged = ""
		return nil, nil
	case is("change master to", "change replication source to"):
		return nil, server.changeMaster(statement)
	case is("create database"):
		server.Databases[databaseName(statement)] = true
		server.commit(server.ServerUUID)
		return nil, nil
	case is("drop database"):
		delete(server.Databases, databaseName(statement))
		server.commit(server.ServerUUID)
		return nil, nil
	case is("select 1"):
		return []sqlutils.RowMap{row("1", "1")}, nil
	}
	return nil, &drivermysql.MySQLError{Number: 1064, Message: fmt.Sprintf("You have an error in your SQL syntax near '%s'", statement)}
}

func databaseName(statement string) string {
	tokens := strings.Fields(statement)
	return strings.Trim(tokens[len(tokens)-1], "`")
}

func (this *SlaveState) IsConfigured() bool {
	return this.MasterHost != ""
}

func (this *FakeServer) variables() map[string]string {
	variables := map[string]string{
		"server_id":                fmt.Sprint(this.ServerID),
		"server_uuid":              this.ServerUUID,
		"version":                  this.Version,
		"version_comment":          "MySQL Community Server - GPL",
		"hostname":                 this.Key.Hostname,
		"port":                     fmt.Sprint(this.Key.Port),
		"log_bin":                  onOff(this.LogBin),
		"gtid_mode":                this.GTIDMode,
		"enforce_gtid_consistency": onOff(this.gtidOn()),
		"gtid_executed":            this.GTIDExecuted,
		"gtid_purged":              this.GTIDPurged,
		"gtid_owned":               "",
		"read_only":                onOff(this.ReadOnly),
		"super_read_only":          onOff(this.SuperReadOnly),
		"lower_case_table_names":   fmt.Sprint(this.LowerCaseTableNames),
		"report_host":              this.ReportHost,
		"report_port":              fmt.Sprint(this.ReportPort),
		"innodb_version":           this.InnoDBVersion,
		"have_ssl":                 this.HaveSSL,
	}
	if this.MasterInfoRepository != "" {
		variables["master_info_repository"] = this.MasterInfoRepository
	}
	variables[mysql.ReplicaTermFor(this.Version, "log_slave_updates")] = onOff(this.LogSlaveUpdates)
	return variables
}

func (this *FakeServer) variableRows(args []interface{}) []sqlutils.RowMap {
	variables := this.variables()
	names := []string{}
	for name := range variables {
		if len(args) == 0 || likeMatch(argString(args, 0), name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	rows := []sqlutils.RowMap{}
	for _, name := range names {
		rows = append(rows, row("Variable_name", name, "Value", variables[name]))
	}
	return rows
}

func (this *FakeServer) slaveStatusRows(term func(string) string) []sqlutils.RowMap {
	if !this.Slave.IsConfigured() {
		return nil
	}
	ioRunning, ioState := this.ioThreadState()
	sqlRunning := "No"
	secondsBehind := ""
	if this.Slave.SQLRunning {
		sqlRunning = "Yes"
		secondsBehind = "0"
		if this.Lagging || this.SecondsBehind > 0 {
			secondsBehind = fmt.Sprint(this.SecondsBehind)
		}
	}
	executed := ""
	if this.gtidOn() {
		executed = this.GTIDExecuted
	}
	m := row(
		term("Slave_IO_State"), ioState,
		term("Master_Host"), this.Slave.MasterHost,
		term("Master_User"), this.Slave.MasterUser,
		term("Master_Port"), fmt.Sprint(this.Slave.MasterPort),
		term("Master_Log_File"), this.Slave.MasterLogFile,
		term("Read_Master_Log_Pos"), fmt.Sprint(this.Slave.ReadPos),
		term("Relay_Master_Log_File"), this.Slave.MasterLogFile,
		term("Exec_Master_Log_Pos"), fmt.Sprint(this.Slave.ExecPos),
		term("Slave_IO_Running"), ioRunning,
		term("Slave_SQL_Running"), sqlRunning,
		term("Master_Server_Id"), fmt.Sprint(this.Slave.masterServerID),
		term("Master_UUID"), this.Slave.masterUUID,
		term("Master_SSL_Allowed"), map[bool]string{true: "Yes", false: "No"}[this.Slave.SSLCA != "" || this.Slave.SSLCert != ""],
		term("Master_SSL_CA_File"), this.Slave.SSLCA,
		term("Master_SSL_Cert"), this.Slave.SSLCert,
		term("Master_SSL_Key"), this.Slave.SSLKey,
		term("Master_SSL_Cipher"), this.Slave.SSLCipher,
		"Last_IO_Errno", fmt.Sprint(this.Slave.LastIOErrno),
		"Last_IO_Error", this.Slave.LastIOError,
		"Last_SQL_Errno", fmt.Sprint(this.Slave.LastSQLErrno),
		"Last_SQL_Error", this.Slave.LastSQLError,
		"Replicate_Do_DB", this.Slave.ReplicateDoDB,
		"Replicate_Ignore_DB", this.Slave.ReplicateIgnoreDB,
		"Retrieved_Gtid_Set", this.Slave.RetrievedGTIDs,
		"Executed_Gtid_Set", executed,
		"Auto_Position", boolInt(this.Slave.AutoPosition),
	)
	m[term("Seconds_Behind_Master")] = sqlutils.CellData{String: secondsBehind, Valid: secondsBehind != ""}
	return []sqlutils.RowMap{m}
}

func (this *World) slaveHostRows(master *FakeServer, term func(string) string) []sqlutils.RowMap {
	rows := []sqlutils.RowMap{}
	keys := []string{}
	for key := range this.servers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		server := this.servers[key]
		if server.Unreachable || server.ReportHost == "" || this.masterOf(server) != master {
			continue
		}
		if running, _ := server.ioThreadState(); running != "Yes" {
			continue
		}
		rows = append(rows, row("Server_id", fmt.Sprint(server.ServerID), "Host", server.ReportHost,
			"Port", fmt.Sprint(server.ReportPort), term("Master_id"), fmt.Sprint(master.ServerID)))
	}
	for i, key := range master.ExtraSlaveHosts {
		rows = append(rows, row("Server_id", fmt.Sprint(1000+i), "Host", key.Hostname,
			"Port", fmt.Sprint(key.Port), term("Master_id"), fmt.Sprint(master.ServerID)))
	}
	return rows
}

func (this *FakeServer) masterInfoRows() []sqlutils.RowMap {
	if !this.Slave.IsConfigured() {
		return nil
	}
	return []sqlutils.RowMap{row(
		"Host", this.Slave.MasterHost,
		"Port", fmt.Sprint(this.Slave.MasterPort),
		"User_name", this.Slave.MasterUser,
		"User_password", this.Slave.MasterPassword,
		"Master_log_name", this.Slave.MasterLogFile,
		"Master_log_pos", fmt.Sprint(this.Slave.ReadPos),
		"Ssl_ca", this.Slave.SSLCA,
		"Ssl_cert", this.Slave.SSLCert,
		"Ssl_key", this.Slave.SSLKey,
		"Ssl_cipher", this.Slave.SSLCipher,
		"Enabled_auto_position", boolInt(this.Slave.AutoPosition),
	)}
}

func (this *FakeServer) changeMaster(statement string) error {
	if this.Slave.IORunning || this.Slave.SQLRunning {
		return &drivermysql.MySQLError{Number: 1198, Message: "This operation cannot be performed with a running slave; run STOP SLAVE first"}
	}
	lower := strings.ToLower(statement)
	optionsText := statement[len("change master to"):]
	if strings.HasPrefix(lower, "change replication source to") {
		optionsText = statement[len("change replication source to"):]
	}
	options, err := sql.ParseOptionsStatement(optionsText)
	if err != nil {
		return &drivermysql.MySQLError{Number: 1064, Message: err.Error()}
	}
	previousHost := this.Slave.MasterHost
	previousPort := this.Slave.MasterPort
	for name, value := range options {
		name = strings.Replace(name, "SOURCE_", "MASTER_", 1)
		switch name {
		case "MASTER_HOST":
			this.Slave.MasterHost = value
		case "MASTER_PORT":
			fmt.Sscan(value, &this.Slave.MasterPort)
		case "MASTER_USER":
			this.Slave.MasterUser = value
		case "MASTER_PASSWORD":
			this.Slave.MasterPassword = value
		case "MASTER_LOG_FILE":
			this.Slave.MasterLogFile = value
		case "MASTER_LOG_POS":
			fmt.Sscan(value, &this.Slave.ReadPos)
			this.Slave.ExecPos = this.Slave.ReadPos
		case "MASTER_AUTO_POSITION":
			this.Slave.AutoPosition = value == "1"
			if this.Slave.AutoPosition && !this.gtidOn() {
				return &drivermysql.MySQLError{Number: 1777, Message: "CHANGE MASTER TO MASTER_AUTO_POSITION = 1 cannot be executed because @@GLOBAL.GTID_MODE = OFF"}
			}
		case "MASTER_SSL_CA":
			this.Slave.SSLCA = value
		case "MASTER_SSL_CERT":
			this.Slave.SSLCert = value
		case "MASTER_SSL_KEY":
			this.Slave.SSLKey = value
		case "MASTER_SSL_CIPHER":
			this.Slave.SSLCipher = value
		case "MASTER_SSL", "MASTER_CONNECT_RETRY":
		default:
			return &drivermysql.MySQLError{Number: 1064, Message: fmt.Sprintf("Unknown option %s", name)}
		}
	}
	if this.Slave.MasterHost != previousHost || this.Slave.MasterPort != previousPort {
		this.Slave.RetrievedGTIDs = ""
		this.Slave.masterServerID = 0
		this.Slave.masterUUID = ""
	}
	return nil
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	drivermysql "github.com/go-sql-driver/mysql"
	version "github.com/hashicorp/go-version"
	"github.com/openark/golib/log"
	"github.com/openark/golib/sqlutils"
)

var errNotConnected = errors.New("not connected")

// Server is a handle on a single MySQL server. The live connection is owned
// exclusively by the handle; administrative calls require Connect() first.
type Server struct {
	ConnectRetries       int
	ConnectRetryInterval time.Duration

	config *ConnectionConfig
	driver Driver

	mutex   sync.Mutex
	conn    Conn
	role    string
	version string
}

func NewServer(config *ConnectionConfig, driver Driver) *Server {
	return &Server{
		ConnectRetryInterval: time.Second,
		config:               config,
		driver:               driver,
	}
}

func (this *Server) Key() InstanceKey {
	return this.config.Key
}

func (this *Server) Config() *ConnectionConfig {
	return this.config
}

func (this *Server) Role() string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.role
}

func (this *Server) SetRole(role string) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.role = role
}

func (this *Server) String() string {
	return this.config.Key.DisplayString()
}

// SameServerAs returns true when both handles address the same host, port and socket
func (this *Server) SameServerAs(other *Server) bool {
	if other == nil {
		return false
	}
	return this.config.Equals(other.config)
}

func (this *Server) IsConnected() bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.conn != nil
}

// Connect opens the connection, retrying transient failures. Server-side rejections
// such as access denied are not retried.
func (this *Server) Connect(ctx context.Context) error {
	if this.IsConnected() {
		return nil
	}
	operation := func() error {
		conn, err := this.driver.Open(ctx, this.config)
		if err == nil {
			this.mutex.Lock()
			this.conn = conn
			this.mutex.Unlock()
			return nil
		}
		if isPermanentConnectError(err) {
			return backoff.Permanent(err)
		}
		log.Debugf("Connect to %+v failed, retrying: %+v", this.config.Key, err)
		return err
	}
	retryPolicy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(this.ConnectRetryInterval), uint64(this.ConnectRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, retryPolicy); err != nil {
		return NewConnectionError(this.config.Key, err)
	}
	serverVersion, _, err := this.GetVariable(ctx, "version")
	if err != nil {
		this.Disconnect()
		return err
	}
	this.mutex.Lock()
	this.version = serverVersion
	this.mutex.Unlock()
	log.Debugf("Connected to %+v, version %s", this.config.Key, serverVersion)
	return nil
}

func isPermanentConnectError(err error) bool {
	var mysqlError *drivermysql.MySQLError
	if errors.As(err, &mysqlError) {
		return true
	}
	var queryError *QueryError
	if errors.As(err, &queryError) {
		return true
	}
	var dnsError *net.DNSError
	if errors.As(err, &dnsError) && dnsError.IsNotFound {
		return true
	}
	return false
}

// Disconnect releases the connection. It is safe to call more than once.
func (this *Server) Disconnect() error {
	this.mutex.Lock()
	conn := this.conn
	this.conn = nil
	this.mutex.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// IsAlive pings the server; it never returns an error
func (this *Server) IsAlive(ctx context.Context) bool {
	conn := this.getConn()
	if conn == nil {
		return false
	}
	if err := conn.Ping(ctx); err != nil {
		log.Debugf("%+v is not alive: %+v", this.config.Key, err)
		return false
	}
	return true
}

func (this *Server) getConn() Conn {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.conn
}

// QueryRowsMap runs a query and calls onRow for each row, in server order
func (this *Server) QueryRowsMap(ctx context.Context, query string, onRow func(sqlutils.RowMap) error, args ...interface{}) error {
	conn := this.getConn()
	if conn == nil {
		return NewConnectionError(this.config.Key, errNotConnected)
	}
	log.Debugf("%+v: %s", this.config.Key, query)
	return translateDriverError(this.config.Key, query, conn.QueryRowsMap(ctx, query, onRow, args...))
}

// Query runs a query and returns all rows, in server order
func (this *Server) Query(ctx context.Context, query string, args ...interface{}) ([]sqlutils.RowMap, error) {
	rows := []sqlutils.RowMap{}
	err := this.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		rows = append(rows, m)
		return nil
	}, args...)
	return rows, err
}

// Exec executes a statement that returns no rows
func (this *Server) Exec(ctx context.Context, query string, args ...interface{}) error {
	conn := this.getConn()
	if conn == nil {
		return NewConnectionError(this.config.Key, errNotConnected)
	}
	log.Debugf("%+v: %s", this.config.Key, query)
	return translateDriverError(this.config.Key, query, conn.Exec(ctx, query, args...))
}

// ShowVariable returns the rows of `show global variables like <name>`
func (this *Server) ShowVariable(ctx context.Context, name string) ([]sqlutils.RowMap, error) {
	return this.Query(ctx, `show /* gh-rpl */ global variables like ?`, name)
}

// GetVariable returns the value of a single global variable, and whether the server has it at all
func (this *Server) GetVariable(ctx context.Context, name string) (value string, found bool, err error) {
	rows, err := this.ShowVariable(ctx, name)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].GetString("Value"), true, nil
}

// Status returns the rows of `show global status like <pattern>`
func (this *Server) Status(ctx context.Context, pattern string) ([]sqlutils.RowMap, error) {
	if pattern == "" {
		pattern = "%"
	}
	return this.Query(ctx, `show /* gh-rpl */ global status like ?`, pattern)
}

// Version returns the server version cached at connect time
func (this *Server) Version() string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.version
}

// VersionTriple returns the cached (major, minor, patch) version numbers
func (this *Server) VersionTriple() (major, minor, patch int, err error) {
	vs, err := ParseServerVersion(this.Version())
	if err != nil {
		return 0, 0, 0, err
	}
	segments := vs.Segments()
	for len(segments) < 3 {
		segments = append(segments, 0)
	}
	return segments[0], segments[1], segments[2], nil
}

// VersionAtLeast compares the cached server version with minimum, e.g. "5.6.5"
func (this *Server) VersionAtLeast(minimum string) bool {
	vs, err := ParseServerVersion(this.Version())
	if err != nil {
		return false
	}
	minimumVersion, err := version.NewVersion(minimum)
	if err != nil {
		return false
	}
	return vs.GreaterThanOrEqual(minimumVersion)
}

// Term returns the replication vocabulary appropriate for this server's version
func (this *Server) Term(term string) string {
	return ReplicaTermFor(this.Version(), term)
}

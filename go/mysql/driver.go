/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"context"
	gosql "database/sql"

	"github.com/openark/golib/sqlutils"
)

// Driver opens connections to MySQL servers
type Driver interface {
	Open(ctx context.Context, config *ConnectionConfig) (Conn, error)
}

// Conn is a single live session with a server
type Conn interface {
	QueryRowsMap(ctx context.Context, query string, onRow func(sqlutils.RowMap) error, args ...interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) error
	Ping(ctx context.Context) error
	Close() error
}

type sqlDriver struct{}

// NewSQLDriver returns a Driver backed by database/sql and go-sql-driver/mysql
func NewSQLDriver() Driver {
	return &sqlDriver{}
}

func (this *sqlDriver) Open(ctx context.Context, config *ConnectionConfig) (Conn, error) {
	db, err := gosql.Open("mysql", config.GetDBUri(""))
	if err != nil {
		return nil, err
	}
	// One session per handle: FLUSH TABLES WITH READ LOCK and UNLOCK TABLES must share it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}
	return &sqlConn{db: db, conn: conn}, nil
}

type sqlConn struct {
	db   *gosql.DB
	conn *gosql.Conn
}

func (this *sqlConn) QueryRowsMap(ctx context.Context, query string, onRow func(sqlutils.RowMap) error, args ...interface{}) error {
	rows, err := this.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := sqlutils.ScanRowsToMaps(rows, onRow); err != nil {
		return err
	}
	return rows.Err()
}

func (this *sqlConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := this.conn.ExecContext(ctx, query, args...)
	return err
}

func (this *sqlConn) Ping(ctx context.Context) error {
	return this.conn.PingContext(ctx)
}

func (this *sqlConn) Close() error {
	connErr := this.conn.Close()
	if err := this.db.Close(); err != nil {
		return err
	}
	return connErr
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"sync"

	"github.com/openark/golib/sqlutils"

	"github.com/github/gh-rpl/go/mysql"
)

// MasterInfoValues is what a slave has recorded about the master it replicates from.
// A zero Host means the slave is not configured.
type MasterInfoValues struct {
	Host         string
	Port         int
	User         string
	Password     string
	LogFile      string
	LogPos       int64
	AutoPosition bool
	SSL          SSLOptions
}

// MasterInfo reads a slave's master info from wherever the server keeps it: the
// mysql.slave_master_info table, or for file based repositories the SHOW SLAVE STATUS
// columns (which do not expose the password).
type MasterInfo struct {
	server *mysql.Server

	mutex  sync.Mutex
	values *MasterInfoValues
}

func NewMasterInfo(server *mysql.Server) *MasterInfo {
	return &MasterInfo{server: server}
}

// Read returns the master info, reading the server only when nothing is cached
func (this *MasterInfo) Read(ctx context.Context) (*MasterInfoValues, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.values != nil {
		values := *this.values
		return &values, nil
	}
	serverInfo, err := mysql.GetServerInfo(ctx, this.server)
	if err != nil {
		return nil, err
	}
	var values *MasterInfoValues
	if serverInfo.MasterInfoInTable() {
		values, err = this.readTable(ctx)
	} else {
		values, err = this.readSlaveStatus(ctx)
	}
	if err != nil {
		return nil, err
	}
	this.values = values
	cached := *values
	return &cached, nil
}

// Invalidate drops cached values; the next Read goes to the server
func (this *MasterInfo) Invalidate() {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.values = nil
}

func (this *MasterInfo) readTable(ctx context.Context) (*MasterInfoValues, error) {
	values := &MasterInfoValues{}
	query := `select /* gh-rpl */
			Host, Port, User_name, User_password, Master_log_name, Master_log_pos,
			Ssl_ca, Ssl_cert, Ssl_key, Ssl_cipher, Enabled_auto_position
		from mysql.slave_master_info
		where Channel_name = ''`
	err := this.server.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		values = &MasterInfoValues{
			Host:         m.GetString("Host"),
			Port:         m.GetInt("Port"),
			User:         m.GetString("User_name"),
			Password:     m.GetString("User_password"),
			LogFile:      m.GetString("Master_log_name"),
			LogPos:       m.GetInt64("Master_log_pos"),
			AutoPosition: m.GetString("Enabled_auto_position") == "1",
			SSL: SSLOptions{
				CA:     m.GetString("Ssl_ca"),
				Cert:   m.GetString("Ssl_cert"),
				Key:    m.GetString("Ssl_key"),
				Cipher: m.GetString("Ssl_cipher"),
			},
		}
		return nil
	})
	return values, err
}

func (this *MasterInfo) readSlaveStatus(ctx context.Context) (*MasterInfoValues, error) {
	status, err := mysql.ReadSlaveStatus(ctx, this.server)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return &MasterInfoValues{}, nil
	}
	return &MasterInfoValues{
		Host:         status.MasterHost,
		Port:         status.MasterPort,
		User:         status.MasterUser,
		LogFile:      status.MasterLogFile,
		LogPos:       status.ReadMasterLogPos,
		AutoPosition: status.AutoPosition,
		SSL: SSLOptions{
			CA:     status.SSLCA,
			Cert:   status.SSLCert,
			Key:    status.SSLKey,
			Cipher: status.SSLCipher,
		},
	}, nil
}

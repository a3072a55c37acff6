/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"context"
	"fmt"

	"github.com/openark/golib/log"
	"github.com/openark/golib/sqlutils"
)

// GetMasterKeyFromSlaveStatus returns the key of the server's master, or nil if it has none
func GetMasterKeyFromSlaveStatus(ctx context.Context, server *Server) (masterKey *InstanceKey, err error) {
	status, err := ReadSlaveStatus(ctx, server)
	if err != nil {
		return nil, err
	}
	// An empty log file indicates this is a master
	if status == nil || status.MasterLogFile == "" {
		return nil, nil
	}
	key := status.MasterKey()
	if !key.IsValid() {
		return nil, nil
	}
	return &key, nil
}

// GetTopologyMaster walks up the replication chain from the given server until it reaches a server
// that replicates from no one, and returns that server's config. The walk is iterative and keeps
// its own visited set; a loop in the chain is a master-master (or circular) setup.
func GetTopologyMaster(ctx context.Context, config *ConnectionConfig, driver Driver, allowMasterMaster bool) (*ConnectionConfig, error) {
	visitedKeys := NewInstanceKeyMap()
	visitedKeys.AddKey(config.Key)

	current := config
	for {
		log.Debugf("Looking for master on %+v", current.Key)
		masterKey, err := func() (*InstanceKey, error) {
			server := NewServer(current, driver)
			if err := server.Connect(ctx); err != nil {
				return nil, err
			}
			defer server.Disconnect()
			return GetMasterKeyFromSlaveStatus(ctx, server)
		}()
		if err != nil {
			return nil, err
		}
		if masterKey == nil {
			return current, nil
		}
		log.Debugf("Master of %+v is %+v", current.Key, *masterKey)
		if visitedKeys.HasKey(*masterKey) {
			if allowMasterMaster {
				return current, nil
			}
			return nil, fmt.Errorf("There seems to be a master-master setup at %+v. This is unsupported. Bailing out", *masterKey)
		}
		visitedKeys.AddKey(*masterKey)
		current = current.DuplicateCredentials(*masterKey)
	}
}

// GetBinaryLogs lists the server's binary log files, oldest first
func GetBinaryLogs(ctx context.Context, server *Server) (logs []string, err error) {
	err = server.QueryRowsMap(ctx, `show /* gh-rpl */ binary logs`, func(m sqlutils.RowMap) error {
		logs = append(logs, m.GetString("Log_name"))
		return nil
	})
	return logs, err
}

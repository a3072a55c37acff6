/*
   Copyright 2022 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
)

var (
	testMysqlContainerImage = "mysql:8.0.40"
	testMysqlUser           = "root"
	testMysqlPass           = "root-password"
	testMysqlRplUser        = "rpl"
	testMysqlRplPass        = "rpl-password"
)

// getTestConnectionConfig returns the config of a container as reached from the test process
func getTestConnectionConfig(ctx context.Context, container testcontainers.Container) (*mysql.ConnectionConfig, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, err
	}

	connectionConfig := mysql.NewConnectionConfig()
	connectionConfig.Key.Hostname = host
	connectionConfig.Key.Port = port.Int()
	connectionConfig.User = testMysqlUser
	connectionConfig.Password = testMysqlPass

	return connectionConfig, nil
}

// newTestTopologyContext returns a context with short waits and no connect retries
func newTestTopologyContext() *base.TopologyContext {
	topologyContext := base.NewTopologyContext()
	topologyContext.ConnectRetries = 0
	topologyContext.PollInterval = time.Millisecond
	topologyContext.PingTimeout = time.Second
	topologyContext.SetupMaxTries = 50
	topologyContext.SetTimeout(time.Second)
	topologyContext.SetInterval(50 * time.Millisecond)
	topologyContext.SetSwitchoverInterval(time.Second)
	return topologyContext
}

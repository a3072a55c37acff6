/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	drivermysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/mysql/mysqltest"
)

func TestServerConnect(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)

	server := mysql.NewServer(world.Config(db1), world)
	require.False(t, server.IsConnected())
	require.False(t, server.IsAlive(ctx))

	require.NoError(t, server.Connect(ctx))
	require.True(t, server.IsConnected())
	require.True(t, server.IsAlive(ctx))
	require.Equal(t, "8.0.36", server.Version())
	require.True(t, server.VersionAtLeast("5.6.5"))
	require.False(t, server.VersionAtLeast("8.4"))
	require.Equal(t, "slave status", server.Term("slave status"))

	major, minor, patch, err := server.VersionTriple()
	require.NoError(t, err)
	require.Equal(t, []int{8, 0, 36}, []int{major, minor, patch})

	require.NoError(t, server.Disconnect())
	require.NoError(t, server.Disconnect())
	require.False(t, server.IsConnected())

	_, err = server.Query(ctx, "show databases")
	require.True(t, mysql.IsConnectionError(err))
}

func TestServerConnectFailures(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db1.Unreachable = true

	server := mysql.NewServer(world.Config(db1), world)
	server.ConnectRetries = 2
	server.ConnectRetryInterval = time.Millisecond
	err := server.Connect(ctx)
	require.Error(t, err)
	var connectionError *mysql.ConnectionError
	require.True(t, errors.As(err, &connectionError))
	require.Equal(t, "db1", connectionError.Key.Hostname)
	require.False(t, server.IsConnected())

	config := world.Config(db1)
	config.Key.Hostname = "nowhere"
	err = mysql.NewServer(config, world).Connect(ctx)
	require.True(t, mysql.IsConnectionError(err))

	db2 := world.AddServer("db2", 3306, 2)
	config = world.Config(db2)
	config.Password = "wrong"
	err = mysql.NewServer(config, world).Connect(ctx)
	require.True(t, mysql.IsConnectionError(err))
	var driverError *drivermysql.MySQLError
	require.True(t, errors.As(err, &driverError))
	require.Equal(t, uint16(1045), driverError.Number)
}

func TestServerQueryError(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db1.Failures["show binary logs"] = &drivermysql.MySQLError{Number: 1227, Message: "Access denied; you need (at least one of) the SUPER, REPLICATION CLIENT privilege(s) for this operation"}

	server := mysql.NewServer(world.Config(db1), world)
	require.NoError(t, server.Connect(ctx))
	defer server.Disconnect()

	_, err := mysql.GetBinaryLogs(ctx, server)
	var queryError *mysql.QueryError
	require.True(t, errors.As(err, &queryError))
	require.Equal(t, 1227, queryError.Code)
	require.Equal(t, "Access denied; you need (at least one of) the SUPER, REPLICATION CLIENT privilege(s) for this operation", queryError.Message)
}

func TestServerVariables(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 7)

	server := mysql.NewServer(world.Config(db1), world)
	require.NoError(t, server.Connect(ctx))
	defer server.Disconnect()

	value, found, err := server.GetVariable(ctx, "server_id")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "7", value)

	_, found, err = server.GetVariable(ctx, "no_such_variable")
	require.NoError(t, err)
	require.False(t, found)

	rows, err := server.ShowVariable(ctx, "gtid_%")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	status, err := server.Status(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, status)

	info, err := mysql.GetServerInfo(ctx, server)
	require.NoError(t, err)
	require.Equal(t, uint64(7), info.ServerID)
	require.True(t, info.GTIDEnabled())
	require.Equal(t, db1.ServerUUID, info.ServerUUID)
}

func TestServerIdentity(t *testing.T) {
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db2 := world.AddServer("db2", 3306, 2)

	s1 := mysql.NewServer(world.Config(db1), world)
	s1Again := mysql.NewServer(world.Config(db1), world)
	s2 := mysql.NewServer(world.Config(db2), world)
	require.True(t, s1.SameServerAs(s1Again))
	require.False(t, s1.SameServerAs(s2))
	require.False(t, s1.SameServerAs(nil))

	s1.SetRole("master")
	require.Equal(t, "master", s1.Role())
	require.Equal(t, "db1:3306", s1.String())
}

func TestReadSlaveStatus(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db2 := world.AddServer("db2", 3306, 2)
	world.Replicate(db2, db1)
	world.Commit(db1, 3)

	master := mysql.NewServer(world.Config(db1), world)
	require.NoError(t, master.Connect(ctx))
	defer master.Disconnect()
	slave := mysql.NewServer(world.Config(db2), world)
	require.NoError(t, slave.Connect(ctx))
	defer slave.Disconnect()

	status, err := mysql.ReadSlaveStatus(ctx, master)
	require.NoError(t, err)
	require.Nil(t, status)

	status, err = mysql.ReadSlaveStatus(ctx, slave)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.True(t, status.IsConfigured())
	require.True(t, status.IOThreadRunning())
	require.True(t, status.SQLThreadRunning())
	require.True(t, status.IsWaitingForEvents())
	require.Equal(t, "db1:3306", status.MasterKey().StringCode())
	require.True(t, status.AutoPosition)

	require.True(t, status.ReadCoordinates().Equals(status.ExecCoordinates()))
	require.True(t, status.SecondsBehindMaster.Valid)
	require.Equal(t, int64(0), status.SecondsBehindMaster.Int64)

	masterKey, err := mysql.GetMasterKeyFromSlaveStatus(ctx, slave)
	require.NoError(t, err)
	require.Equal(t, "db1:3306", masterKey.StringCode())

	topologyMaster, err := mysql.GetTopologyMaster(ctx, world.Config(db2), world, false)
	require.NoError(t, err)
	require.Equal(t, "db1:3306", topologyMaster.Key.StringCode())
}

func TestReadSlaveStatusReplicaTerminology(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db2 := world.AddServer("db2", 3306, 2)
	db1.Version = "8.4.3"
	db2.Version = "8.4.3"
	world.Replicate(db2, db1)

	slave := mysql.NewServer(world.Config(db2), world)
	require.NoError(t, slave.Connect(ctx))
	defer slave.Disconnect()

	status, err := mysql.ReadSlaveStatus(ctx, slave)
	require.NoError(t, err)
	require.Equal(t, "db1", status.MasterHost)
	require.True(t, status.IOThreadRunning())
	require.True(t, status.SecondsBehindMaster.Valid)
	require.True(t, world.Executed(db2, "show replica status"))
}

func TestGetTopologyMasterMasterMaster(t *testing.T) {
	ctx := context.Background()
	world := mysqltest.NewWorld()
	db1 := world.AddServer("db1", 3306, 1)
	db2 := world.AddServer("db2", 3306, 2)
	world.Replicate(db2, db1)
	world.Replicate(db1, db2)

	_, err := mysql.GetTopologyMaster(ctx, world.Config(db2), world, false)
	require.Error(t, err)

	master, err := mysql.GetTopologyMaster(ctx, world.Config(db2), world, true)
	require.NoError(t, err)
	require.Equal(t, "db1:3306", master.Key.StringCode())
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/mysql/mysqltest"
)

func TestTopologyFailover(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		world.Commit(db1, 2)
		db1.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.ConnectWithoutMaster(ctx))

		change, err := topology.Failover(ctx, nil, false)
		require.NoError(t, err)
		require.Equal(t, "db1", change.OldMaster.Hostname)
		require.Equal(t, "db2", change.NewMaster.Hostname)
		require.Empty(t, change.FailedSlaves)

		require.Equal(t, "db2", topology.Master().Key().Hostname)
		require.Len(t, topology.Slaves(), 1)
		require.Empty(t, db2.Slave.MasterHost)
		require.False(t, db2.ReadOnly)
		require.Equal(t, "db2", db3.Slave.MasterHost)
		require.True(t, db3.Slave.IORunning)
	})

	t.Run("catch-up-from-peer", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		world.Lock()
		db2.Slave.IORunning = false
		world.Unlock()
		world.Commit(db1, 3)
		db1.Unreachable = true

		contains, err := mysql.GTIDSetContains(db2.GTIDExecuted, db1.GTIDExecuted)
		require.NoError(t, err)
		require.False(t, contains)

		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.ConnectWithoutMaster(ctx))

		change, err := topology.Failover(ctx, []*mysql.ConnectionConfig{world.Config(db2)}, true)
		require.NoError(t, err)
		require.Equal(t, "db2", change.NewMaster.Hostname)

		contains, err = mysql.GTIDSetContains(db2.GTIDExecuted, db1.GTIDExecuted)
		require.NoError(t, err)
		require.True(t, contains)
		require.True(t, world.Executed(db2, "change master to master_host = 'db3'"))
		require.Equal(t, "db2", db3.Slave.MasterHost)
	})

	t.Run("master-alive", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))

		change, err := topology.Failover(ctx, []*mysql.ConnectionConfig{world.Config(db3)}, true)
		require.NoError(t, err)
		require.Equal(t, "db3", change.NewMaster.Hostname)
		require.Equal(t, "db3", db2.Slave.MasterHost)
	})

	t.Run("no-candidate", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db4 := world.AddServer("db4", 3306, 4)
		db1.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.ConnectWithoutMaster(ctx))

		_, err := topology.Failover(ctx, []*mysql.ConnectionConfig{world.Config(db4)}, true)
		require.Equal(t, mysql.CheckConnected, mysql.ReplicationCheckOf(err))
		require.Equal(t, "db1", db2.Slave.MasterHost)
	})

	t.Run("no-slaves", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db1.Unreachable = true
		db2.Unreachable = true
		db3.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)

		_, err := topology.Failover(ctx, nil, false)
		require.Equal(t, mysql.CheckConnected, mysql.ReplicationCheckOf(err))
	})

	t.Run("gtid-off", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db1.Unreachable = true
		db3.GTIDMode = "OFF"
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.ConnectWithoutMaster(ctx))

		_, err := topology.Failover(ctx, nil, false)
		require.Equal(t, mysql.CheckGTID, mysql.ReplicationCheckOf(err))
		require.False(t, world.Executed(db2, "reset slave"))
	})
	t.Run("untracked-candidate-gtid-off", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db4 := world.AddServer("db4", 3306, 4)
		db4.GTIDMode = "OFF"
		db4.Users = append(db4.Users, &mysqltest.User{Name: "rpl", Host: "%", Password: "rplpass", ReplSlave: true})
		db1.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.ConnectWithoutMaster(ctx))

		_, err := topology.Failover(ctx, []*mysql.ConnectionConfig{world.Config(db4)}, true)
		require.Equal(t, mysql.CheckGTID, mysql.ReplicationCheckOf(err))
		require.False(t, world.Executed(db4, "reset slave"))
		require.Equal(t, "db1", db2.Slave.MasterHost)
		require.Equal(t, "db1", db3.Slave.MasterHost)
	})

	t.Run("health-after-failover", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		world.Commit(db1, 2)
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		world.Lock()
		db1.Unreachable = true
		world.Unlock()

		change, err := topology.Failover(ctx, []*mysql.ConnectionConfig{world.Config(db2), world.Config(db3)}, false)
		require.NoError(t, err)
		require.Equal(t, "db2", change.NewMaster.Hostname)

		_, rows, err := topology.GetHealth(ctx)
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"db2", "3306", "MASTER", "UP", "ON", "OK"},
			{"db3", "3306", "SLAVE", "UP", "ON", "OK"},
		}, rows)
	})
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/github/gh-rpl/go/mysql"
	"github.com/github/gh-rpl/go/mysql/mysqltest"
)

// newTestReplicaSet returns a master, db1, with two slaves, db2 and db3
func newTestReplicaSet() (world *mysqltest.World, db1, db2, db3 *mysqltest.FakeServer) {
	world = mysqltest.NewWorld()
	db1 = world.AddServer("db1", 3306, 1)
	db2 = world.AddServer("db2", 3306, 2)
	db3 = world.AddServer("db3", 3306, 3)
	world.Replicate(db2, db1)
	world.Replicate(db3, db1)
	return world, db1, db2, db3
}

func newTestTopology(t *testing.T, world *mysqltest.World, master *mysqltest.FakeServer, slaves ...*mysqltest.FakeServer) *Topology {
	slaveConfigs := []*mysql.ConnectionConfig{}
	for _, slave := range slaves {
		slaveConfigs = append(slaveConfigs, world.Config(slave))
	}
	topology, err := NewTopology(newTestTopologyContext(), world.Config(master), slaveConfigs, world)
	require.NoError(t, err)
	t.Cleanup(topology.Close)
	return topology
}

func TestNewTopology(t *testing.T) {
	world, db1, db2, _ := newTestReplicaSet()
	topologyContext := newTestTopologyContext()

	_, err := NewTopology(topologyContext, world.Config(db1), []*mysql.ConnectionConfig{world.Config(db2), world.Config(db2)}, world)
	require.Error(t, err)

	_, err = NewTopology(topologyContext, world.Config(db1), []*mysql.ConnectionConfig{world.Config(db1)}, world)
	require.Error(t, err)

	topology, err := NewTopology(topologyContext, nil, []*mysql.ConnectionConfig{world.Config(db2)}, world)
	require.NoError(t, err)
	require.Nil(t, topology.MasterConfig())
	require.Len(t, topology.Slaves(), 1)
}

func TestTopologyConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable-slave", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db3.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		require.NotNil(t, topology.Master())
		require.Equal(t, "master", topology.Master().Role())

		slaves := topology.Slaves()
		require.NotNil(t, slaves[0].Server)
		require.Nil(t, slaves[1].Server)
		require.Len(t, topology.reachableSlaves(ctx), 1)
	})

	t.Run("unreachable-master", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db1.Unreachable = true
		topology := newTestTopology(t, world, db1, db2, db3)
		require.True(t, mysql.IsConnectionError(topology.Connect(ctx)))

		require.NoError(t, topology.ConnectWithoutMaster(ctx))
		require.Nil(t, topology.Master())
		require.Len(t, topology.reachableSlaves(ctx), 2)
	})

	t.Run("nothing-reachable", func(t *testing.T) {
		world, db1, db2, _ := newTestReplicaSet()
		db1.Unreachable = true
		db2.Unreachable = true
		topology := newTestTopology(t, world, db1, db2)
		require.Error(t, topology.ConnectWithoutMaster(ctx))
	})
}

func TestTopologyDiscoverSlaves(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, _ := newTestReplicaSet()
	world.AddServer("db4", 3306, 4)
	db1.ExtraSlaveHosts = []mysql.InstanceKey{
		{Hostname: "nowhere", Port: 3306},
		{Hostname: "db4", Port: 3306},
	}

	topology := newTestTopology(t, world, db1, db2)
	require.NoError(t, topology.Connect(ctx))

	discovered, err := topology.DiscoverSlaves(ctx)
	require.NoError(t, err)
	require.Len(t, discovered, 1)
	require.Equal(t, "db3", discovered[0].Key.Hostname)
	require.True(t, discovered[0].Discovered)
	require.NotNil(t, discovered[0].Server)

	slaves := topology.Slaves()
	require.Len(t, slaves, 2)
	require.False(t, slaves[0].Discovered)

	discovered, err = topology.DiscoverSlaves(ctx)
	require.NoError(t, err)
	require.Len(t, discovered, 0)

	_, err = newTestTopology(t, world, db1).DiscoverSlaves(ctx)
	require.ErrorIs(t, err, ErrNoMaster)
}

func TestTopologyDiscoverSlavesUnknownHost(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, db3 := newTestReplicaSet()
	db4 := world.AddServer("db4", 3306, 4)
	world.Replicate(db4, db1)
	db4.UnknownHost = true

	topology := newTestTopology(t, world, db1)
	require.NoError(t, topology.Connect(ctx))

	discovered, err := topology.DiscoverSlaves(ctx)
	require.NoError(t, err)
	require.Len(t, discovered, 2)
	hostnames := []string{}
	for _, slave := range discovered {
		hostnames = append(hostnames, slave.Key.Hostname)
		require.True(t, slave.Discovered)
	}
	require.ElementsMatch(t, []string{db2.Key.Hostname, db3.Key.Hostname}, hostnames)
	require.Len(t, topology.Slaves(), 2)
}

func TestTopologyMap(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, db3 := newTestReplicaSet()
	db4 := world.AddServer("db4", 3306, 4)
	world.Replicate(db4, db3)
	db4.ExtraSlaveHosts = []mysql.InstanceKey{{Hostname: "db1", Port: 3306}}
	db1.ExtraSlaveHosts = []mysql.InstanceKey{{Hostname: "db9", Port: 3306}}

	topology := newTestTopology(t, world, db1, db2)
	require.NoError(t, topology.Connect(ctx))

	root, err := topology.Map(ctx)
	require.NoError(t, err)
	require.Len(t, root.Children, 3)
	require.Equal(t, 2, root.Children[1].Children[0].Depth)
	require.Equal(t, []string{
		"db1:3306 (MASTER)",
		"+--- db2:3306",
		"+--- db3:3306",
		"   +--- db4:3306",
		"      +--- db1:3306 <-- circular",
		"+--- db9:3306 (unreachable)",
	}, RenderMap(root))
}

func TestTopologyGetHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db3, db2)
		require.NoError(t, topology.Connect(ctx))

		columns, rows, err := topology.GetHealth(ctx)
		require.NoError(t, err)
		require.Equal(t, healthColumns, columns)
		require.Equal(t, [][]string{
			{"db1", "3306", "MASTER", "UP", "ON", "OK"},
			{"db2", "3306", "SLAVE", "UP", "ON", "OK"},
			{"db3", "3306", "SLAVE", "UP", "ON", "OK"},
		}, rows)
	})

	t.Run("unreachable-slave", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))

		world.Lock()
		db3.Unreachable = true
		world.Unlock()
		_, rows, err := topology.GetHealth(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"db3", "3306", "SLAVE", "DOWN", "", "Cannot connect"}, rows[2])
	})

	t.Run("unreachable-master", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))

		world.Lock()
		db1.Unreachable = true
		world.Unlock()
		_, rows, err := topology.GetHealth(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"db1", "3306", "MASTER", "DOWN", "", "Cannot connect"}, rows[0])
		require.Equal(t, "IO thread is not running.", rows[1][5])
	})

	t.Run("verbose", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db3.Lagging = true
		db3.SecondsBehind = 7
		world.Commit(db1, 2)

		topology := newTestTopology(t, world, db1, db2, db3)
		topology.topologyContext.Verbose = true
		topology.topologyContext.SetMaxDelay(10)
		require.NoError(t, topology.Connect(ctx))

		columns, rows, err := topology.GetHealth(ctx)
		require.NoError(t, err)
		require.Len(t, columns, len(healthColumns)+len(verboseHealthColumns))
		require.Len(t, rows, 3)
		require.Equal(t, "8.0.36", rows[0][6])
		require.Equal(t, "mysql-bin.000001", rows[0][7])
		require.Equal(t, "0", rows[1][16])
		require.Equal(t, "Yes", rows[1][9])
		require.Equal(t, "Yes", rows[1][10])
		require.Equal(t, "0", rows[1][12])
		require.Equal(t, "", rows[1][13])
		require.Equal(t, "OK", rows[2][5])
		require.Equal(t, "7", rows[2][11])
		require.Equal(t, "2", rows[2][16])
	})
}

func TestTopologyReports(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, db3 := newTestReplicaSet()
	world.Commit(db1, 1200)
	topology := newTestTopology(t, world, db1, db2, db3)
	require.NoError(t, topology.Connect(ctx))

	columns, rows, err := topology.GetGTIDReport(ctx)
	require.NoError(t, err)
	require.Equal(t, gtidColumns, columns)
	require.Len(t, rows, 3)
	require.Equal(t, "1,200", rows[0][4])
	require.Equal(t, "1,200", rows[1][4])

	columns, rows, err = topology.GetUUIDReport(ctx)
	require.NoError(t, err)
	require.Equal(t, uuidColumns, columns)
	require.Equal(t, []string{"db1", "3306", "MASTER", db1.ServerUUID}, rows[0])

	world.Lock()
	db2.GTIDMode = "OFF"
	world.Unlock()
	_, _, err = topology.GetGTIDReport(ctx)
	require.Equal(t, mysql.CheckGTID, mysql.ReplicationCheckOf(err))
}

func TestTopologyCheckCandidateEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("eligible", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		require.NoError(t, topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true))
		require.NoError(t, topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], false))
	})

	t.Run("filters", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db2.BinlogDoDB = "app"
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		err := topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true)
		require.Equal(t, mysql.CheckFilters, mysql.ReplicationCheckOf(err))

		topology.topologyContext.Force = true
		require.NoError(t, topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true))
	})

	t.Run("replicate-filters", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db3.Slave.ReplicateDoDB = "only_this_db"
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		require.NoError(t, topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true))
		err := topology.CheckCandidateEligibility(ctx, topology.Slaves()[1], true)
		require.Equal(t, mysql.CheckFilters, mysql.ReplicationCheckOf(err))

		world.Lock()
		db3.Slave.ReplicateDoDB = ""
		db3.Slave.ReplicateIgnoreDB = "scratch"
		world.Unlock()
		err = topology.CheckCandidateEligibility(ctx, topology.Slaves()[1], true)
		require.Equal(t, mysql.CheckFilters, mysql.ReplicationCheckOf(err))

		topology.topologyContext.Force = true
		require.NoError(t, topology.CheckCandidateEligibility(ctx, topology.Slaves()[1], true))
	})

	t.Run("gtid", func(t *testing.T) {
		world, db1, db2, db3 := newTestReplicaSet()
		db3.GTIDMode = "OFF"
		topology := newTestTopology(t, world, db1, db2, db3)
		require.NoError(t, topology.Connect(ctx))
		err := topology.CheckCandidateEligibility(ctx, topology.Slaves()[1], true)
		require.Equal(t, mysql.CheckGTID, mysql.ReplicationCheckOf(err))
	})

	t.Run("behind", func(t *testing.T) {
		world := mysqltest.NewWorld()
		db1 := world.AddServer("db1", 3306, 1)
		db2 := world.AddServer("db2", 3306, 2)
		db1.GTIDMode = "OFF"
		db2.GTIDMode = "OFF"
		world.Replicate(db2, db1)
		db2.SecondsBehind = 5

		topology := newTestTopology(t, world, db1, db2)
		require.NoError(t, topology.Connect(ctx))
		err := topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true)
		require.Equal(t, mysql.CheckBehind, mysql.ReplicationCheckOf(err))

		db2.SecondsBehind = 0
		db2.LogBin = false
		err = topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], true)
		require.Equal(t, mysql.CheckBinlog, mysql.ReplicationCheckOf(err))
	})

	t.Run("not-a-slave", func(t *testing.T) {
		world, db1, db2, _ := newTestReplicaSet()
		db4 := world.AddServer("db4", 3306, 4)
		topology := newTestTopology(t, world, db1, db2)
		require.NoError(t, topology.Connect(ctx))

		descriptor, tracked, err := topology.candidateDescriptor(ctx, world.Config(db4))
		require.NoError(t, err)
		require.False(t, tracked)
		defer descriptor.Server.Disconnect()

		err = topology.CheckCandidateEligibility(ctx, descriptor, true)
		require.Equal(t, mysql.CheckConnected, mysql.ReplicationCheckOf(err))

		err = topology.CheckCandidateEligibility(ctx, descriptor, false)
		require.Equal(t, mysql.CheckRplUser, mysql.ReplicationCheckOf(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		world, db1, db2, _ := newTestReplicaSet()
		topology := newTestTopology(t, world, db1, db2)
		require.NoError(t, topology.Connect(ctx))
		world.Lock()
		db2.Unreachable = true
		world.Unlock()
		err := topology.CheckCandidateEligibility(ctx, topology.Slaves()[0], false)
		require.Equal(t, mysql.CheckConnected, mysql.ReplicationCheckOf(err))
	})
}

func TestTopologyFindBestSlave(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, db3 := newTestReplicaSet()
	db4 := world.AddServer("db4", 3306, 4)
	topology := newTestTopology(t, world, db1, db2, db3)
	require.NoError(t, topology.Connect(ctx))

	best, err := topology.FindBestSlave(ctx, []*mysql.ConnectionConfig{world.Config(db3)}, true, true)
	require.NoError(t, err)
	require.Equal(t, "db3", best.Key.Hostname)

	candidates := []*mysql.ConnectionConfig{world.Config(db1), world.Config(db4)}
	best, err = topology.FindBestSlave(ctx, candidates, true, false)
	require.NoError(t, err)
	require.Equal(t, "db2", best.Key.Hostname)

	best, err = topology.FindBestSlave(ctx, candidates, true, true)
	require.NoError(t, err)
	require.Nil(t, best)

	best, err = topology.Elect(ctx, nil, false)
	require.NoError(t, err)
	require.Equal(t, "db2", best.Key.Hostname)

	world.Lock()
	db2.Unreachable = true
	world.Unlock()
	best, err = topology.Elect(ctx, nil, false)
	require.NoError(t, err)
	require.Equal(t, "db3", best.Key.Hostname)
}

func TestTopologyRunCmdOnSlaves(t *testing.T) {
	ctx := context.Background()
	world, db1, db2, db3 := newTestReplicaSet()
	topology := newTestTopology(t, world, db1, db2, db3)
	require.NoError(t, topology.Connect(ctx))

	require.Error(t, topology.RunCmdOnSlaves(ctx, "restart"))

	require.NoError(t, topology.RunCmdOnSlaves(ctx, SlaveStopCommand))
	require.True(t, world.Executed(db2, "stop slave"))
	require.False(t, db2.Slave.IORunning)
	require.False(t, db3.Slave.SQLRunning)

	require.NoError(t, topology.RunCmdOnSlaves(ctx, SlaveStartCommand))
	require.True(t, db2.Slave.IORunning)
	require.True(t, db3.Slave.SQLRunning)

	world.Lock()
	db3.Unreachable = true
	world.Unlock()
	require.NoError(t, topology.RunCmdOnSlaves(ctx, SlaveResetCommand))
	require.True(t, world.Executed(db2, "reset slave"))
	require.False(t, world.Executed(db3, "reset slave"))
	require.False(t, db2.Slave.IORunning)
	require.Equal(t, "db1", db2.Slave.MasterHost)

	world.Lock()
	db3.Unreachable = false
	db2.Failures["start slave"] = errors.New("boom")
	world.Unlock()
	require.NoError(t, topology.RunCmdOnSlaves(ctx, SlaveStopCommand))
	err := topology.RunCmdOnSlaves(ctx, SlaveStartCommand)
	require.Error(t, err)
	require.Contains(t, err.Error(), "start on db2:3306")
	require.NotContains(t, err.Error(), "db3")
	require.False(t, db2.Slave.IORunning)
	require.True(t, db3.Slave.IORunning)
	require.True(t, db3.Slave.SQLRunning)
}

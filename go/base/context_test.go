/*
   Copyright 2022 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package base

import (
	"os"
	"testing"
	"time"

	"github.com/openark/golib/log"
	test "github.com/openark/golib/tests"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ERROR)
}

func writeConfigFile(t *testing.T, content string) string {
	f, err := os.CreateTemp("", "gh-rpl-test-")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(f.Name()) })
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestNewTopologyContext(t *testing.T) {
	context := NewTopologyContext()
	test.S(t).ExpectEquals(context.GetTimeout(), DefaultTimeout)
	test.S(t).ExpectEquals(context.GetInterval(), DefaultInterval)
	test.S(t).ExpectEquals(context.GetSwitchoverInterval(), DefaultSwitchoverInterval)
	test.S(t).ExpectEquals(context.GetMaxDelay(), int64(0))
	test.S(t).ExpectEquals(context.OutputFormat, GridOutputFormat)
	test.S(t).ExpectEquals(len(context.Uuid), 36)
	test.S(t).ExpectNotNil(context.Log)

	test.S(t).ExpectNotNil(context.SetTimeout(0))
	test.S(t).ExpectNotNil(context.SetMaxDelay(-1))
	test.S(t).ExpectNotNil(context.SetMaxPosition(-1))
	test.S(t).ExpectNotNil(context.SetInterval(-time.Second))
	test.S(t).ExpectNotNil(context.SetSwitchoverInterval(0))
	test.S(t).ExpectNil(context.SetInterval(5 * time.Second))
	test.S(t).ExpectEquals(context.GetInterval(), 5*time.Second)
}

func TestReadReportValues(t *testing.T) {
	context := NewTopologyContext()
	test.S(t).ExpectNil(context.ReadReportValues("health, GTID,uuid"))
	test.S(t).ExpectEquals(len(context.ReportValues), 3)
	test.S(t).ExpectEquals(context.ReportValues[1], GTIDReportValue)

	test.S(t).ExpectNotNil(context.ReadReportValues("health,lag"))
	test.S(t).ExpectNotNil(context.ReadReportValues(" , "))
	test.S(t).ExpectEquals(len(context.ReportValues), 3)
}

func TestReadRplUser(t *testing.T) {
	context := NewTopologyContext()
	test.S(t).ExpectNil(context.ReadRplUser("rpl:pass:word"))
	context.ApplyCredentials()
	test.S(t).ExpectEquals(context.RplUser, "rpl")
	test.S(t).ExpectEquals(context.GetRplPassword(), "pass:word")

	test.S(t).ExpectNotNil(context.ReadRplUser(":secret"))
}

func TestReadConfigFile(t *testing.T) {
	os.Setenv("GH_RPL_TEST_PASSWORD", "from-env")
	defer os.Unsetenv("GH_RPL_TEST_PASSWORD")

	context := NewTopologyContext()
	context.ConfigFile = writeConfigFile(t, `
[client]
user = admin
password = ${GH_RPL_TEST_PASSWORD}

[replication]
user = rpl
password = rplpass

[topology]
timeout = 30
ping = 1.5
max_delay = 10
max_position = 500
interval = 5s
switchover_interval = 2m

[hooks]
path = /etc/gh-rpl/hooks
exec_after = /usr/local/bin/notify
`)
	require.NoError(t, context.ReadConfigFile())

	context.ApplyCredentials()
	require.Equal(t, "admin", context.ConnectionConfig.User)
	require.Equal(t, "from-env", context.ConnectionConfig.Password)
	require.Equal(t, "rpl", context.RplUser)
	require.Equal(t, "rplpass", context.GetRplPassword())

	context.ApplyConfig(func(flagName string) bool { return flagName == "max-delay" })
	require.Equal(t, 30*time.Second, context.GetTimeout())
	require.Equal(t, 1500*time.Millisecond, context.PingTimeout)
	require.Equal(t, int64(0), context.GetMaxDelay())
	require.Equal(t, int64(500), context.GetMaxPosition())
	require.Equal(t, 5*time.Second, context.GetInterval())
	require.Equal(t, 2*time.Minute, context.GetSwitchoverInterval())
	require.Equal(t, "/etc/gh-rpl/hooks", context.HooksPath)
	require.Equal(t, "", context.ExecBefore)
	require.Equal(t, "/usr/local/bin/notify", context.ExecAfter)
}

func TestApplyCredentialsCliOverride(t *testing.T) {
	context := NewTopologyContext()
	context.ConfigFile = writeConfigFile(t, "[client]\nuser = admin\npassword = filepass\n")
	require.NoError(t, context.ReadConfigFile())

	context.CliUser = "operator"
	context.SetCliPassword("clipass")
	context.ApplyCredentials()
	require.Equal(t, "operator", context.ConnectionConfig.User)
	require.Equal(t, "clipass", context.ConnectionConfig.Password)
}

func TestReadConfigFileErrors(t *testing.T) {
	{
		context := NewTopologyContext()
		require.NoError(t, context.ReadConfigFile())
	}
	{
		context := NewTopologyContext()
		context.ConfigFile = "/nonexistent/gh-rpl.cnf"
		require.Error(t, context.ReadConfigFile())
	}
	{
		context := NewTopologyContext()
		context.ConfigFile = writeConfigFile(t, "[topology]\ntimeout = soon\n")
		require.Error(t, context.ReadConfigFile())
	}
}

func TestPointOfInterest(t *testing.T) {
	context := NewTopologyContext()
	context.MarkPointOfInterest()
	require.True(t, context.TimeSincePointOfInterest() < time.Minute)
	require.True(t, context.ElapsedTime() >= 0)
}

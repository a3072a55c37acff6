/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"testing"

	"github.com/openark/golib/log"
	test "github.com/openark/golib/tests"
)

func init() {
	log.SetLevel(log.ERROR)
}

func TestNewConnectionConfig(t *testing.T) {
	c := NewConnectionConfig()
	test.S(t).ExpectEquals(c.Key.Hostname, "")
	test.S(t).ExpectEquals(c.Key.Port, 0)
	test.S(t).ExpectEquals(c.User, "")
	test.S(t).ExpectEquals(c.Password, "")
	test.S(t).ExpectEquals(c.Timeout, DefaultTimeout)
	test.S(t).ExpectTrue(c.TLSConfig() == nil)
}

func TestDuplicateCredentials(t *testing.T) {
	c := NewConnectionConfig()
	c.Key = InstanceKey{Hostname: "myhost", Port: 3306}
	c.Socket = "/tmp/mysql.sock"
	c.User = "gromit"
	c.Password = "penguin"

	dup := c.DuplicateCredentials(InstanceKey{Hostname: "otherhost", Port: 3310})
	test.S(t).ExpectEquals(dup.Key.Hostname, "otherhost")
	test.S(t).ExpectEquals(dup.Key.Port, 3310)
	test.S(t).ExpectEquals(dup.Socket, "")
	test.S(t).ExpectEquals(dup.User, "gromit")
	test.S(t).ExpectEquals(dup.Password, "penguin")
}

func TestDuplicate(t *testing.T) {
	c := NewConnectionConfig()
	c.Key = InstanceKey{Hostname: "myhost", Port: 3306}
	c.Socket = "/tmp/mysql.sock"
	c.User = "gromit"
	c.Password = "penguin"

	dup := c.Duplicate()
	test.S(t).ExpectEquals(dup.Key.Hostname, "myhost")
	test.S(t).ExpectEquals(dup.Key.Port, 3306)
	test.S(t).ExpectEquals(dup.Socket, "/tmp/mysql.sock")
	test.S(t).ExpectEquals(dup.User, "gromit")
	test.S(t).ExpectEquals(dup.Password, "penguin")
	test.S(t).ExpectTrue(dup.Equals(c))
	test.S(t).ExpectFalse(dup.Equals(c.DuplicateCredentials(c.Key)))
	test.S(t).ExpectFalse(dup.Equals(nil))
}

func TestGetDBUri(t *testing.T) {
	c := NewConnectionConfig()
	c.Key = InstanceKey{Hostname: "myhost", Port: 3306}
	c.User = "gromit"
	c.Password = "penguin"
	c.Timeout = 1.2345

	uri := c.GetDBUri("test")
	test.S(t).ExpectEquals(uri, "gromit:penguin@tcp(myhost:3306)/test?autocommit=true&interpolateParams=true&charset=utf8mb4,utf8,latin1&tls=false&timeout=1.234500s&readTimeout=1.234500s&writeTimeout=1.234500s")
}

func TestGetDBUriWithIPv6(t *testing.T) {
	c := NewConnectionConfig()
	c.Key = InstanceKey{Hostname: "::1", Port: 3306}
	c.User = "gromit"
	c.Password = "penguin"
	c.Timeout = 1

	uri := c.GetDBUri("")
	test.S(t).ExpectEquals(uri, "gromit:penguin@tcp([::1]:3306)/?autocommit=true&interpolateParams=true&charset=utf8mb4,utf8,latin1&tls=false&timeout=1.000000s&readTimeout=1.000000s&writeTimeout=1.000000s")
}

func TestGetDBUriWithSocket(t *testing.T) {
	c := NewConnectionConfig()
	c.Key = InstanceKey{Hostname: "localhost", Port: 3306}
	c.Socket = "/var/run/mysqld/mysqld.sock"
	c.User = "gromit"
	c.Password = "penguin"
	c.Timeout = 1

	uri := c.GetDBUri("")
	test.S(t).ExpectEquals(uri, "gromit:penguin@unix(/var/run/mysqld/mysqld.sock)/?autocommit=true&interpolateParams=true&charset=utf8mb4,utf8,latin1&tls=false&timeout=1.000000s&readTimeout=1.000000s&writeTimeout=1.000000s")
}

func TestParseConnectionConfig(t *testing.T) {
	defaults := NewConnectionConfig()
	defaults.User = "root"
	defaults.Password = "secret"
	{
		c, err := ParseConnectionConfig("db1:3307", defaults)
		test.S(t).ExpectNil(err)
		test.S(t).ExpectEquals(c.Key.Hostname, "db1")
		test.S(t).ExpectEquals(c.Key.Port, 3307)
		test.S(t).ExpectEquals(c.User, "root")
		test.S(t).ExpectEquals(c.Password, "secret")
	}
	{
		c, err := ParseConnectionConfig("gromit:pen:guin@db1", defaults)
		test.S(t).ExpectNil(err)
		test.S(t).ExpectEquals(c.Key.Hostname, "db1")
		test.S(t).ExpectEquals(c.Key.Port, DefaultInstancePort)
		test.S(t).ExpectEquals(c.User, "gromit")
		test.S(t).ExpectEquals(c.Password, "pen:guin")
	}
	{
		c, err := ParseConnectionConfig("gromit@localhost:3306:/tmp/mysql.sock", nil)
		test.S(t).ExpectNil(err)
		test.S(t).ExpectEquals(c.Key.Hostname, "localhost")
		test.S(t).ExpectEquals(c.Socket, "/tmp/mysql.sock")
		test.S(t).ExpectEquals(c.User, "gromit")
		test.S(t).ExpectEquals(c.Password, "")
	}
	{
		_, err := ParseConnectionConfig("  ", defaults)
		test.S(t).ExpectNotNil(err)
	}
}

func TestParseConnectionConfigs(t *testing.T) {
	configs, err := ParseConnectionConfigs("db1:3306, db2:3307,,db3", nil)
	test.S(t).ExpectNil(err)
	test.S(t).ExpectEquals(len(configs), 3)
	test.S(t).ExpectEquals(configs[1].Key.StringCode(), "db2:3307")
	test.S(t).ExpectEquals(configs[2].Key.StringCode(), "db3:3306")

	_, err = ParseConnectionConfigs("db1:3306,db2:notaport", nil)
	test.S(t).ExpectNotNil(err)
}

/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"testing"

	"github.com/openark/golib/log"
	test "github.com/openark/golib/tests"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ERROR)
}

func TestBinlogCoordinates(t *testing.T) {
	c1 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	c2 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	c3 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 5000}
	c4 := BinlogCoordinates{LogFile: "mysql-bin.00112", LogPos: 104}

	require.True(t, c1.Equals(&c2))
	require.False(t, c1.Equals(&c3))
	require.False(t, c1.Equals(&c4))
	require.False(t, c1.SmallerThan(&c2))
	require.True(t, c1.SmallerThan(&c3))
	require.True(t, c1.SmallerThan(&c4))
	require.True(t, c3.SmallerThan(&c4))
	require.False(t, c3.SmallerThan(&c2))
	require.False(t, c4.SmallerThan(&c2))
	require.False(t, c4.SmallerThan(&c3))
	require.True(t, c1.SmallerThanOrEquals(&c2))
	require.True(t, c1.SmallerThanOrEquals(&c3))
}

func TestParseBinlogCoordinates(t *testing.T) {
	{
		coordinates, err := ParseBinlogCoordinates("mysql-bin.000017:4321")
		test.S(t).ExpectNil(err)
		test.S(t).ExpectEquals(coordinates.LogFile, "mysql-bin.000017")
		test.S(t).ExpectEquals(coordinates.LogPos, int64(4321))
		test.S(t).ExpectEquals(coordinates.DisplayString(), "mysql-bin.000017:4321")
	}
	{
		_, err := ParseBinlogCoordinates("mysql-bin.000017")
		test.S(t).ExpectNotNil(err)
	}
	{
		_, err := ParseBinlogCoordinates("mysql-bin.000017:abc")
		test.S(t).ExpectNotNil(err)
	}
}

func TestBinlogFileNumber(t *testing.T) {
	c1 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	fileNum, numLen := c1.FileNumber()
	test.S(t).ExpectEquals(fileNum, 17)
	test.S(t).ExpectEquals(numLen, 5)

	c2 := BinlogCoordinates{LogFile: "mysql.00.prod.com.00100", LogPos: 104}
	fileNum, numLen = c2.FileNumber()
	test.S(t).ExpectEquals(fileNum, 100)
	test.S(t).ExpectEquals(numLen, 5)
}

func TestBinlogPositionDrift(t *testing.T) {
	c1 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	c2 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 5104}
	c3 := BinlogCoordinates{LogFile: "mysql-bin.00018", LogPos: 4}

	test.S(t).ExpectEquals(c1.PositionDrift(&c2), int64(5000))
	test.S(t).ExpectEquals(c2.PositionDrift(&c2), int64(0))
	test.S(t).ExpectEquals(c1.PositionDrift(&c3), int64(-1))
}

func TestBinlogCoordinatesAsKey(t *testing.T) {
	m := make(map[BinlogCoordinates]bool)

	c1 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	c2 := BinlogCoordinates{LogFile: "mysql-bin.00022", LogPos: 104}
	c3 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 104}
	c4 := BinlogCoordinates{LogFile: "mysql-bin.00017", LogPos: 222}

	m[c1] = true
	m[c2] = true
	m[c3] = true
	m[c4] = true

	require.Len(t, m, 3)
}

func TestGTIDSetContains(t *testing.T) {
	executed := "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-100,\n8c5a1f2e-71ca-11e1-9e33-c80aa9429562:1-5"
	{
		contains, err := GTIDSetContains(executed, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-50")
		require.NoError(t, err)
		require.True(t, contains)
	}
	{
		contains, err := GTIDSetContains(executed, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-101")
		require.NoError(t, err)
		require.False(t, contains)
	}
	{
		contains, err := GTIDSetContains(executed, "")
		require.NoError(t, err)
		require.True(t, contains)
	}
	{
		_, err := GTIDSetContains(executed, "not-a-gtid-set")
		require.Error(t, err)
	}
}

func TestGTIDTransactionCount(t *testing.T) {
	count, err := GTIDTransactionCount("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-100:200-209,8c5a1f2e-71ca-11e1-9e33-c80aa9429562:7")
	require.NoError(t, err)
	require.Equal(t, int64(111), count)

	count, err = GTIDTransactionCount("")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestGTIDSetSourceUUIDs(t *testing.T) {
	uuids, err := GTIDSetSourceUUIDs("8c5a1f2e-71ca-11e1-9e33-c80aa9429562:7, 3e11fa47-71ca-11e1-9e33-c80aa9429562:1-3")
	require.NoError(t, err)
	require.Equal(t, []string{"3e11fa47-71ca-11e1-9e33-c80aa9429562", "8c5a1f2e-71ca-11e1-9e33-c80aa9429562"}, uuids)
}

func TestGTIDSetUnion(t *testing.T) {
	union, err := GTIDSetUnion("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-10", "3e11fa47-71ca-11e1-9e33-c80aa9429562:5-20,8c5a1f2e-71ca-11e1-9e33-c80aa9429562:1")
	require.NoError(t, err)
	require.Equal(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-20,8c5a1f2e-71ca-11e1-9e33-c80aa9429562:1", union)

	union, err = GTIDSetUnion("", "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-3")
	require.NoError(t, err)
	require.Equal(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-3", union)
}

func TestGTIDSetSubtract(t *testing.T) {
	{
		missing, err := GTIDSetSubtract("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-20,8c5a1f2e-71ca-11e1-9e33-c80aa9429562:1-2", "3e11fa47-71ca-11e1-9e33-c80aa9429562:5-9:15")
		require.NoError(t, err)
		require.Equal(t, "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-4:10-14:16-20,8c5a1f2e-71ca-11e1-9e33-c80aa9429562:1-2", missing)
	}
	{
		missing, err := GTIDSetSubtract("3e11fa47-71ca-11e1-9e33-c80aa9429562:1-20", "3e11fa47-71ca-11e1-9e33-c80aa9429562:1-30")
		require.NoError(t, err)
		require.Equal(t, "", missing)
	}
}

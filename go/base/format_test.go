/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package base

import (
	"bytes"
	"strings"
	"testing"

	test "github.com/openark/golib/tests"
)

var (
	formatColumns = []string{"host", "port", "role", "health"}
	formatRows    = [][]string{
		{"db1", "3306", "MASTER", "OK"},
		{"db2", "3306", "SLAVE", "IO thread is not running, Slave delay is 12 seconds behind master"},
	}
)

func TestParseOutputFormat(t *testing.T) {
	for _, format := range []string{"grid", "CSV", " tab ", "vertical"} {
		_, err := ParseOutputFormat(format)
		test.S(t).ExpectNil(err)
	}
	_, err := ParseOutputFormat("json")
	test.S(t).ExpectNotNil(err)
}

func TestPrintResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := PrintResults(&buf, CSVOutputFormat, formatColumns, formatRows)
	test.S(t).ExpectNil(err)
	expected := "host,port,role,health\ndb1,3306,MASTER,OK\ndb2,3306,SLAVE,\"IO thread is not running, Slave delay is 12 seconds behind master\"\n"
	test.S(t).ExpectEquals(buf.String(), expected)
}

func TestPrintResultsTab(t *testing.T) {
	var buf bytes.Buffer
	err := PrintResults(&buf, TabOutputFormat, formatColumns, formatRows[:1])
	test.S(t).ExpectNil(err)
	test.S(t).ExpectEquals(buf.String(), "host\tport\trole\thealth\ndb1\t3306\tMASTER\tOK\n")
}

func TestPrintResultsVertical(t *testing.T) {
	var buf bytes.Buffer
	err := PrintResults(&buf, VerticalOutputFormat, formatColumns, formatRows[:1])
	test.S(t).ExpectNil(err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.S(t).ExpectEquals(len(lines), 6)
	test.S(t).ExpectEquals(lines[0], "*************************** 1. row ***************************")
	test.S(t).ExpectEquals(lines[1], "  host: db1")
	test.S(t).ExpectEquals(lines[4], "health: OK")
	test.S(t).ExpectEquals(lines[5], "1 rows.")
}

func TestPrintResultsGrid(t *testing.T) {
	var buf bytes.Buffer
	err := PrintResults(&buf, GridOutputFormat, formatColumns, formatRows)
	test.S(t).ExpectNil(err)
	output := buf.String()
	test.S(t).ExpectTrue(strings.Contains(output, "health"))
	test.S(t).ExpectTrue(strings.Contains(output, "| db1"))
	test.S(t).ExpectTrue(strings.Contains(output, "Slave delay is 12 seconds behind master"))
}

func TestPrintResultsMismatchedRow(t *testing.T) {
	var buf bytes.Buffer
	err := PrintResults(&buf, CSVOutputFormat, formatColumns, [][]string{{"db1"}})
	test.S(t).ExpectNotNil(err)
}

/*
   Copyright 2023 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package base

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/github/gh-rpl/go/mysql"
)

var (
	prettifyDurationRegexp = regexp.MustCompile("([.][0-9]+)")
	numberPrinter          = message.NewPrinter(language.English)
)

func PrettifyDurationOutput(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return prettifyDurationRegexp.ReplaceAllString(d.String(), "")
}

// FormatNumber formats n with thousands separators, e.g. 1,234,567
func FormatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

func FileExists(fileName string) bool {
	if _, err := os.Stat(fileName); err == nil {
		return true
	}
	return false
}

// StringContainsAll returns true if `s` contains all non empty given `substrings`
// The function returns `false` if no non-empty arguments are given.
func StringContainsAll(s string, substrings ...string) bool {
	nonEmptyStringsFound := false
	for _, substring := range substrings {
		if substring == "" {
			continue
		}
		if strings.Contains(s, substring) {
			nonEmptyStringsFound = true
		} else {
			// Immediate failure
			return false
		}
	}
	return nonEmptyStringsFound
}

func newUuid() string {
	return uuid.NewString()
}

// ValidateConnection confirms the database server info matches the provided connection config.
// Servers reached through a unix socket, or advertising a report_port, are matched on that.
func ValidateConnection(serverInfo *mysql.ServerInfo, connectionConfig *mysql.ConnectionConfig, topologyContext *TopologyContext, name string) error {
	if connectionConfig.Socket == "" {
		if connectionConfig.Key.Port != serverInfo.Port && connectionConfig.Key.Port != serverInfo.ReportPort {
			return fmt.Errorf("Unexpected database port reported: %+v / report_port: %+v", serverInfo.Port, serverInfo.ReportPort)
		}
	}
	topologyContext.Log.Infof("%s connection validated on %+v", name, connectionConfig.Key)
	return nil
}

/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"errors"
	"fmt"
	"strings"
	"time"

	drivermysql "github.com/go-sql-driver/mysql"
)

// Names of replication checks. Callers inspect these to decide whether --force may override a failure.
const (
	CheckConnected  = "CONNECTED"
	CheckGTID       = "GTID"
	CheckBehind     = "BEHIND"
	CheckFilters    = "FILTERS"
	CheckBinlog     = "BINLOG"
	CheckRplUser    = "RPL_USER"
	CheckServerID   = "SERVER_ID"
	CheckServerUUID = "SERVER_UUID"
	CheckInnoDB     = "INNODB"
	CheckEngines    = "ENGINES"
	CheckLCTN       = "LCTN"
	CheckSlaveDelay = "SLAVE_DELAY"
)

// ConnectionError indicates a server could not be reached, or the connection to it was lost
type ConnectionError struct {
	Key InstanceKey
	Err error
}

func NewConnectionError(key InstanceKey, err error) *ConnectionError {
	return &ConnectionError{Key: key, Err: err}
}

func (this *ConnectionError) Error() string {
	return fmt.Sprintf("Cannot connect to %+v: %+v", this.Key, this.Err)
}

func (this *ConnectionError) Unwrap() error {
	return this.Err
}

// QueryError is a statement rejected by the server. Code and Message are the server's own.
type QueryError struct {
	Code    int
	Message string
	Query   string
}

func (this *QueryError) Error() string {
	return fmt.Sprintf("Query failed. Error %d: %s", this.Code, this.Message)
}

// ReplicationError is a failed replication precondition
type ReplicationError struct {
	Check   string
	Message string
}

func NewReplicationError(check string, format string, args ...interface{}) *ReplicationError {
	return &ReplicationError{Check: check, Message: fmt.Sprintf(format, args...)}
}

func (this *ReplicationError) Error() string {
	return this.Message
}

// TimeoutError is returned when a bounded wait exhausts its budget
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func NewTimeoutError(operation string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Timeout: timeout}
}

func (this *TimeoutError) Error() string {
	return fmt.Sprintf("Timed out after %+v: %s", this.Timeout, this.Operation)
}

// IsConnectionError returns true when err is, or wraps, a *ConnectionError
func IsConnectionError(err error) bool {
	var connectionError *ConnectionError
	return errors.As(err, &connectionError)
}

// IsTimeoutError returns true when err is, or wraps, a *TimeoutError
func IsTimeoutError(err error) bool {
	var timeoutError *TimeoutError
	return errors.As(err, &timeoutError)
}

// ReplicationCheckOf returns the check name carried by a *ReplicationError, or an empty string
func ReplicationCheckOf(err error) string {
	var replicationError *ReplicationError
	if errors.As(err, &replicationError) {
		return replicationError.Check
	}
	return ""
}

// QueryErrorCode returns the server error code carried by a *QueryError, or 0
func QueryErrorCode(err error) int {
	var queryError *QueryError
	if errors.As(err, &queryError) {
		return queryError.Code
	}
	return 0
}

// translateDriverError maps driver errors onto this package's taxonomy
func translateDriverError(key InstanceKey, query string, err error) error {
	if err == nil {
		return nil
	}
	var mysqlError *drivermysql.MySQLError
	if errors.As(err, &mysqlError) {
		return &QueryError{Code: int(mysqlError.Number), Message: mysqlError.Message, Query: query}
	}
	var queryError *QueryError
	if errors.As(err, &queryError) {
		return err
	}
	if IsConnectionError(err) {
		return err
	}
	return NewConnectionError(key, err)
}

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (this Severity) String() string {
	if this == SeverityError {
		return "ERROR"
	}
	return "WARNING"
}

// Diagnostic is the outcome of a single failed check. Warnings are advisory; errors block.
type Diagnostic struct {
	Severity Severity
	Check    string
	Message  string
}

func NewWarning(check string, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityWarning, Check: check, Message: fmt.Sprintf(format, args...)}
}

func NewError(check string, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Check: check, Message: fmt.Sprintf(format, args...)}
}

func (this *Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", this.Severity, this.Message)
}

// Diagnostics is a collected list of check outcomes
type Diagnostics []*Diagnostic

// Append adds the given diagnostics, skipping nil entries
func (this *Diagnostics) Append(diagnostics ...*Diagnostic) {
	for _, diagnostic := range diagnostics {
		if diagnostic != nil {
			*this = append(*this, diagnostic)
		}
	}
}

func (this Diagnostics) HasErrors() bool {
	return len(this.Errors()) > 0
}

func (this Diagnostics) Errors() Diagnostics {
	return this.filter(SeverityError)
}

func (this Diagnostics) Warnings() Diagnostics {
	return this.filter(SeverityWarning)
}

func (this Diagnostics) filter(severity Severity) Diagnostics {
	result := Diagnostics{}
	for _, diagnostic := range this {
		if diagnostic.Severity == severity {
			result = append(result, diagnostic)
		}
	}
	return result
}

// Messages returns the messages of all diagnostics, in order
func (this Diagnostics) Messages() []string {
	messages := []string{}
	for _, diagnostic := range this {
		messages = append(messages, diagnostic.Message)
	}
	return messages
}

// Err folds the error-severity diagnostics into a single *ReplicationError, or returns nil.
// The check name of the first error is retained.
func (this Diagnostics) Err() error {
	errs := this.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &ReplicationError{Check: errs[0].Check, Message: strings.Join(errs.Messages(), ", ")}
}

/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// EscapeName will escape a db/table/column/... name by wrapping with backticks.
// It is not fool proof. I'm just trying to do the right thing here, not solving
// SQL injection issues, which should be irrelevant for this tool.
func EscapeName(name string) string {
	if unquoted, err := strconv.Unquote(name); err == nil {
		name = unquoted
	}
	return fmt.Sprintf("`%s`", strings.ReplaceAll(name, "`", "``"))
}

// EscapeString returns value as a single quoted SQL string literal
func EscapeString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return fmt.Sprintf("'%s'", value)
}

// UnescapeString reverses EscapeString. Input that is not quoted is returned as is.
func UnescapeString(literal string) string {
	literal = strings.TrimSpace(literal)
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		return literal
	}
	literal = literal[1 : len(literal)-1]
	var b strings.Builder
	escaped := false
	for _, r := range literal {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// StatementOption is a single `NAME = value` clause of an administrative statement.
// String values are quoted, integer values are not.
type StatementOption struct {
	Name  string
	Value interface{}
}

func (this StatementOption) String() string {
	switch value := this.Value.(type) {
	case string:
		return fmt.Sprintf("%s = %s", this.Name, EscapeString(value))
	case int:
		return fmt.Sprintf("%s = %d", this.Name, value)
	case int64:
		return fmt.Sprintf("%s = %d", this.Name, value)
	case bool:
		if value {
			return fmt.Sprintf("%s = 1", this.Name)
		}
		return fmt.Sprintf("%s = 0", this.Name)
	default:
		return fmt.Sprintf("%s = %v", this.Name, value)
	}
}

// BuildOptionsStatement builds e.g. `change master to MASTER_HOST = 'h', MASTER_PORT = 3306`.
// Options are emitted in the given order.
func BuildOptionsStatement(verb string, options []StatementOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("Got 0 options in BuildOptionsStatement")
	}
	clauses := make([]string, len(options))
	for i, option := range options {
		if option.Name == "" {
			return "", fmt.Errorf("Empty option name in BuildOptionsStatement")
		}
		clauses[i] = option.String()
	}
	return fmt.Sprintf("%s %s", verb, strings.Join(clauses, ", ")), nil
}

// ParseOptionsStatement splits the options part of a statement built by BuildOptionsStatement
// into upper cased names and unquoted values.
func ParseOptionsStatement(optionsText string) (map[string]string, error) {
	result := map[string]string{}
	var clauses []string
	var current strings.Builder
	inQuote := false
	escaped := false
	for _, r := range optionsText {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '\'':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			clauses = append(clauses, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if inQuote {
		return nil, fmt.Errorf("Unterminated quote in %s", optionsText)
	}
	clauses = append(clauses, current.String())
	for _, clause := range clauses {
		tokens := strings.SplitN(clause, "=", 2)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("Cannot parse option: %s", strings.TrimSpace(clause))
		}
		name := strings.ToUpper(strings.TrimSpace(tokens[0]))
		result[name] = UnescapeString(tokens[1])
	}
	return result, nil
}

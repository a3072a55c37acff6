/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package base

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// OutputFormat is the layout of tabular command output
type OutputFormat string

const (
	GridOutputFormat     OutputFormat = "grid"
	CSVOutputFormat      OutputFormat = "csv"
	TabOutputFormat      OutputFormat = "tab"
	VerticalOutputFormat OutputFormat = "vertical"
)

func ParseOutputFormat(format string) (OutputFormat, error) {
	switch outputFormat := OutputFormat(strings.ToLower(strings.TrimSpace(format))); outputFormat {
	case GridOutputFormat, CSVOutputFormat, TabOutputFormat, VerticalOutputFormat:
		return outputFormat, nil
	}
	return "", fmt.Errorf("Unknown format: %s. Expected one of grid, csv, tab, vertical", format)
}

// PrintResults writes rows under the given column headers
func PrintResults(w io.Writer, format OutputFormat, columns []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("PrintResults: row %d has %d values; expected %d", i, len(row), len(columns))
		}
	}
	switch format {
	case GridOutputFormat, "":
		table := tablewriter.NewWriter(w)
		table.SetHeader(columns)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.AppendBulk(rows)
		table.Render()
		return nil
	case CSVOutputFormat:
		return writeDelimited(w, ',', columns, rows)
	case TabOutputFormat:
		return writeDelimited(w, '\t', columns, rows)
	case VerticalOutputFormat:
		return writeVertical(w, columns, rows)
	}
	return fmt.Errorf("Unknown format: %s", format)
}

func writeDelimited(w io.Writer, delimiter rune, columns []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter
	if err := writer.Write(columns); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// writeVertical prints one block per row, the way the mysql client does with \G
func writeVertical(w io.Writer, columns []string, rows [][]string) error {
	width := 0
	for _, column := range columns {
		if len(column) > width {
			width = len(column)
		}
	}
	for i, row := range rows {
		if _, err := fmt.Fprintf(w, "%s %d. row %s\n", strings.Repeat("*", 27), i+1, strings.Repeat("*", 27)); err != nil {
			return err
		}
		for j, column := range columns {
			if _, err := fmt.Fprintf(w, "%*s: %s\n", width, column, row[j]); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d rows.\n", len(rows))
	return err
}

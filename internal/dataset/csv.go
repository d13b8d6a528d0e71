package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table is a header plus numeric rows.
type Table struct {
	Columns []string
	Rows    [][]float64
}

func LoadCSV(path string) (Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Table{}, fmt.Errorf("csv path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a header row followed by numeric rows. Blank rows are
// skipped.
func ReadCSV(in io.Reader) (Table, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Table{}, fmt.Errorf("csv has no header")
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	rows := make([][]float64, 0, 1024)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return Table{}, fmt.Errorf("read csv row %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(columns) {
			return Table{}, fmt.Errorf("csv row %d has %d fields, header has %d", line, len(record), len(columns))
		}
		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Table{}, fmt.Errorf("parse csv row %d column %s: %w", line, columns[i], err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}, nil
}

// ColumnIndex resolves column names to indices.
func (t Table) ColumnIndex(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		idx := -1
		for i, column := range t.Columns {
			if strings.EqualFold(column, strings.TrimSpace(name)) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown csv column: %s", name)
		}
		out = append(out, idx)
	}
	return out, nil
}

// TimeSeriesFromTable builds a next-step prediction bundle: the inputs of
// row t are paired with the outputs of row t+1.
func TimeSeriesFromTable(t Table, inputColumns, outputColumns []string) (TimeSeriesBundle, error) {
	in, err := t.ColumnIndex(inputColumns)
	if err != nil {
		return TimeSeriesBundle{}, err
	}
	out, err := t.ColumnIndex(outputColumns)
	if err != nil {
		return TimeSeriesBundle{}, err
	}
	if len(in) == 0 || len(out) == 0 {
		return TimeSeriesBundle{}, fmt.Errorf("input and output columns are required")
	}
	if len(t.Rows) < 2 {
		return TimeSeriesBundle{}, fmt.Errorf("time series requires at least 2 rows, got %d", len(t.Rows))
	}
	var bundle TimeSeriesBundle
	for r := 0; r+1 < len(t.Rows); r++ {
		bundle.Inputs = append(bundle.Inputs, pick(t.Rows[r], in))
		bundle.Outputs = append(bundle.Outputs, pick(t.Rows[r+1], out))
	}
	bundle.Next = pick(t.Rows[len(t.Rows)-1], in)
	return bundle, nil
}

// PatternsFromTable treats every row as one pattern: the output columns are
// the ideal values and the remaining columns, in order, form a flattened
// sequence of vectors of fieldsPerStep values.
func PatternsFromTable(t Table, outputColumns []string, fieldsPerStep int) (PatternBundle, error) {
	out, err := t.ColumnIndex(outputColumns)
	if err != nil {
		return PatternBundle{}, err
	}
	if fieldsPerStep <= 0 {
		return PatternBundle{}, fmt.Errorf("fields per step must be > 0")
	}
	isOutput := make(map[int]bool, len(out))
	for _, idx := range out {
		isOutput[idx] = true
	}
	var bundle PatternBundle
	for r, row := range t.Rows {
		flat := make([]float64, 0, len(row))
		for i, v := range row {
			if !isOutput[i] {
				flat = append(flat, v)
			}
		}
		if len(flat)%fieldsPerStep != 0 || len(flat) == 0 {
			return PatternBundle{}, fmt.Errorf("row %d has %d pattern values, not a multiple of %d", r+1, len(flat), fieldsPerStep)
		}
		pattern := make([][]float64, 0, len(flat)/fieldsPerStep)
		for i := 0; i < len(flat); i += fieldsPerStep {
			pattern = append(pattern, flat[i:i+fieldsPerStep])
		}
		bundle.Patterns = append(bundle.Patterns, pattern)
		bundle.Outputs = append(bundle.Outputs, pick(row, out))
	}
	return bundle, nil
}

func pick(row []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = row[j]
	}
	return out
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

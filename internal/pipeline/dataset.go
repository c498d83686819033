package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// RawDataset is the untyped staging representation of an uploaded file, used
// only during validation. Cells are kept as strings; nothing is coerced until
// Validate runs.
type RawDataset struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column, or -1.
func (d *RawDataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset carries the named column.
func (d *RawDataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// ParseCSV reads an uploaded CSV file into the staging representation. The
// first record is the header; short rows are tolerated (the CSV reader is
// run with FieldsPerRecord unset so ragged exports from spreadsheet tools
// still load).
func ParseCSV(data []byte) (*RawDataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return &RawDataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ParseCSV: reading header: %w", err)
	}

	ds := &RawDataset{Columns: normalizeColumns(header)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseCSV: reading row %d: %w", len(ds.Rows)+2, err)
		}
		ds.Rows = append(ds.Rows, record)
	}

	return ds, nil
}

// normalizeColumns maps incoming column names to the canonical ones. The
// mapping is currently the identity and exists as the hook for future
// aliasing ("Transaction Date" -> "Date" and the like); it must stay
// idempotent.
func normalizeColumns(header []string) []string {
	mappings := map[string]string{
		"Date":        "Date",
		"Amount":      "Amount",
		"Merchant":    "Merchant",
		"Description": "Description",
	}

	out := make([]string, len(header))
	for i, name := range header {
		if canonical, ok := mappings[name]; ok {
			out[i] = canonical
		} else {
			out[i] = name
		}
	}
	return out
}

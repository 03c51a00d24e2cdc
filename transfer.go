package seoconsole

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var csvHeader = []string{"Route Path", "Title", "Description", "Status", "Canonical URL", "OG Image", "Robots"}

// ExportCSV writes the report columns of records as CSV with a header row.
func ExportCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.RoutePath,
			deref(r.Title),
			deref(r.Description),
			string(r.ValidationStatus),
			deref(r.CanonicalURL),
			deref(r.OGImageURL),
			deref(r.Robots),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes records as an indented JSON array.
func ExportJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ParseCSV reads records in the ExportCSV layout. The header row is
// required; the Status column is ignored since imported records start
// pending. Rows with an empty route are skipped.
func ParseCSV(r io.Reader) ([]RecordInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(header) == 0 || !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), csvHeader[0]) {
		return nil, fmt.Errorf("parse csv: first column must be %q", csvHeader[0])
	}

	var inputs []RecordInput
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		col := func(i int) *string {
			if i >= len(row) {
				return nil
			}
			return strPtr(row[i])
		}
		in := RecordInput{RoutePath: strings.TrimSpace(row[0])}
		if in.RoutePath == "" {
			continue
		}
		in.Title = col(1)
		in.Description = col(2)
		in.CanonicalURL = col(4)
		in.OGImageURL = col(5)
		in.Robots = col(6)
		in.Normalize()
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// ParseJSON reads a JSON array of records. Exported records are accepted;
// their server-managed fields are ignored.
func ParseJSON(r io.Reader) ([]RecordInput, error) {
	var inputs []RecordInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	for i := range inputs {
		inputs[i].Normalize()
	}
	return inputs, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

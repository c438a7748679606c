// Package ingest loads lead batches from dropped CSV and XLSX files
// and watches a directory for new ones.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dialer-cli/internal/model"
)

// ParseLeads reads a lead file by extension. The file must have a
// header row with name and phone columns; any other columns ride along
// in Lead.Extra.
func ParseLeads(path string) ([]model.Lead, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".xlsx":
		return parseXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

func parseCSV(path string) ([]model.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty lead file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var leads []model.Lead
	for {
		row, err := r.Read()
		if err == io.EOF {
			return leads, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}
		if lead, ok := cols.lead(row); ok {
			leads = append(leads, lead)
		}
	}
}

func parseXLSX(path string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: empty lead file")
	}

	cols, err := mapColumns(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var leads []model.Lead
	for _, row := range sheet.Rows[1:] {
		if lead, ok := cols.lead(rowToStrings(row)); ok {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

// columnMap locates the required columns and remembers the extras.
type columnMap struct {
	name   int
	phone  int
	extras map[int]string // column index -> header name
}

func mapColumns(header []string) (*columnMap, error) {
	cols := &columnMap{name: -1, phone: -1, extras: make(map[int]string)}
	for i, h := range header {
		switch key := strings.ToLower(strings.TrimSpace(h)); key {
		case "name":
			cols.name = i
		case "phone":
			cols.phone = i
		case "":
		default:
			cols.extras[i] = key
		}
	}
	if cols.name < 0 || cols.phone < 0 {
		return nil, eris.New("ingest: lead file missing required columns: name, phone")
	}
	return cols, nil
}

// lead builds one lead from a data row. Rows with no name and no phone
// (blank padding rows) are dropped.
func (c *columnMap) lead(row []string) (model.Lead, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	lead := model.Lead{Name: cell(c.name), Phone: cell(c.phone)}
	if lead.Name == "" && lead.Phone == "" {
		return model.Lead{}, false
	}

	for i, key := range c.extras {
		if v := cell(i); v != "" {
			if lead.Extra == nil {
				lead.Extra = make(map[string]string)
			}
			lead.Extra[key] = v
		}
	}
	return lead, true
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

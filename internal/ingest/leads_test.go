package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseLeadsCSV(t *testing.T) {
	path := writeFile(t, "leads.csv",
		"name,phone,company\n"+
			"Alice,555-000-1111,Acme Dental\n"+
			"Bob,5550002222,\n"+
			",,\n")

	leads, err := ParseLeads(path)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "Alice", leads[0].Name)
	assert.Equal(t, "555-000-1111", leads[0].Phone)
	assert.Equal(t, map[string]string{"company": "Acme Dental"}, leads[0].Extra)

	assert.Equal(t, "Bob", leads[1].Name)
	assert.Nil(t, leads[1].Extra)
}

func TestParseLeadsCSVHeaderCaseInsensitive(t *testing.T) {
	path := writeFile(t, "leads.csv", "Name,PHONE\nAlice,5550001111\n")

	leads, err := ParseLeads(path)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Alice", leads[0].Name)
}

func TestParseLeadsCSVMissingColumns(t *testing.T) {
	path := writeFile(t, "leads.csv", "name,email\nAlice,a@example.com\n")

	_, err := ParseLeads(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestParseLeadsCSVEmpty(t *testing.T) {
	path := writeFile(t, "leads.csv", "")

	_, err := ParseLeads(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty lead file")
}

func TestParseLeadsUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "leads.txt", "name,phone\n")

	_, err := ParseLeads(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestParseLeadsXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)

	addRow := func(cells ...string) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	addRow("name", "phone", "notes")
	addRow("Alice", "5550001111", "prefers mornings")
	addRow("Bob", "5550002222")

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))

	leads, err := ParseLeads(path)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "Alice", leads[0].Name)
	assert.Equal(t, "5550001111", leads[0].Phone)
	assert.Equal(t, map[string]string{"notes": "prefers mornings"}, leads[0].Extra)
	assert.Equal(t, "Bob", leads[1].Name)
}

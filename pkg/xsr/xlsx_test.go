package xsr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	require.NoError(t, err)
	for _, row := range rows {
		r := sheet.AddRow()
		for _, val := range row {
			r.AddCell().SetString(val)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, file.Save(path))
	return path
}

func TestXLSXSource_Fetch(t *testing.T) {
	path := writeTestXLSX(t, "Courses", [][]string{
		{"CODE", "TITLE"},
		{"IFS0067", "Intro"},
		{"IFS0068", "Advanced"},
	})

	docs, err := NewXLSXSource(path, "").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "IFS0067", docs[0]["CODE"])
	assert.Equal(t, "Advanced", docs[1]["TITLE"])
}

func TestXLSXSource_Fetch_NamedSheet(t *testing.T) {
	path := writeTestXLSX(t, "Courses", [][]string{
		{"CODE"},
		{"IFS0067"},
	})

	docs, err := NewXLSXSource(path, "Courses").Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestXLSXSource_Fetch_UnknownSheet(t *testing.T) {
	path := writeTestXLSX(t, "Courses", [][]string{{"CODE"}})

	_, err := NewXLSXSource(path, "Missing").Fetch(context.Background())
	assert.Error(t, err)
}

func TestXLSXSource_Fetch_SkipsEmptyRows(t *testing.T) {
	path := writeTestXLSX(t, "Courses", [][]string{
		{"CODE", "TITLE"},
		{"IFS0067", "Intro"},
		{"", ""},
	})

	docs, err := NewXLSXSource(path, "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestXLSXSource_Fetch_MissingFile(t *testing.T) {
	_, err := NewXLSXSource(filepath.Join(t.TempDir(), "nope.xlsx"), "").Fetch(context.Background())
	assert.Error(t, err)
}

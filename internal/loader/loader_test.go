package loader

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sendora/sendora/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParse_CSV(t *testing.T) {
	data := []byte("name, course ,email\nAlice,Go 101,alice@example.com\nBob,Go 102,bob@example.com\n")

	table, err := Parse(data, Options{Filename: "recipients.csv"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "course", "email"}, table.Columns, "header whitespace should be trimmed, order preserved")
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 0, table.Rows[0].Index)
	assert.Equal(t, "Alice", table.Rows[0].Cells["name"])
	assert.Equal(t, "bob@example.com", table.Rows[1].Cells["email"])
}

func TestParse_CSVSemicolonDelimiter(t *testing.T) {
	data := []byte("name;course\nAlice;Go 101\n")

	table, err := Parse(data, Options{Filename: "recipients.csv"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "course"}, table.Columns)
	assert.Equal(t, "Go 101", table.Rows[0].Cells["course"])
}

func TestParse_CSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name\nAlice\n")...)

	table, err := Parse(data, Options{Filename: "recipients.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, table.Columns, "BOM should not leak into the first header cell")
}

func TestParse_CSVTrailingCellsPadded(t *testing.T) {
	// any number of missing trailing cells is empty data, not malformation
	table, err := Parse([]byte("name,course,email\nAlice,Go 101\nBob\n"), Options{Filename: "r.csv"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "", table.Rows[0].Cells["email"])
	assert.Equal(t, "Bob", table.Rows[1].Cells["name"])
	assert.Equal(t, "", table.Rows[1].Cells["course"])
	assert.Equal(t, "", table.Rows[1].Cells["email"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero data rows", "name,course\n"},
		{"duplicate columns", "name,name\nAlice,Bob\n"},
		{"empty column name", "name,,course\nAlice,x,y\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), Options{Filename: "r.csv"})
			require.Error(t, err)
			assert.Equal(t, models.KindParse, models.KindOf(err), "loader failures should be PARSE_ERROR")
		})
	}
}

func TestParse_ZeroRowsSentinel(t *testing.T) {
	_, err := Parse([]byte("name,course\n"), Options{Filename: "r.csv"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRows))
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("%PDF-1.4"), Options{Filename: "r.pdf"})
	require.Error(t, err)
	assert.Equal(t, models.KindParse, models.KindOf(err))
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name", "course"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Alice", "Go 101"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bob", "Go 102"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := Parse(buf.Bytes(), Options{Filename: "recipients.xlsx"})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "course"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Go 102", table.Rows[1].Cells["course"])
}

func TestParse_XLSXTrailingEmptyCells(t *testing.T) {
	// excelize truncates trailing empty cells from each row, so a row
	// filling only its first column comes back a single cell wide
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name", "course", "email"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Alice", "Go 101", "alice@example.com"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bob"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := Parse(buf.Bytes(), Options{Filename: "recipients.xlsx"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "Bob", table.Rows[1].Cells["name"])
	assert.Equal(t, "", table.Rows[1].Cells["course"])
	assert.Equal(t, "", table.Rows[1].Cells["email"])
}

func TestParse_XLSXSniffedWithoutExtension(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Alice"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := Parse(buf.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, table.Columns, "zip magic should route to the XLSX parser")
}

func TestParse_XLSXUnknownSheet(t *testing.T) {
	f := excelize.NewFile()
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := Parse(buf.Bytes(), Options{Filename: "r.xlsx", Sheet: "Missing"})
	require.Error(t, err)
	assert.Equal(t, models.KindParse, models.KindOf(err))
}

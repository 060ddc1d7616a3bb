// Package loader parses uploaded recipient tables into typed rows and an
// ordered column schema.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/sendora/sendora/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoRows lets callers distinguish the empty-table case without string
// matching. It is wrapped in a PARSE_ERROR.
var ErrNoRows = errors.New("file has no data rows")

// Options control how the raw file bytes are interpreted.
type Options struct {
	// Filename is the declared upload name; its extension selects the
	// format. When absent the content is sniffed.
	Filename string
	// Sheet selects a worksheet by name for XLSX files. Empty means the
	// first sheet.
	Sheet string
}

// xlsx files are zip archives
var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// Parse turns raw tabular file bytes into a RecipientTable. The first row
// is the header; header and cell whitespace is trimmed; column order is
// preserved exactly as encountered. Malformed files, unsupported formats
// and zero-row tables fail with a PARSE_ERROR.
func Parse(data []byte, opts Options) (*models.RecipientTable, error) {
	if len(data) == 0 {
		return nil, models.Errorf(models.KindParse, "empty file")
	}

	switch strings.ToLower(filepath.Ext(opts.Filename)) {
	case ".csv", ".txt":
		return parseCSV(data)
	case ".xlsx":
		return parseXLSX(data, opts.Sheet)
	case "":
		if bytes.HasPrefix(data, zipMagic) {
			return parseXLSX(data, opts.Sheet)
		}
		return parseCSV(data)
	default:
		return nil, models.Errorf(models.KindParse, "unsupported file format: %s", filepath.Ext(opts.Filename))
	}
}

func parseCSV(data []byte) (*models.RecipientTable, error) {
	// strip UTF-8 BOM so the first header cell survives intact
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewError(models.KindParse, err)
		}
		records = append(records, rec)
	}

	return buildTable(records)
}

func parseXLSX(data []byte, sheet string) (*models.RecipientTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewError(models.KindParse, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, models.Errorf(models.KindParse, "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, models.NewError(models.KindParse, err)
	}

	return buildTable(records)
}

// buildTable converts raw records into the typed table. The first
// non-empty record is the header row.
func buildTable(records [][]string) (*models.RecipientTable, error) {
	// skip leading fully-empty records
	for len(records) > 0 && isEmptyRecord(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, models.Errorf(models.KindParse, "file has no header row")
	}

	header := records[0]
	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		name := models.NormalizeHeader(h)
		if name == "" {
			return nil, models.Errorf(models.KindParse, "empty column name in header")
		}
		if seen[name] {
			return nil, models.Errorf(models.KindParse, "duplicate column name: %s", name)
		}
		seen[name] = true
		columns = append(columns, name)
	}

	var rows []models.RecipientRow
	for _, rec := range records[1:] {
		if isEmptyRecord(rec) {
			continue
		}

		// spreadsheet readers drop trailing empty cells, so short rows
		// are padded back to the header width; empty cells are data
		for len(rec) < len(columns) {
			rec = append(rec, "")
		}

		cells := make(map[string]string, len(columns))
		for j, col := range columns {
			cells[col] = strings.TrimSpace(rec[j])
		}
		rows = append(rows, models.RecipientRow{Index: len(rows), Cells: cells})
	}

	if len(rows) == 0 {
		return nil, models.NewError(models.KindParse, ErrNoRows)
	}

	return &models.RecipientTable{Columns: columns, Rows: rows}, nil
}

// sniffDelimiter picks between comma and semicolon based on the header line.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func isEmptyRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

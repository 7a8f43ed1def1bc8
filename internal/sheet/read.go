// Package sheet reads candidate and anchor spreadsheets and writes planned
// weeks back out as XLSX or CSV.
package sheet

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// ReadOptions configures ReadRows.
type ReadOptions struct {
	SheetName string // xlsx only; default is the first sheet
	Charset   string // csv only; e.g. "windows-1252". Empty means UTF-8.
	Delimiter rune   // csv only; default ','
}

// ReadRows reads every row of an .xlsx or .csv file, header included.
func ReadRows(path string, opts ReadOptions) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, opts)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "sheet: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f, opts)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}

func readXLSX(path string, opts ReadOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open xlsx")
	}

	var sh *xlsx.Sheet
	if opts.SheetName != "" {
		var ok bool
		if sh, ok = f.Sheet[opts.SheetName]; !ok {
			return nil, eris.Errorf("sheet: sheet %q not found", opts.SheetName)
		}
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("sheet: workbook has no sheets")
		}
		sh = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadCSV reads all records from r, decoding from opts.Charset first.
func ReadCSV(r io.Reader, opts ReadOptions) ([][]string, error) {
	if opts.Charset != "" {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: unsupported charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "sheet: read csv row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

package parser

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Sheet is one worksheet (or a whole CSV) as raw string cells. Rows may
// be ragged; accessors must bounds-check.
type Sheet struct {
	Name string
	Rows [][]string
}

// File is a fully loaded workbook ready for carrier parsing.
type File struct {
	Path   string
	Sheets []Sheet
}

// ReadFile loads every sheet of a carrier spreadsheet. The format is
// picked by extension: .xlsx/.xlsm via excelize, legacy .xls via the
// BIFF reader, .csv/.txt as a single delimited sheet. Unknown
// extensions try the xlsx reader first and fall back to CSV.
func ReadFile(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return readXLSX(path)
	case ".xls":
		return readXLS(path)
	case ".csv", ".txt":
		return readCSV(path)
	default:
		f, err := readXLSX(path)
		if err == nil {
			return f, nil
		}
		return readCSV(path)
	}
}

func readXLSX(path string) (*File, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, NewFileError(path, "open", "cannot open workbook", err)
	}
	defer wb.Close()

	f := &File{Path: path}
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return nil, NewFileError(path, "read", "cannot read sheet "+name, err)
		}
		f.Sheets = append(f.Sheets, Sheet{Name: name, Rows: rows})
	}
	if len(f.Sheets) == 0 {
		return nil, NewFileError(path, "read", "workbook has no sheets", nil)
	}
	return f, nil
}

func readXLS(path string) (*File, error) {
	wb, closer, err := xls.OpenWithCloser(path, "utf-16le")
	if err != nil {
		return nil, NewFileError(path, "open", "cannot open legacy workbook", err)
	}
	defer closer.Close()

	f := &File{Path: path}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		f.Sheets = append(f.Sheets, Sheet{Name: sheet.Name, Rows: rows})
	}
	if len(f.Sheets) == 0 {
		return nil, NewFileError(path, "read", "workbook has no sheets", nil)
	}
	return f, nil
}

func readCSV(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFileError(path, "open", "cannot read file", err)
	}
	if !utf8.Valid(data) {
		// Carrier CSV exports are Windows-1252 more often than not.
		decoded, _, derr := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if derr != nil {
			return nil, NewFileError(path, "decode", "cannot decode text file", derr)
		}
		data = decoded
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewFileError(path, "read", "malformed delimited file", err)
		}
		rows = append(rows, rec)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &File{Path: path, Sheets: []Sheet{{Name: name, Rows: rows}}}, nil
}

// sniffDelimiter counts candidate separators over the first line and
// picks the most frequent, defaulting to the comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, cand := range []byte{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}

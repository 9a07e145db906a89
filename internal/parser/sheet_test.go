package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sabanasdb/internal/database"
	"github.com/xuri/excelize/v2"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTemp(t, "sabana.csv", []byte("NUMERO A,NUMERO B,FECHA\n5512345678,5598765432,31/07/2024\n"))

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(f.Sheets) != 1 {
		t.Fatalf("got %d sheets, want 1", len(f.Sheets))
	}
	s := f.Sheets[0]
	if s.Name != "sabana" {
		t.Errorf("sheet name = %q, want sabana", s.Name)
	}
	if len(s.Rows) != 2 || len(s.Rows[0]) != 3 {
		t.Fatalf("rows = %v", s.Rows)
	}
	if s.Rows[1][0] != "5512345678" {
		t.Errorf("cell = %q", s.Rows[1][0])
	}
}

func TestReadCSVSemicolons(t *testing.T) {
	path := writeTemp(t, "sabana.txt", []byte("NUMERO A;NUMERO B\n5512345678;5598765432\n"))

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got := f.Sheets[0].Rows[1][1]; got != "5598765432" {
		t.Errorf("cell = %q, want the second semicolon field", got)
	}
}

func TestReadCSVWindows1252(t *testing.T) {
	// "NÚMERO" with a Windows-1252 Ú (0xDA), invalid as UTF-8
	data := []byte{'N', 0xDA, 'M', 'E', 'R', 'O', ',', 'X', '\n', '1', ',', '2', '\n'}
	path := writeTemp(t, "latin.csv", data)

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got := f.Sheets[0].Rows[0][0]; got != "NÚMERO" {
		t.Errorf("decoded header = %q, want NÚMERO", got)
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("A,B\n1,2\n")...)
	path := writeTemp(t, "bom.csv", data)

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got := f.Sheets[0].Rows[0][0]; got != "A" {
		t.Errorf("first header = %q, want bare A", got)
	}
}

func TestReadCSVRaggedRows(t *testing.T) {
	path := writeTemp(t, "ragged.csv", []byte("A,B,C\n1,2\n3,4,5,6\n"))

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	rows := f.Sheets[0].Rows
	if len(rows) != 3 || len(rows[1]) != 2 || len(rows[2]) != 4 {
		t.Errorf("ragged rows not preserved: %v", rows)
	}
}

func TestReadXLSXWorkbook(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", "Hoja1"); err != nil {
		t.Fatalf("renaming sheet: %v", err)
	}
	// title junk above the real header, which sits on row 3
	if err := wb.SetCellValue("Hoja1", "A1", "REPORTE DE TRAFICO"); err != nil {
		t.Fatalf("writing title: %v", err)
	}
	header := []interface{}{"Telefono", "Tipo", "Numero A", "Numero B", "Fecha", "Hora", "Durac. Seg.", "IMEI", "Latitud", "Longitud", "Azimuth"}
	if err := wb.SetSheetRow("Hoja1", "A3", &header); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	// duration, coordinates and azimuth as native numeric cells
	row4 := []interface{}{"5512345678", "VOZ SALIENTE", "525512345678", "5598765432", "31/07/2024", "09:30:15", 120, "123456789012345", 19.43, -99.13, 30}
	if err := wb.SetSheetRow("Hoja1", "A4", &row4); err != nil {
		t.Fatalf("writing row: %v", err)
	}
	row5 := []interface{}{"5512345678", "VOZ ENTRANTE", "525512345678", "5511122233", "31/07/2024", "10:00:00", 60, "123456789012345", 19.44, -99.14, 45}
	if err := wb.SetSheetRow("Hoja1", "A5", &row5); err != nil {
		t.Fatalf("writing row: %v", err)
	}

	if _, err := wb.NewSheet("Hoja2"); err != nil {
		t.Fatalf("adding sheet: %v", err)
	}
	if err := wb.SetSheetRow("Hoja2", "A1", &header); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	extra := []interface{}{"5512345678", "VOZ SALIENTE", "525512345678", "5598765432", "31/07/2024", "11:15:00", 30, "123456789012345", 19.45, -99.15, 90}
	if err := wb.SetSheetRow("Hoja2", "A2", &extra); err != nil {
		t.Fatalf("writing row: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sabana_telcel.xlsx")
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(f.Sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(f.Sheets))
	}
	if f.Sheets[0].Name != "Hoja1" || f.Sheets[1].Name != "Hoja2" {
		t.Errorf("sheet names = %q/%q", f.Sheets[0].Name, f.Sheets[1].Name)
	}
	// numeric cells come back as their formatted strings
	if got := f.Sheets[0].Rows[3][6]; got != "120" {
		t.Errorf("duration cell = %q, want 120", got)
	}

	res, err := (&telcelParser{}).Parse(f, 5)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Stats.Sheets != 2 || res.Stats.Blocks != 2 {
		t.Errorf("stats = %+v, want 2 sheets / 2 blocks", res.Stats)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}

	rec := res.Records[0]
	if rec.NumberA != "5512345678" || rec.NumberB != "5598765432" {
		t.Errorf("numbers = %q/%q", rec.NumberA, rec.NumberB)
	}
	if rec.RecordType != database.RecordVozSaliente {
		t.Errorf("RecordType = %d, want %d", rec.RecordType, database.RecordVozSaliente)
	}
	want := time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC)
	if !rec.EventAt.Equal(want) {
		t.Errorf("EventAt = %v, want %v", rec.EventAt, want)
	}
	if rec.DurationSec != 120 {
		t.Errorf("DurationSec = %d, want 120", rec.DurationSec)
	}
	if rec.LatitudeDec == nil || *rec.LatitudeDec != 19.43 {
		t.Errorf("LatitudeDec = %v, want 19.43", rec.LatitudeDec)
	}
	if rec.Azimuth == nil || *rec.Azimuth != 30 {
		t.Errorf("Azimuth = %v, want 30", rec.Azimuth)
	}

	last := res.Records[2]
	if last.DurationSec != 30 {
		t.Errorf("second sheet DurationSec = %d, want 30", last.DurationSec)
	}
	if last.LatitudeDec == nil || *last.LatitudeDec != 19.45 {
		t.Errorf("second sheet LatitudeDec = %v, want 19.45", last.LatitudeDec)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "no-such.csv"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected rune
	}{
		{"comma", "a,b,c\n1,2,3", ','},
		{"semicolon", "a;b;c\n", ';'},
		{"tab", "a\tb\tc\n", '\t'},
		{"pipe", "a|b|c|d\n", '|'},
		{"default comma", "solo\n", ','},
		{"majority wins", "a;b,c;d\n", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffDelimiter([]byte(tt.data)); got != tt.expected {
				t.Errorf("sniffDelimiter = %q, want %q", got, tt.expected)
			}
		})
	}
}

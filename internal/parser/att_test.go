package parser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sabanasdb/internal/database"
)

func attHeaderRow() []string {
	return []string{"TELEFONO", "SERV", "T_REG", "NUM A", "DEST", "FECHA", "HORA", "DURACION", "NUM A IMEI", "NUM A IMSI", "LATITUD", "LONGITUD", "AZIMUTH"}
}

func attDataRow(overrides map[int]string) []string {
	row := []string{
		"525512345678",    // TELEFONO
		"VOZ",             // SERV
		"SAL",             // T_REG
		"525512345678",    // NUM A
		"5598765432",      // DEST
		"2024-07-31",      // FECHA
		"09:30:15",        // HORA
		"120",             // DURACION
		"123456789012345", // NUM A IMEI
		"334050111222333", // NUM A IMSI
		"[19.43:0:19.45]", // LATITUD
		"[-99.1:0:0]",     // LONGITUD
		"[30:40]",         // AZIMUTH
	}
	for i, v := range overrides {
		row[i] = v
	}
	return row
}

func attFile(path string, rows ...[]string) *File {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, attHeaderRow())
	all = append(all, rows...)
	return &File{Path: path, Sheets: []Sheet{{Name: "Hoja1", Rows: all}}}
}

func TestSubscriberFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"REPORTE_525512345678_ATT.xlsx", "5512345678"},
		{"/tmp/ingest/88/sabana_5598765432.csv", "5598765432"},
		{"A_123456789012345_y_5512345678.xlsx", "123456789012345"},
		{"informe.xlsx", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := subscriberFromPath(tt.path); got != tt.expected {
				t.Errorf("subscriberFromPath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestATTParseRecord(t *testing.T) {
	f := attFile("REPORTE_525512345678_ATT.xlsx", attDataRow(nil))

	res, err := (&attParser{}).Parse(f, 9)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
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
	// tower lists resolve to the last non-zero element
	if rec.LatitudeRaw != "19.45" || rec.LongitudeRaw != "-99.1" {
		t.Errorf("raw coordinates = %q/%q, want 19.45/-99.1", rec.LatitudeRaw, rec.LongitudeRaw)
	}
	if rec.LatitudeDec == nil || *rec.LatitudeDec != 19.45 {
		t.Errorf("LatitudeDec = %v, want 19.45", rec.LatitudeDec)
	}
	if rec.LongitudeDec == nil || *rec.LongitudeDec != -99.1 {
		t.Errorf("LongitudeDec = %v, want -99.1", rec.LongitudeDec)
	}
	if rec.Azimuth == nil || *rec.Azimuth != 30 {
		t.Errorf("Azimuth = %v, want the first list element", rec.Azimuth)
	}
	if rec.Phone != "5512345678" {
		t.Errorf("Phone = %q", rec.Phone)
	}
	if res.Stats.UniqueIMEIs != 1 || res.Stats.UniqueIMSIs != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestATTParsePhoneFromFileName(t *testing.T) {
	f := attFile("REPORTE_525599887766_ATT.xlsx", attDataRow(map[int]string{0: ""}))

	res, err := (&attParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.Records[0].Phone != "5599887766" {
		t.Errorf("Phone = %q, want the file name subscriber", res.Records[0].Phone)
	}
}

func TestATTParsePhoneFallsBackToModalNumberA(t *testing.T) {
	// Digitless file name and an all-empty TELEFONO column: the
	// subscriber comes from the most frequent NUM A instead.
	f := attFile("sabana_att.csv",
		attDataRow(map[int]string{0: "", 2: ""}),
		attDataRow(map[int]string{0: "", 2: "", 6: "10:00:00"}),
		attDataRow(map[int]string{0: "", 2: "", 3: "5599887766", 6: "11:00:00"}),
	)

	res, err := (&attParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	for i, rec := range res.Records {
		if rec.Phone != "5512345678" {
			t.Errorf("record %d Phone = %q, want the modal NUM A", i, rec.Phone)
		}
	}
	if got := res.Records[0].RecordType; got != database.RecordVozSaliente {
		t.Errorf("subscriber-origin row type = %d, want %d", got, database.RecordVozSaliente)
	}
	if got := res.Records[2].RecordType; got != database.RecordNinguno {
		t.Errorf("minority-origin row type = %d, want %d", got, database.RecordNinguno)
	}
}

func TestATTParseNumberAFallsBackToPhone(t *testing.T) {
	f := attFile("REPORTE_525512345678_ATT.xlsx", attDataRow(map[int]string{3: ""}))

	res, err := (&attParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if res.Records[0].NumberA != "5512345678" {
		t.Errorf("NumberA = %q, want the subscriber number", res.Records[0].NumberA)
	}
}

func TestATTParseDirectionlessVoice(t *testing.T) {
	tests := []struct {
		name     string
		override map[int]string
		expected database.RecordType
	}{
		{
			name:     "subscriber originated",
			override: map[int]string{2: ""},
			expected: database.RecordVozSaliente,
		},
		{
			name:     "unknown party",
			override: map[int]string{2: "", 3: "5511112222"},
			expected: database.RecordNinguno,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := attFile("REPORTE_525512345678_ATT.xlsx", attDataRow(tt.override))
			res, err := (&attParser{}).Parse(f, 1)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(res.Records) != 1 {
				t.Fatalf("got %d records, want 1", len(res.Records))
			}
			if res.Records[0].RecordType != tt.expected {
				t.Errorf("RecordType = %d, want %d", res.Records[0].RecordType, tt.expected)
			}
		})
	}
}

func TestATTParseIMEIHeaderFallback(t *testing.T) {
	header := attHeaderRow()
	header[8] = "COD EQUIPO IMEI"
	row := attDataRow(nil)
	f := &File{Path: "REPORTE_525512345678_ATT.xlsx", Sheets: []Sheet{{
		Name: "Hoja1",
		Rows: [][]string{header, row},
	}}}

	res, err := (&attParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1 (fallback must find the imei column)", len(res.Records))
	}
	if res.Records[0].IMEI != "123456789012345" {
		t.Errorf("IMEI = %q", res.Records[0].IMEI)
	}
}

func TestATTParseDiscards(t *testing.T) {
	tests := []struct {
		name     string
		override map[int]string
		counter  func(Stats) int
	}{
		{
			name:     "missing imei",
			override: map[int]string{8: ""},
			counter:  func(s Stats) int { return s.DiscardedIMEI },
		},
		{
			name:     "zero azimuth list",
			override: map[int]string{12: "[0:0]"},
			counter:  func(s Stats) int { return s.DiscardedGeo },
		},
		{
			name:     "unresolvable latitude",
			override: map[int]string{10: "[torre:norte]"},
			counter:  func(s Stats) int { return s.DiscardedGeo },
		},
		{
			name:     "missing longitude",
			override: map[int]string{11: ""},
			counter:  func(s Stats) int { return s.DiscardedGeo },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := attFile("REPORTE_525512345678_ATT.xlsx", attDataRow(tt.override))
			res, err := (&attParser{}).Parse(f, 1)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(res.Records) != 0 {
				t.Fatalf("got %d records, want 0", len(res.Records))
			}
			if got := tt.counter(res.Stats); got != 1 {
				t.Errorf("discard counter = %d, want 1 (stats %+v)", got, res.Stats)
			}
		})
	}
}

func TestATTParseDedup(t *testing.T) {
	f := attFile("REPORTE_525512345678_ATT.xlsx",
		attDataRow(map[int]string{7: "60"}),
		attDataRow(map[int]string{7: "180"}),
		attDataRow(map[int]string{6: "10:00:00", 7: "15"}),
	)

	res, err := (&attParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].DurationSec != 180 {
		t.Errorf("duplicate kept duration %d, want 180", res.Records[0].DurationSec)
	}
	if res.Stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", res.Stats.Duplicates)
	}
}

func TestATTParseYearHorizonAborts(t *testing.T) {
	future := fmt.Sprintf("%d-07-31", time.Now().Year()+5)
	f := attFile("REPORTE_525512345678_ATT.xlsx", attDataRow(map[int]string{5: future}))

	res, err := (&attParser{}).Parse(f, 1)
	if res != nil || !errors.Is(err, ErrYearOutOfRange) {
		t.Fatalf("res = %v, err = %v; want nil and ErrYearOutOfRange", res, err)
	}
}

func TestATTRecordType(t *testing.T) {
	tests := []struct {
		name                string
		serv, reg, a, phone string
		kind                string
		expected            database.RecordType
	}{
		{"data session", "DATOS", "", "", "", "", database.RecordDatos},
		{"incoming voice", "VOZ", "ENT", "", "", "", database.RecordVozEntrante},
		{"outgoing voice", "LLAMADA", "OUT", "", "", "", database.RecordVozSaliente},
		{"incoming sms", "SMS", "ENTRANTE", "", "", "", database.RecordMensaje2ViasEnt},
		{"outgoing sms", "MENSAJE", "SAL", "", "", "", database.RecordMensaje2ViasSal},
		{"mms", "MMS", "", "", "", "", database.RecordMensajeriaMultimedia},
		{"directionless sms from subscriber", "SMS", "", "5512345678", "5512345678", "", database.RecordMensaje2ViasSal},
		{"kind fallback", "", "", "", "", "VOZ TRANSITO", database.RecordVozTransito},
		{"unknown", "OTRO", "", "", "", "", database.RecordNinguno},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attRecordType(tt.serv, tt.reg, tt.a, tt.phone, tt.kind); got != tt.expected {
				t.Errorf("attRecordType = %d, want %d", got, tt.expected)
			}
		})
	}
}

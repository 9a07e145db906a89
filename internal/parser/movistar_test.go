package parser

import (
	"testing"
	"time"

	"github.com/sabanasdb/internal/database"
)

func movistarHeaderRow() []string {
	return []string{"TIPO CDR", "NUMERO A", "NUMERO B", "TIPO EVENTO", "FECHA EVENTO", "HORA EVENTO", "DURACION", "IMEI", "IMSI", "CODBTS", "LATITUD", "LONGITUD"}
}

func movistarDataRow(overrides map[int]string) []string {
	row := []string{
		"GSM",             // TIPO CDR
		"525512345678",    // NUMERO A
		"5598765432",      // NUMERO B
		"SALIENTE",        // TIPO EVENTO
		"20240731",        // FECHA EVENTO
		"093015",          // HORA EVENTO
		"120",             // DURACION
		"123456789012345", // IMEI
		"334050999888777", // IMSI
		"MX1234",          // CODBTS
		"19.432608",       // LATITUD
		"-99.133209",      // LONGITUD
	}
	for i, v := range overrides {
		row[i] = v
	}
	return row
}

func movistarFile(rows ...[]string) *File {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, movistarHeaderRow())
	all = append(all, rows...)
	return &File{Path: "sabana_movistar.xlsx", Sheets: []Sheet{{Name: "Hoja1", Rows: all}}}
}

func TestMovistarParseRecord(t *testing.T) {
	res, err := (&movistarParser{}).Parse(movistarFile(movistarDataRow(nil)), 7)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}

	rec := res.Records[0]
	if rec.NumberA != "5512345678" {
		t.Errorf("NumberA = %q, want 5512345678", rec.NumberA)
	}
	if rec.RecordType != database.RecordVozSaliente {
		t.Errorf("RecordType = %d, want %d", rec.RecordType, database.RecordVozSaliente)
	}
	want := time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC)
	if !rec.EventAt.Equal(want) {
		t.Errorf("EventAt = %v, want %v", rec.EventAt, want)
	}
	if rec.Azimuth == nil || *rec.Azimuth != 360 {
		t.Errorf("Azimuth = %v, want the fixed 360", rec.Azimuth)
	}
	if rec.LatitudeDec == nil || *rec.LatitudeDec != 19.432608 {
		t.Errorf("LatitudeDec = %v", rec.LatitudeDec)
	}
	if rec.Phone != "5512345678" {
		t.Errorf("Phone = %q, want the subscriber number", rec.Phone)
	}
	if rec.IMEI != "123456789012345" {
		t.Errorf("IMEI = %q", rec.IMEI)
	}
	if res.Stats.UniqueIMSIs != 1 {
		t.Errorf("UniqueIMSIs = %d, want 1", res.Stats.UniqueIMSIs)
	}
}

func TestMovistarParseBlankDurationIsZero(t *testing.T) {
	res, err := (&movistarParser{}).Parse(movistarFile(movistarDataRow(map[int]string{6: ""})), 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].DurationSec != 0 {
		t.Fatalf("records = %+v, want one record with zero duration", res.Records)
	}
}

func TestMovistarParseGSMRequiresIMEI(t *testing.T) {
	tests := []struct {
		name     string
		override map[int]string
		kept     int
		imeiDrop int
	}{
		{
			name:     "gsm without imei dropped",
			override: map[int]string{7: ""},
			kept:     0,
			imeiDrop: 1,
		},
		{
			name:     "gsm with malformed imei dropped",
			override: map[int]string{7: "1234567890123456"},
			kept:     0,
			imeiDrop: 1,
		},
		{
			name:     "sms without imei kept",
			override: map[int]string{0: "SMS", 7: ""},
			kept:     1,
			imeiDrop: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := (&movistarParser{}).Parse(movistarFile(movistarDataRow(tt.override)), 1)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(res.Records) != tt.kept {
				t.Errorf("got %d records, want %d", len(res.Records), tt.kept)
			}
			if res.Stats.DiscardedIMEI != tt.imeiDrop {
				t.Errorf("DiscardedIMEI = %d, want %d", res.Stats.DiscardedIMEI, tt.imeiDrop)
			}
		})
	}
}

func TestMovistarParseMissingCoordinatesKept(t *testing.T) {
	res, err := (&movistarParser{}).Parse(movistarFile(movistarDataRow(map[int]string{10: "", 11: ""})), 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1 (rows without position survive)", len(res.Records))
	}
	rec := res.Records[0]
	if rec.LatitudeDec != nil || rec.LongitudeDec != nil {
		t.Errorf("decimal coordinates = %v/%v, want nil", rec.LatitudeDec, rec.LongitudeDec)
	}
	if rec.TargetCoordinate == nil || *rec.TargetCoordinate {
		t.Errorf("TargetCoordinate = %v, want explicit false", rec.TargetCoordinate)
	}
}

func TestMovistarParseDedup(t *testing.T) {
	f := movistarFile(
		// same subscriber, time and position: positional duplicates
		movistarDataRow(map[int]string{6: "60"}),
		movistarDataRow(map[int]string{2: "5500000000", 6: "90"}),
		// no position: call-tuple duplicates
		movistarDataRow(map[int]string{5: "110000", 10: "", 11: "", 6: "10"}),
		movistarDataRow(map[int]string{5: "110000", 10: "", 11: "", 6: "25"}),
	)

	res, err := (&movistarParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].DurationSec != 90 {
		t.Errorf("positional duplicate kept duration %d, want 90", res.Records[0].DurationSec)
	}
	if res.Records[1].DurationSec != 25 {
		t.Errorf("tuple duplicate kept duration %d, want 25", res.Records[1].DurationSec)
	}
	if res.Stats.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", res.Stats.Duplicates)
	}
}

func TestMovistarParseSortsByEventTime(t *testing.T) {
	f := movistarFile(
		movistarDataRow(map[int]string{4: "20240801", 5: "120000"}),
		movistarDataRow(map[int]string{1: "5599999999", 4: "20240731", 5: "080000"}),
		movistarDataRow(map[int]string{1: "5511111111", 4: "20240731", 5: "080000"}),
	)

	res, err := (&movistarParser{}).Parse(f, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	if res.Records[2].NumberA != "5512345678" || !res.Records[2].EventAt.After(res.Records[0].EventAt) {
		t.Errorf("latest event not last: %+v", res.Records[2])
	}
	if res.Records[0].NumberA != "5511111111" || res.Records[1].NumberA != "5599999999" {
		t.Errorf("same-instant records not ordered by NumberA: %s, %s", res.Records[0].NumberA, res.Records[1].NumberA)
	}
}

func TestMovistarParseMissingTimeDropsRow(t *testing.T) {
	res, err := (&movistarParser{}).Parse(movistarFile(movistarDataRow(map[int]string{5: ""})), 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Records) != 0 || res.Stats.DiscardedDate != 1 {
		t.Fatalf("records = %d, DiscardedDate = %d; want 0 and 1", len(res.Records), res.Stats.DiscardedDate)
	}
}

func TestMovistarRecordType(t *testing.T) {
	tests := []struct {
		cdr, event string
		expected   database.RecordType
	}{
		{"GSM", "ENTRANTE", database.RecordVozEntrante},
		{"GSM", "SALIENTE", database.RecordVozSaliente},
		{"SMS", "ENTRANTE", database.RecordMensaje2ViasEnt},
		{"SMS", "SALIENTE", database.RecordMensaje2ViasSal},
		{"GPRS", "SALIENTE", database.RecordNinguno},
		{"GSM", "", database.RecordNinguno},
	}

	for _, tt := range tests {
		t.Run(tt.cdr+"_"+tt.event, func(t *testing.T) {
			if got := movistarRecordType(tt.cdr, tt.event); got != tt.expected {
				t.Errorf("movistarRecordType(%q, %q) = %d, want %d", tt.cdr, tt.event, got, tt.expected)
			}
		})
	}
}

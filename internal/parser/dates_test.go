package parser

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseTelcelEventAt(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "slash date with seconds",
			date:     "31/07/2024",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "dash date short year",
			date:     "31-07-24",
			time:     "09:30",
			expected: time.Date(2024, 7, 31, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "short year before 1951",
			date:     "31-07-99",
			time:     "09:30",
			expected: time.Date(1999, 7, 31, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "spanish month",
			date:     "15-Ene-2024",
			time:     "13:22:11",
			expected: time.Date(2024, 1, 15, 13, 22, 11, 0, time.UTC),
		},
		{
			name:     "iso datetime in date cell",
			date:     "2024-07-31 09:30:15",
			time:     "",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "excel midnight artifact",
			date:     "2024-07-31 00:00:00",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:    "empty",
			date:    "",
			time:    "",
			wantErr: true,
		},
		{
			name:    "date without time",
			date:    "31/07/2024",
			time:    "",
			wantErr: true,
		},
		{
			name:    "garbage",
			date:    "sin fecha",
			time:    "xx",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTelcelEventAt(tt.date, tt.time)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTelcelEventAt(%q, %q) = %v, want error", tt.date, tt.time, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTelcelEventAt(%q, %q) error: %v", tt.date, tt.time, err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("parseTelcelEventAt(%q, %q) = %v, want %v", tt.date, tt.time, result, tt.expected)
			}
		})
	}
}

func TestParseTelcelEventAtFutureYear(t *testing.T) {
	date := fmt.Sprintf("31/07/%d", time.Now().Year()+5)
	_, err := parseTelcelEventAt(date, "09:30:15")
	if !errors.Is(err, ErrYearOutOfRange) {
		t.Fatalf("parseTelcelEventAt(%q) error = %v, want ErrYearOutOfRange", date, err)
	}

	var dateErr *DateError
	if !errors.As(err, &dateErr) {
		t.Fatalf("error %v is not a *DateError", err)
	}
	if dateErr.Carrier != CarrierTelcel {
		t.Errorf("DateError.Carrier = %q, want %q", dateErr.Carrier, CarrierTelcel)
	}
}

func TestParseMovistarEventAt(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "numeric date and time",
			date:     "20240731",
			time:     "093015",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "numeric time lost leading zeros",
			date:     "20240731",
			time:     "3015",
			expected: time.Date(2024, 7, 31, 0, 30, 15, 0, time.UTC),
		},
		{
			name:    "seven digit date has no valid reading",
			date:    "2024731",
			time:    "093015",
			wantErr: true,
		},
		{
			name:     "slash date fallback",
			date:     "31/07/2024",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:    "missing time",
			date:    "20240731",
			time:    "",
			wantErr: true,
		},
		{
			name:    "missing date",
			date:    "",
			time:    "093015",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseMovistarEventAt(tt.date, tt.time)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseMovistarEventAt(%q, %q) = %v, want error", tt.date, tt.time, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMovistarEventAt(%q, %q) error: %v", tt.date, tt.time, err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("parseMovistarEventAt(%q, %q) = %v, want %v", tt.date, tt.time, result, tt.expected)
			}
		})
	}
}

func TestParseATTEventAt(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "dash short year",
			date:     "31-07-24",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "single digit hour",
			date:     "31-07-24",
			time:     "0:16:06",
			expected: time.Date(2024, 7, 31, 0, 16, 6, 0, time.UTC),
		},
		{
			name:     "slash separators folded",
			date:     "31/07/2024",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "excel serial date",
			date:     "45504",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "iso datetime",
			date:     "2024-07-31 09:30:15",
			time:     "",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:    "empty",
			date:    "",
			time:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseATTEventAt(tt.date, tt.time)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseATTEventAt(%q, %q) = %v, want error", tt.date, tt.time, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseATTEventAt(%q, %q) error: %v", tt.date, tt.time, err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("parseATTEventAt(%q, %q) = %v, want %v", tt.date, tt.time, result, tt.expected)
			}
		})
	}
}

func TestParseAltanEventAt(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "slash date",
			date:     "31/07/2024",
			time:     "09:30:15",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "numeric pair",
			date:     "20240731",
			time:     "093015",
			expected: time.Date(2024, 7, 31, 9, 30, 15, 0, time.UTC),
		},
		{
			name:     "slash date minutes only",
			date:     "31/07/2024",
			time:     "09:30",
			expected: time.Date(2024, 7, 31, 9, 30, 0, 0, time.UTC),
		},
		{
			name:    "empty date",
			date:    "",
			time:    "093015",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseAltanEventAt(tt.date, tt.time)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAltanEventAt(%q, %q) = %v, want error", tt.date, tt.time, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAltanEventAt(%q, %q) error: %v", tt.date, tt.time, err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("parseAltanEventAt(%q, %q) = %v, want %v", tt.date, tt.time, result, tt.expected)
			}
		})
	}
}

func TestExpandShortYear(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"31-07-24", "31-07-2024"},
		{"31-07-50", "31-07-2050"},
		{"31-07-51", "31-07-1951"},
		{"31/07/99", "31/07/1999"},
		{"31-07-2024", "31-07-2024"},
		{"20240731", "20240731"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandShortYear(tt.input); got != tt.expected {
				t.Errorf("expandShortYear(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExcelSerialDate(t *testing.T) {
	got, ok := excelSerialDate("45504")
	if !ok {
		t.Fatal("excelSerialDate(45504) not recognized")
	}
	want := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("excelSerialDate(45504) = %v, want %v", got, want)
	}

	if _, ok := excelSerialDate("20240731"); ok {
		t.Error("excelSerialDate(20240731) treated a yyyymmdd date as a serial")
	}
	if _, ok := excelSerialDate("120"); ok {
		t.Error("excelSerialDate(120) treated a duration as a serial")
	}
	if _, ok := excelSerialDate("texto"); ok {
		t.Error("excelSerialDate(texto) parsed garbage")
	}
}

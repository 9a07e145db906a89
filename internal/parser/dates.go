package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Full names first so "mayo" is rewritten before "may" matches inside it.
var spanishMonths = []struct{ name, num string }{
	{"septiembre", "09"}, {"setiembre", "09"}, {"noviembre", "11"}, {"diciembre", "12"},
	{"febrero", "02"}, {"octubre", "10"}, {"agosto", "08"},
	{"enero", "01"}, {"marzo", "03"}, {"abril", "04"}, {"mayo", "05"},
	{"junio", "06"}, {"julio", "07"},
	{"ene", "01"}, {"feb", "02"}, {"mar", "03"}, {"abr", "04"}, {"may", "05"},
	{"jun", "06"}, {"jul", "07"}, {"ago", "08"}, {"sep", "09"}, {"set", "09"},
	{"oct", "10"}, {"nov", "11"}, {"dic", "12"},
}

var shortYearRe = regexp.MustCompile(`^(\d{1,2}[/-]\d{1,2}[/-])(\d{2})$`)

// telcelMidnightRe catches the Excel artifact where the date cell kept a
// midnight timestamp and the real time of day rides behind it.
var telcelMidnightRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) 00:00:00 (\d{1,2}:\d{2}(?::\d{2})?)$`)

var telcelLayouts = []string{
	"2/1/2006 15:04:05",
	"2-1-2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var movistarLayouts = []string{
	"20060102 150405",
	"20060102 15:04:05",
	"20060102 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// AT&T writes dd-mm-yy with dashes; dots and slashes show up in older
// exports and are folded into dashes before matching.
var attLayouts = []string{
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var altanLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"20060102 150405",
	"20060102 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
}

var attSeparators = strings.NewReplacer(".", "-", "/", "-")

// maxEventYear is the newest event year accepted from a carrier file.
// Anything later is corrupt data, not a future call.
func maxEventYear() int {
	return time.Now().Year() + 1
}

func finishEventAt(c Carrier, raw string, t time.Time) (time.Time, error) {
	if t.Year() > maxEventYear() {
		return time.Time{}, newFutureDateError(c, raw, t.Year())
	}
	return t, nil
}

// normalizeSpanishDate lowercases a date cell and rewrites month names
// so the numeric layouts can parse "15-Ene-2024" style values.
func normalizeSpanishDate(s string) string {
	s = strings.ToLower(s)
	for _, m := range spanishMonths {
		s = strings.ReplaceAll(s, m.name, m.num)
	}
	return s
}

// expandShortYear rewrites d-m-yy dates to four-digit years: 00..50
// lands in 20yy, 51..99 in 19yy.
func expandShortYear(date string) string {
	m := shortYearRe.FindStringSubmatch(date)
	if m == nil {
		return date
	}
	yy, _ := strconv.Atoi(m[2])
	if yy <= 50 {
		return m[1] + "20" + m[2]
	}
	return m[1] + "19" + m[2]
}

// expandShortYearToken applies expandShortYear to the date part of a
// combined "date time" string.
func expandShortYearToken(s string) string {
	date, rest, found := strings.Cut(s, " ")
	date = expandShortYear(date)
	if !found {
		return date
	}
	return date + " " + rest
}

// digitDateTime renders numeric yyyymmdd / hhmmss cell pairs, restoring
// the leading zeros the spreadsheet's number formatting ate.
func digitDateTime(date, tm string) (string, bool) {
	if !isAllDigits(date) || len(date) < 7 || len(date) > 8 {
		return "", false
	}
	t := tm
	if isAllDigits(tm) && len(tm) <= 6 {
		t = zfill(tm, 6)
	}
	return strings.TrimSpace(zfill(date, 8) + " " + t), true
}

// excelSerialDate converts a raw Excel day serial like "45504" into a
// timestamp. The accepted window keeps ordinary numeric cells
// (durations, yyyymmdd dates) from being mistaken for serials.
func excelSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 20000 || f > 80000 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// padHour left-pads a single-digit hour ("0:16:06", "9:30").
func padHour(tm string) string {
	if i := strings.Index(tm, ":"); i == 1 {
		return "0" + tm
	}
	return tm
}

func parseTelcelEventAt(dateCell, timeCell string) (time.Time, error) {
	d, tm := strings.TrimSpace(dateCell), strings.TrimSpace(timeCell)
	raw := strings.TrimSpace(d + " " + tm)
	if raw == "" {
		return time.Time{}, NewDateError(CarrierTelcel, raw, "empty date")
	}
	if t, ok := excelSerialDate(d); ok {
		if tm == "" {
			d = t.Format("2006-01-02 15:04:05")
		} else {
			d = t.Format("2006-01-02")
		}
	}
	s := normalizeSpanishDate(strings.TrimSpace(d + " " + tm))
	if m := telcelMidnightRe.FindStringSubmatch(s); m != nil {
		s = m[1] + " " + m[2]
	}
	s = expandShortYearToken(s)
	for _, layout := range telcelLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return finishEventAt(CarrierTelcel, raw, t)
		}
	}
	return time.Time{}, NewDateError(CarrierTelcel, raw, "unrecognized date format")
}

func parseMovistarEventAt(dateCell, timeCell string) (time.Time, error) {
	d, tm := strings.TrimSpace(dateCell), strings.TrimSpace(timeCell)
	if d == "" || tm == "" {
		return time.Time{}, NewDateError(CarrierMovistar, strings.TrimSpace(d+" "+tm), "date and time are both required")
	}
	raw := d + " " + tm
	s := raw
	if c, ok := digitDateTime(d, tm); ok {
		s = c
	} else {
		s = expandShortYearToken(s)
	}
	for _, layout := range movistarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return finishEventAt(CarrierMovistar, raw, t)
		}
	}
	return time.Time{}, NewDateError(CarrierMovistar, raw, "unrecognized date format")
}

func parseATTEventAt(dateCell, timeCell string) (time.Time, error) {
	d, tm := strings.TrimSpace(dateCell), strings.TrimSpace(timeCell)
	raw := strings.TrimSpace(d + " " + tm)
	if raw == "" {
		return time.Time{}, NewDateError(CarrierATT, raw, "empty date")
	}
	if t, ok := excelSerialDate(d); ok {
		if tm == "" {
			d = t.Format("2006-01-02 15:04:05")
		} else {
			d = t.Format("2006-01-02")
		}
	}
	s := strings.TrimSpace(attSeparators.Replace(d) + " " + padHour(tm))
	s = expandShortYearToken(s)
	for _, layout := range attLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return finishEventAt(CarrierATT, raw, t)
		}
	}
	return time.Time{}, NewDateError(CarrierATT, raw, "unrecognized date format")
}

func parseAltanEventAt(dateCell, timeCell string) (time.Time, error) {
	d, tm := strings.TrimSpace(dateCell), strings.TrimSpace(timeCell)
	raw := strings.TrimSpace(d + " " + tm)
	if d == "" {
		return time.Time{}, NewDateError(CarrierAltan, raw, "empty date")
	}
	s := raw
	if c, ok := digitDateTime(d, tm); ok {
		s = c
	} else {
		s = expandShortYearToken(s)
	}
	for _, layout := range altanLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return finishEventAt(CarrierAltan, raw, t)
		}
	}
	return time.Time{}, NewDateError(CarrierAltan, raw, "unrecognized date format")
}

// Package parser turns carrier CDR spreadsheets into canonical phone
// records. Each carrier (Telcel, Movistar, AT&T, Altan) ships its own
// header vocabulary, date formats and filtering rules; the package
// locates header rows inside dirty multi-block sheets, maps columns to
// a canonical schema and normalizes every value.
package parser

import (
	"fmt"

	"github.com/sabanasdb/internal/database"
)

// Carrier identifies one of the supported CDR providers.
type Carrier string

const (
	CarrierTelcel   Carrier = "TELCEL"
	CarrierMovistar Carrier = "MOVISTAR"
	CarrierATT      Carrier = "ATT"
	CarrierAltan    Carrier = "ALTAN"
)

// CarrierParser converts the raw sheets of one downloaded file into
// canonical records. Implementations are stateless and safe for
// concurrent use.
type CarrierParser interface {
	// Carrier returns the provider this parser understands.
	Carrier() Carrier

	// Parse walks every sheet of the file, extracts data blocks and
	// returns the normalized, deduplicated records tagged with fileID.
	// A file without a single detectable header row is an error; a file
	// whose rows are all filtered out is not.
	Parse(f *File, fileID int64) (*Result, error)
}

// Result is the outcome of one parse run.
type Result struct {
	Records []database.CanonicalRecord
	Stats   Stats
}

// Stats counts what happened to the input rows of one file.
type Stats struct {
	Sheets           int `json:"sheets"`
	Blocks           int `json:"blocks"`
	RowsRead         int `json:"rows_read"`
	RowsKept         int `json:"rows_kept"`
	DiscardedNumberA int `json:"discarded_number_a"`
	DiscardedDate    int `json:"discarded_date"`
	DiscardedIMEI    int `json:"discarded_imei"`
	DiscardedGeo     int `json:"discarded_geo"`
	Duplicates       int `json:"duplicates"`
	UniqueIMEIs      int `json:"unique_imeis"`
	UniqueIMSIs      int `json:"unique_imsis"`
}

// column is a canonical column name shared by all carrier parsers.
// Raw header cells are mapped onto these via per-carrier alias tables.
type column string

const (
	colPhone     column = "phone"
	colKind      column = "kind"       // free-text record type (Telcel "tipo")
	colCDRType   column = "cdr_type"   // Movistar "TIPO CDR", Altan communication type
	colEventKind column = "event_kind" // Movistar "TIPO EVENTO"
	colService   column = "service"    // AT&T "SERV"
	colRegType   column = "reg_type"   // AT&T "T_REG"
	colNumberA   column = "number_a"
	colNumberB   column = "number_b"
	colDate      column = "date"
	colTime      column = "time"
	colDuration  column = "duration"
	colIMEI      column = "imei"
	colIMSI      column = "imsi"
	colCellID    column = "cell_id"
	colLatitude  column = "latitude"
	colLongitude column = "longitude"
	colAzimuth   column = "azimuth"
)

var parsers = map[Carrier]CarrierParser{
	CarrierTelcel:   &telcelParser{},
	CarrierMovistar: &movistarParser{},
	CarrierATT:      &attParser{},
	CarrierAltan:    &altanParser{},
}

// ForCarrier returns the parser registered for c.
func ForCarrier(c Carrier) (CarrierParser, error) {
	p, ok := parsers[c]
	if !ok {
		return nil, fmt.Errorf("no parser registered for carrier %q", c)
	}
	return p, nil
}

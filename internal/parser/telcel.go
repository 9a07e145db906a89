package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/sabanasdb/internal/database"
)

// telcelParser handles Telcel's spreadsheet exports. Header cells vary
// ("Durac. Seg.", "Durac (seg)") so tokens match by containment, and
// column names by prefix.
type telcelParser struct{}

var telcelVocab = &vocabulary{
	tokens: []string{
		"telefono", "tipo", "numero a", "numero b", "fecha", "hora",
		"durac", "imei", "latitud", "longitud", "azimuth",
	},
	mode: scoreContains,
	aliases: []alias{
		{"telefono", colPhone},
		{"tipo", colKind},
		{"numero a", colNumberA},
		{"numero b", colNumberB},
		{"fecha", colDate},
		{"hora", colTime},
		{"durac", colDuration},
		{"imei", colIMEI},
		{"latitud", colLatitude},
		{"longitud", colLongitude},
		{"azimuth", colAzimuth},
	},
}

func (p *telcelParser) Carrier() Carrier { return CarrierTelcel }

// telcelRecordType maps the free-text "tipo" cell onto the record enum.
func telcelRecordType(kind string) database.RecordType {
	k := normToken(kind)
	switch {
	case strings.HasPrefix(k, "datos"):
		return database.RecordDatos
	case strings.HasPrefix(k, "mensaj"):
		if strings.Contains(k, "ent") {
			return database.RecordMensaje2ViasEnt
		}
		if strings.Contains(k, "sal") {
			return database.RecordMensaje2ViasSal
		}
	case strings.HasPrefix(k, "voz entrante"):
		return database.RecordVozEntrante
	case strings.HasPrefix(k, "voz saliente"):
		return database.RecordVozSaliente
	case strings.HasPrefix(k, "voz transfer"):
		return database.RecordVozTransfer
	case strings.HasPrefix(k, "voz transito"):
		return database.RecordVozTransito
	}
	return database.RecordNinguno
}

func (p *telcelParser) Parse(f *File, fileID int64) (*Result, error) {
	blocks := collectBlocks(f, telcelVocab)
	if len(blocks) == 0 {
		return nil, NewHeaderError(f.Path, CarrierTelcel)
	}

	res := &Result{Stats: Stats{Sheets: len(f.Sheets), Blocks: len(blocks)}}

	type key struct {
		a      string
		at     time.Time
		latRaw string
		lonRaw string
	}
	index := make(map[key]int)
	imeis := make(map[string]struct{})
	imsis := make(map[string]struct{})

	for _, b := range blocks {
		for r := 0; r < b.Len(); r++ {
			res.Stats.RowsRead++

			// Non-MSISDN values in the number columns (short codes,
			// service names) are retained verbatim.
			rawA := b.Cell(r, colNumberA)
			cleanA := cleanMSISDN(rawA)
			numberA := cleanA
			if numberA == "" {
				numberA = rawA
			}
			if numberA == "" {
				res.Stats.DiscardedNumberA++
				continue
			}
			if len(cleanA) > 12 {
				imsis[cleanA] = struct{}{}
			}

			rawB := b.Cell(r, colNumberB)
			numberB := cleanMSISDN(rawB)
			if numberB == "" {
				numberB = rawB
			}

			eventAt, err := parseTelcelEventAt(b.Cell(r, colDate), b.Cell(r, colTime))
			if err != nil {
				if errors.Is(err, ErrYearOutOfRange) {
					return nil, err
				}
				res.Stats.DiscardedDate++
				continue
			}

			imei := cleanIMEI(b.Cell(r, colIMEI), true)
			if imei == "" {
				res.Stats.DiscardedIMEI++
				continue
			}
			imeis[imei] = struct{}{}

			latRaw := b.Cell(r, colLatitude)
			lonRaw := b.Cell(r, colLongitude)
			latDec := parseLatitude(latRaw)
			lonDec := parseLongitude(lonRaw)
			var az *float64
			if v, ok := parseFloat(b.Cell(r, colAzimuth)); ok {
				az = &v
			}
			if latRaw == "" || lonRaw == "" || latDec == nil || lonDec == nil || az == nil || *az == 0 {
				res.Stats.DiscardedGeo++
				continue
			}

			phone := cleanMSISDN(b.Cell(r, colPhone))
			if phone == "" {
				phone = cleanA
			}

			rec := database.CanonicalRecord{
				FileID:           fileID,
				NumberA:          numberA,
				NumberB:          numberB,
				RecordType:       telcelRecordType(b.Cell(r, colKind)),
				EventAt:          eventAt,
				DurationSec:      parseDuration(b.Cell(r, colDuration)),
				LatitudeRaw:      latRaw,
				LongitudeRaw:     lonRaw,
				Azimuth:          az,
				LatitudeDec:      latDec,
				LongitudeDec:     lonDec,
				TargetCoordinate: targetCoordinate(latDec, lonDec),
				IMEI:             imei,
				Phone:            phone,
			}

			k := key{a: numberA, at: eventAt, latRaw: latRaw, lonRaw: lonRaw}
			if i, dup := index[k]; dup {
				res.Stats.Duplicates++
				if rec.DurationSec > res.Records[i].DurationSec {
					res.Records[i] = rec
				}
				continue
			}
			index[k] = len(res.Records)
			res.Records = append(res.Records, rec)
		}
	}

	res.Stats.RowsKept = len(res.Records)
	res.Stats.UniqueIMEIs = len(imeis)
	res.Stats.UniqueIMSIs = len(imsis)
	return res, nil
}

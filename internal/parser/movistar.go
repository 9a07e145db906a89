package parser

import (
	"errors"
	"sort"
	"time"

	"github.com/sabanasdb/internal/database"
)

// movistarParser handles Movistar exports. Headers are stable enough
// for exact token matching; sheets routinely stack several report
// blocks with repeated headers.
type movistarParser struct{}

var movistarVocab = &vocabulary{
	tokens: []string{
		"tipo cdr", "numero a", "numero b", "tipo evento", "fecha evento",
		"hora evento", "duracion", "imei", "imsi", "codbts", "latitud", "longitud",
	},
	mode: scoreExact,
	aliases: []alias{
		{"tipo cdr", colCDRType},
		{"tipo evento", colEventKind},
		{"numero a", colNumberA},
		{"numero b", colNumberB},
		{"fecha evento", colDate},
		{"hora evento", colTime},
		{"duracion", colDuration},
		{"imei", colIMEI},
		{"imsi", colIMSI},
		{"codbts", colCellID},
		{"latitud", colLatitude},
		{"longitud", colLongitude},
	},
}

func (p *movistarParser) Carrier() Carrier { return CarrierMovistar }

func movistarRecordType(cdr, event string) database.RecordType {
	c, e := normToken(cdr), normToken(event)
	switch {
	case c == "gsm" && e == "entrante":
		return database.RecordVozEntrante
	case c == "gsm" && e == "saliente":
		return database.RecordVozSaliente
	case c == "sms" && e == "entrante":
		return database.RecordMensaje2ViasEnt
	case c == "sms" && e == "saliente":
		return database.RecordMensaje2ViasSal
	}
	return database.RecordNinguno
}

func (p *movistarParser) Parse(f *File, fileID int64) (*Result, error) {
	blocks := collectBlocks(f, movistarVocab)
	if len(blocks) == 0 {
		return nil, NewHeaderError(f.Path, CarrierMovistar)
	}

	res := &Result{Stats: Stats{Sheets: len(f.Sheets), Blocks: len(blocks)}}

	// Rows with decimal coordinates dedupe on position, the rest on the
	// call tuple.
	type coordKey struct {
		a        string
		at       time.Time
		lat, lon float64
	}
	type bareKey struct {
		a, b string
		at   time.Time
		rt   database.RecordType
	}
	coordIdx := make(map[coordKey]int)
	bareIdx := make(map[bareKey]int)
	imeis := make(map[string]struct{})
	imsis := make(map[string]struct{})

	for _, b := range blocks {
		for r := 0; r < b.Len(); r++ {
			res.Stats.RowsRead++

			numberA := cleanMSISDN(b.Cell(r, colNumberA))
			if numberA == "" {
				res.Stats.DiscardedNumberA++
				continue
			}

			eventAt, err := parseMovistarEventAt(b.Cell(r, colDate), b.Cell(r, colTime))
			if err != nil {
				if errors.Is(err, ErrYearOutOfRange) {
					return nil, err
				}
				res.Stats.DiscardedDate++
				continue
			}

			cdr := b.Cell(r, colCDRType)
			imei := cleanIMEI(b.Cell(r, colIMEI), false)
			if normToken(cdr) == "gsm" && imei == "" {
				res.Stats.DiscardedIMEI++
				continue
			}
			if imei != "" {
				imeis[imei] = struct{}{}
			}
			if imsi := digitsOnly(b.Cell(r, colIMSI)); imsi != "" {
				imsis[imsi] = struct{}{}
			}

			latRaw := b.Cell(r, colLatitude)
			lonRaw := b.Cell(r, colLongitude)
			latDec := parseLatitude(latRaw)
			lonDec := parseLongitude(lonRaw)
			azimuth := 360.0

			rec := database.CanonicalRecord{
				FileID:           fileID,
				NumberA:          numberA,
				NumberB:          cleanMSISDN(b.Cell(r, colNumberB)),
				RecordType:       movistarRecordType(cdr, b.Cell(r, colEventKind)),
				EventAt:          eventAt,
				DurationSec:      parseDuration(b.Cell(r, colDuration)),
				LatitudeRaw:      latRaw,
				LongitudeRaw:     lonRaw,
				Azimuth:          &azimuth,
				LatitudeDec:      latDec,
				LongitudeDec:     lonDec,
				TargetCoordinate: targetCoordinate(latDec, lonDec),
				IMEI:             imei,
				Phone:            numberA,
			}

			if latDec != nil && lonDec != nil {
				k := coordKey{a: numberA, at: eventAt, lat: *latDec, lon: *lonDec}
				if i, dup := coordIdx[k]; dup {
					res.Stats.Duplicates++
					if rec.DurationSec > res.Records[i].DurationSec {
						res.Records[i] = rec
					}
					continue
				}
				coordIdx[k] = len(res.Records)
			} else {
				k := bareKey{a: numberA, b: rec.NumberB, at: eventAt, rt: rec.RecordType}
				if i, dup := bareIdx[k]; dup {
					res.Stats.Duplicates++
					if rec.DurationSec > res.Records[i].DurationSec {
						res.Records[i] = rec
					}
					continue
				}
				bareIdx[k] = len(res.Records)
			}
			res.Records = append(res.Records, rec)
		}
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if !a.EventAt.Equal(b.EventAt) {
			return a.EventAt.Before(b.EventAt)
		}
		if a.NumberA != b.NumberA {
			return a.NumberA < b.NumberA
		}
		return a.NumberB < b.NumberB
	})

	res.Stats.RowsKept = len(res.Records)
	res.Stats.UniqueIMEIs = len(imeis)
	res.Stats.UniqueIMSIs = len(imsis)
	return res, nil
}

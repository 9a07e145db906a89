package parser

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sabanasdb/internal/database"
)

// attParser handles AT&T exports: tower coordinates and azimuths come
// as ":"-separated lists, the subscriber number hides in the file name
// (modal NUM A when the name carries none) and the IMEI column name
// drifts between revisions.
type attParser struct{}

var attVocab = &vocabulary{
	tokens: []string{
		"telefono", "tipo", "numero a", "numero b", "num a", "fecha", "hora",
		"durac", "dur", "imei", "num a imei", "numero a imei", "num a imsi",
		"imsi", "latitud", "longitud", "azimuth", "serv", "t reg", "dest",
		"id celda", "pais", "causa t", "tipo com",
	},
	mode: scoreContains,
	aliases: []alias{
		{"numero a imei", colIMEI},
		{"num a imei", colIMEI},
		{"numero a imsi", colIMSI},
		{"num a imsi", colIMSI},
		{"numero a", colNumberA},
		{"num a", colNumberA},
		{"numero b", colNumberB},
		{"dest", colNumberB},
		{"telefono", colPhone},
		{"fecha", colDate},
		{"hora", colTime},
		{"dur", colDuration},
		{"serv", colService},
		{"t reg", colRegType},
		{"tipo", colKind},
		{"latitud", colLatitude},
		{"longitud", colLongitude},
		{"azimuth", colAzimuth},
		{"imei", colIMEI},
		{"id celda", colCellID},
	},
}

var digitRunRe = regexp.MustCompile(`\d{8,}`)

func (p *attParser) Carrier() Carrier { return CarrierATT }

// subscriberFromPath pulls the subscriber MSISDN AT&T encodes into its
// export file names: the longest run of 8+ digits, country code peeled
// like any other number.
func subscriberFromPath(path string) string {
	best := ""
	for _, run := range digitRunRe.FindAllString(filepath.Base(path), -1) {
		if len(run) > len(best) {
			best = run
		}
	}
	for len(best) > 10 && strings.HasPrefix(best, "52") {
		best = best[2:]
	}
	return best
}

// attIMEIFallback maps any header merely containing "imei" when the
// alias table found nothing.
func attIMEIFallback(b *Block) {
	if b.Has(colIMEI) {
		return
	}
	for i, h := range b.Header {
		if strings.Contains(normToken(h), "imei") && !columnEmpty(b.Rows, i) {
			b.Columns[colIMEI] = i
			return
		}
	}
}

// attRecordType derives the record enum from the SERV/T_REG pair, using
// the subscriber number to orient direction-less voice and SMS rows and
// the free-text "tipo" column as a last resort.
func attRecordType(serv, reg, numberA, phone, kind string) database.RecordType {
	s, r := normToken(serv), normToken(reg)
	in := r == "ent" || r == "entrante" || r == "in" || r == "inbound"
	out := r == "sal" || r == "saliente" || r == "out" || r == "outbound"
	switch {
	case s == "data" || s == "datos":
		return database.RecordDatos
	case s == "voz" || s == "llamada" || s == "call":
		if in {
			return database.RecordVozEntrante
		}
		if out {
			return database.RecordVozSaliente
		}
		if r == "" && numberA != "" && numberA == phone {
			return database.RecordVozSaliente
		}
		return database.RecordNinguno
	case s == "sms" || s == "mensaje":
		if in {
			return database.RecordMensaje2ViasEnt
		}
		if out {
			return database.RecordMensaje2ViasSal
		}
		if r == "" && numberA != "" && numberA == phone {
			return database.RecordMensaje2ViasSal
		}
		return database.RecordNinguno
	case s == "mms":
		return database.RecordMensajeriaMultimedia
	}
	return telcelRecordType(kind)
}

func (p *attParser) Parse(f *File, fileID int64) (*Result, error) {
	blocks := collectBlocks(f, attVocab)
	if len(blocks) == 0 {
		return nil, NewHeaderError(f.Path, CarrierATT)
	}

	res := &Result{Stats: Stats{Sheets: len(f.Sheets), Blocks: len(blocks)}}
	subscriber := subscriberFromPath(f.Path)
	if subscriber == "" {
		subscriber = inferSubscriber(blocks)
	}

	type coordKey struct {
		a      string
		at     time.Time
		latRaw string
		lonRaw string
	}
	type bareKey struct {
		a, b string
		at   time.Time
	}
	coordIdx := make(map[coordKey]int)
	bareIdx := make(map[bareKey]int)
	imeis := make(map[string]struct{})
	imsis := make(map[string]struct{})

	for bi := range blocks {
		b := &blocks[bi]
		attIMEIFallback(b)
		for r := 0; r < b.Len(); r++ {
			res.Stats.RowsRead++

			phone := cleanMSISDN(b.Cell(r, colPhone))
			if phone == "" {
				phone = subscriber
			}

			rawA := b.Cell(r, colNumberA)
			cleanA := cleanMSISDN(rawA)
			numberA := cleanA
			if numberA == "" {
				numberA = rawA
			}
			if numberA == "" {
				numberA = phone
			}
			if numberA == "" {
				res.Stats.DiscardedNumberA++
				continue
			}

			rawB := b.Cell(r, colNumberB)
			numberB := cleanMSISDN(rawB)
			if numberB == "" {
				numberB = rawB
			}

			eventAt, err := parseATTEventAt(b.Cell(r, colDate), b.Cell(r, colTime))
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
			if imsi := digitsOnly(b.Cell(r, colIMSI)); imsi != "" {
				imsis[imsi] = struct{}{}
			}

			latRaw := pickLastNonZero(b.Cell(r, colLatitude))
			lonRaw := pickLastNonZero(b.Cell(r, colLongitude))
			latDec := parseLatitude(latRaw)
			lonDec := parseLongitude(lonRaw)
			az := parseAzimuth(b.Cell(r, colAzimuth))
			if latRaw == "" || lonRaw == "" || latDec == nil || lonDec == nil || az == nil || *az == 0 {
				res.Stats.DiscardedGeo++
				continue
			}

			rec := database.CanonicalRecord{
				FileID:           fileID,
				NumberA:          numberA,
				NumberB:          numberB,
				RecordType:       attRecordType(b.Cell(r, colService), b.Cell(r, colRegType), cleanA, phone, b.Cell(r, colKind)),
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

			if latRaw != "" && lonRaw != "" {
				k := coordKey{a: numberA, at: eventAt, latRaw: latRaw, lonRaw: lonRaw}
				if i, dup := coordIdx[k]; dup {
					res.Stats.Duplicates++
					if rec.DurationSec > res.Records[i].DurationSec {
						res.Records[i] = rec
					}
					continue
				}
				coordIdx[k] = len(res.Records)
			} else {
				k := bareKey{a: numberA, b: numberB, at: eventAt}
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

	res.Stats.RowsKept = len(res.Records)
	res.Stats.UniqueIMEIs = len(imeis)
	res.Stats.UniqueIMSIs = len(imsis)
	return res, nil
}

package parser

import (
	"errors"
	"sort"
	"time"

	"github.com/sabanasdb/internal/database"
)

// altanParser handles Altan (the MVNO wholesale network) exports.
// Rows name origin and destination numbers but not direction, so the
// subscriber is inferred first and directions derived from it.
type altanParser struct{}

var altanVocab = &vocabulary{
	tokens: []string{
		"tipo de comunicacion", "numero origen", "numero destino", "duracion",
		"fecha de la comunicacion", "hora de la comunicacion",
		"etiqueta de localizacion", "latitud", "longitud", "imei", "imsi",
	},
	mode: scoreExact,
	aliases: []alias{
		{"tipo de comunicacion", colCDRType},
		{"numero origen", colNumberA},
		{"numero destino", colNumberB},
		{"duracion", colDuration},
		{"fecha de la comunicacion", colDate},
		{"hora de la comunicacion", colTime},
		{"etiqueta de localizacion", colCellID},
		{"latitud", colLatitude},
		{"longitud", colLongitude},
		{"imei", colIMEI},
		{"imsi", colIMSI},
	},
}

const (
	altanVoz     = "VOZ"
	altanDatos   = "DATOS"
	altanSMS     = "SMS"
	altanReenvio = "REENVIO"
	altanOtro    = "OTRO"
)

func (p *altanParser) Carrier() Carrier { return CarrierAltan }

func altanKind(cell string) string {
	switch normToken(cell) {
	case "voz":
		return altanVoz
	case "datos":
		return altanDatos
	case "servicio de mensaje corto":
		return altanSMS
	case "servicio suplementario de reenvio":
		return altanReenvio
	}
	return altanOtro
}

// inferSubscriber picks the most frequent cleaned origin number across
// all blocks; ties break to the lexicographically smallest so repeat
// runs stay deterministic.
func inferSubscriber(blocks []Block) string {
	counts := make(map[string]int)
	for _, b := range blocks {
		for r := 0; r < b.Len(); r++ {
			if a := cleanMSISDN(b.Cell(r, colNumberA)); a != "" {
				counts[a]++
			}
		}
	}
	best, bestN := "", 0
	for a, n := range counts {
		if n > bestN || (n == bestN && bestN > 0 && a < best) {
			best, bestN = a, n
		}
	}
	return best
}

func altanDirection(a, b, subscriber string) string {
	if subscriber == "" {
		return ""
	}
	if a == subscriber && b != subscriber {
		return "SALIENTE"
	}
	if b == subscriber && a != subscriber {
		return "ENTRANTE"
	}
	return ""
}

func altanRecordType(kind, dir string) database.RecordType {
	switch kind {
	case altanDatos:
		return database.RecordDatos
	case altanVoz:
		switch dir {
		case "ENTRANTE":
			return database.RecordVozEntrante
		case "SALIENTE":
			return database.RecordVozSaliente
		}
	case altanSMS:
		switch dir {
		case "ENTRANTE":
			return database.RecordMensaje2ViasEnt
		case "SALIENTE":
			return database.RecordMensaje2ViasSal
		}
	case altanReenvio:
		switch dir {
		case "ENTRANTE":
			return database.RecordReenvioEnt
		case "SALIENTE":
			return database.RecordReenvioSal
		}
	}
	return database.RecordNinguno
}

func (p *altanParser) Parse(f *File, fileID int64) (*Result, error) {
	blocks := collectBlocks(f, altanVocab)
	if len(blocks) == 0 {
		return nil, NewHeaderError(f.Path, CarrierAltan)
	}

	res := &Result{Stats: Stats{Sheets: len(f.Sheets), Blocks: len(blocks)}}
	subscriber := inferSubscriber(blocks)

	type key struct {
		a, b     string
		rt       database.RecordType
		at       time.Time
		lat, lon float64
	}
	index := make(map[key]int)
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
			numberB := cleanMSISDN(b.Cell(r, colNumberB))

			eventAt, err := parseAltanEventAt(b.Cell(r, colDate), b.Cell(r, colTime))
			if err != nil {
				if errors.Is(err, ErrYearOutOfRange) {
					return nil, err
				}
				res.Stats.DiscardedDate++
				continue
			}

			latRaw := b.Cell(r, colLatitude)
			lonRaw := b.Cell(r, colLongitude)
			latDec := parseLatitude(latRaw)
			lonDec := parseLongitude(lonRaw)
			if latDec == nil || lonDec == nil {
				res.Stats.DiscardedGeo++
				continue
			}

			kind := altanKind(b.Cell(r, colCDRType))
			imei := cleanIMEI(b.Cell(r, colIMEI), false)
			if kind == altanVoz && imei == "" {
				res.Stats.DiscardedIMEI++
				continue
			}
			if imei != "" {
				imeis[imei] = struct{}{}
			}
			if imsi := digitsOnly(b.Cell(r, colIMSI)); imsi != "" {
				imsis[imsi] = struct{}{}
			}

			phone := subscriber
			if phone == "" {
				phone = numberA
			}
			azimuth := 360.0

			rec := database.CanonicalRecord{
				FileID:           fileID,
				NumberA:          numberA,
				NumberB:          numberB,
				RecordType:       altanRecordType(kind, altanDirection(numberA, numberB, subscriber)),
				EventAt:          eventAt,
				DurationSec:      parseDuration(b.Cell(r, colDuration)),
				LatitudeRaw:      latRaw,
				LongitudeRaw:     lonRaw,
				Azimuth:          &azimuth,
				LatitudeDec:      latDec,
				LongitudeDec:     lonDec,
				TargetCoordinate: targetCoordinate(latDec, lonDec),
				IMEI:             imei,
				Phone:            phone,
			}

			k := key{a: numberA, b: numberB, rt: rec.RecordType, at: eventAt, lat: *latDec, lon: *lonDec}
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

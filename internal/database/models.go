package database

import (
	"time"
)

// FileState is the lifecycle state of an uploaded sábana file.
type FileState string

const (
	StateUploaded   FileState = "uploaded"
	StateQueued     FileState = "queued"
	StateProcessing FileState = "processing"
	StateProcessed  FileState = "processed"
	StateError      FileState = "error"
)

// Valid reports whether s is one of the five known states.
func (s FileState) Valid() bool {
	switch s {
	case StateUploaded, StateQueued, StateProcessing, StateProcessed, StateError:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s FileState) Terminal() bool {
	return s == StateProcessed || s == StateError
}

// RecordType classifies a canonical CDR row.
type RecordType int

const (
	RecordDatos                RecordType = 0
	RecordMensajeriaMultimedia RecordType = 1
	RecordMensaje2ViasEnt      RecordType = 2
	RecordMensaje2ViasSal      RecordType = 3
	RecordVozEntrante          RecordType = 4
	RecordVozSaliente          RecordType = 5
	RecordVozTransfer          RecordType = 6
	RecordVozTransito          RecordType = 7
	RecordNinguno              RecordType = 8
	RecordWifi                 RecordType = 9
	RecordReenvioSal           RecordType = 10
	RecordReenvioEnt           RecordType = 11
)

var recordTypeNames = map[RecordType]string{
	RecordDatos:                "datos",
	RecordMensajeriaMultimedia: "mensajeria_multimedia",
	RecordMensaje2ViasEnt:      "mensaje_2vias_entrante",
	RecordMensaje2ViasSal:      "mensaje_2vias_saliente",
	RecordVozEntrante:          "voz_entrante",
	RecordVozSaliente:          "voz_saliente",
	RecordVozTransfer:          "voz_transfer",
	RecordVozTransito:          "voz_transito",
	RecordNinguno:              "ninguno",
	RecordWifi:                 "wifi",
	RecordReenvioSal:           "reenvio_saliente",
	RecordReenvioEnt:           "reenvio_entrante",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return "ninguno"
}

// Voice reports whether t is one of the voice subtypes.
func (t RecordType) Voice() bool {
	switch t {
	case RecordVozEntrante, RecordVozSaliente, RecordVozTransfer, RecordVozTransito:
		return true
	}
	return false
}

// FileRecord is one row of the file index (sabanas "archivos" table).
// The id is assigned upstream when the file lands on the FTP drop.
type FileRecord struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	State       FileState  `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CarrierID   *int64     `json:"carrier_id,omitempty"`
	CarrierName string     `json:"carrier_name,omitempty"`
}

// CanonicalRecord is one normalized CDR row (sabanas "registros_telefonicos"
// table). String fields use "" for absent; nullable numerics are pointers so
// 0 and unknown stay distinct.
type CanonicalRecord struct {
	FileID       int64      `json:"file_id"`
	NumberA      string     `json:"number_a"`
	NumberB      string     `json:"number_b,omitempty"`
	RecordType   RecordType `json:"record_type"`
	EventAt      time.Time  `json:"event_at"`
	DurationSec  int        `json:"duration_sec"`
	LatitudeRaw  string     `json:"latitude_raw,omitempty"`
	LongitudeRaw string     `json:"longitude_raw,omitempty"`
	Azimuth      *float64   `json:"azimuth,omitempty"`
	LatitudeDec  *float64   `json:"latitude_dec,omitempty"`
	LongitudeDec *float64   `json:"longitude_dec,omitempty"`
	Altitude     float64    `json:"altitude"`
	// TargetCoordinate is tri-state: false when the row has no decimal
	// coordinates, nil otherwise. Nothing currently sets it to true.
	TargetCoordinate *bool  `json:"target_coordinate,omitempty"`
	IMEI             string `json:"imei,omitempty"`
	Phone            string `json:"phone,omitempty"`
}

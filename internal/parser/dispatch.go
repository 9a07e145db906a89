package parser

import (
	"path/filepath"
	"strings"
)

// carrierIDs is the fixed company-id table maintained upstream.
var carrierIDs = map[int64]Carrier{
	1: CarrierTelcel, 2: CarrierTelcel, 3: CarrierTelcel, 14: CarrierTelcel,
	4: CarrierATT, 13: CarrierATT,
	5:  CarrierMovistar,
	12: CarrierAltan,
}

// Detect picks the carrier for a file: company id first, then tokens in
// the company name, then tokens in the downloaded file name. Telcel is
// the default because its format dominates the intake.
func Detect(carrierID *int64, carrierName, localPath string) Carrier {
	if carrierID != nil {
		if c, ok := carrierIDs[*carrierID]; ok {
			return c
		}
	}
	if c, ok := carrierFromName(carrierName); ok {
		return c
	}
	if c, ok := carrierFromName(filepath.Base(localPath)); ok {
		return c
	}
	return CarrierTelcel
}

func carrierFromName(s string) (Carrier, bool) {
	n := normToken(s)
	switch {
	case n == "":
		return "", false
	case strings.Contains(n, "altan"):
		return CarrierAltan, true
	case strings.Contains(n, "movistar"), strings.Contains(n, "telefonica"):
		return CarrierMovistar, true
	case strings.Contains(n, "telcel"):
		return CarrierTelcel, true
	case strings.Contains(n, "at&t"), strings.Contains(n, "att"):
		return CarrierATT, true
	}
	return "", false
}

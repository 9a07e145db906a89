package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonDigitsRe = regexp.MustCompile(`\D+`)

// dmsRe matches degree/minute/second coordinates like `19°24'36.5"N`.
// Seconds and the hemisphere letter are optional; smart quotes are
// normalized to ASCII before matching.
var dmsRe = regexp.MustCompile(`(?i)^\s*(-?\d+(?:[.,]\d+)?)\s*[°º\s]\s*(\d+(?:[.,]\d+)?)\s*['\s]\s*(\d+(?:[.,]\d+)?)?\s*"?\s*([NSEWO])?\s*"?\s*$`)

var quoteNormalizer = strings.NewReplacer(
	"’", "'", "′", "'", "´", "'", "`", "'",
	"“", `"`, "”", `"`, "″", `"`,
)

// stripAccents removes diacritics: "NÚMERO" -> "NUMERO", "Altán" -> "Altan".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// normToken canonicalizes a header or enum cell for loose comparison:
// accents stripped, lowercased, dots and underscores turned into
// spaces, whitespace collapsed.
func normToken(s string) string {
	s = stripAccents(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// isNullToken reports spreadsheet renderings of "no value".
func isNullToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null", "na", "n/a":
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(s string) string {
	return nonDigitsRe.ReplaceAllString(s, "")
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// parseFloat accepts both dot and comma decimal separators and rejects
// null tokens, NaN and infinities.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if isNullToken(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// cleanMSISDN reduces a phone field to a bare national number: strip
// everything but digits, reject all-zero values and the non-numeric
// tokens carriers leak into number columns, and peel the leading 52
// country code while more than ten digits remain. Returns "" when the
// value carries no usable number.
func cleanMSISDN(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ""
	}
	low := strings.ToLower(raw)
	if low == "ims" || low == "internet.itelcel.com" || strings.HasPrefix(low, "telcel") {
		return ""
	}
	digits := digitsOnly(raw)
	if digits == "" || strings.Trim(digits, "0") == "" {
		return ""
	}
	for len(digits) > 10 && strings.HasPrefix(digits, "52") {
		digits = digits[2:]
	}
	return digits
}

// cleanIMEI keeps a 15-digit device id. When truncate is set, longer
// digit runs are cut down to 15 first (Telcel and AT&T export check
// digits and padding); anything that does not end up as exactly 15
// digits is treated as absent.
func cleanIMEI(s string, truncate bool) string {
	digits := digitsOnly(s)
	if truncate && len(digits) > 15 {
		digits = digits[:15]
	}
	if len(digits) != 15 {
		return ""
	}
	return digits
}

// parseCoordinate understands decimal degrees (dot or comma separator)
// and DMS with an optional hemisphere letter; S, W and O (Oeste) flip
// the sign.
func parseCoordinate(s string) (float64, bool) {
	s = quoteNormalizer.Replace(strings.TrimSpace(s))
	if isNullToken(s) {
		return 0, false
	}
	if !strings.ContainsAny(s, "°º'\"") {
		if f, ok := parseFloat(s); ok {
			return f, true
		}
	}
	m := dmsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	deg, ok := parseFloat(m[1])
	if !ok {
		return 0, false
	}
	min, _ := parseFloat(m[2])
	sec := 0.0
	if m[3] != "" {
		sec, _ = parseFloat(m[3])
	}
	v := math.Abs(deg) + min/60 + sec/3600
	if deg < 0 {
		v = -v
	}
	switch strings.ToUpper(m[4]) {
	case "S", "W", "O":
		v = -math.Abs(v)
	}
	return v, true
}

// parseLatitude returns a finite latitude in [-90, 90], or nil.
func parseLatitude(s string) *float64 {
	v, ok := parseCoordinate(s)
	if !ok || v < -90 || v > 90 {
		return nil
	}
	return &v
}

// parseLongitude returns a finite longitude in [-180, 180], or nil.
func parseLongitude(s string) *float64 {
	v, ok := parseCoordinate(s)
	if !ok || v < -180 || v > 180 {
		return nil
	}
	return &v
}

// pickLastNonZero resolves AT&T tower lists like "[19.43:0:19.45]" to
// the last non-zero element. Plain scalars pass through untouched; a
// list of only zeros falls back to its last element.
func pickLastNonZero(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return t
	}
	best, last := "", ""
	for _, p := range strings.Split(strings.Trim(t, "[]"), ":") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		last = p
		if f, ok := parseFloat(p); ok {
			if f != 0 {
				best = p
			}
		} else if !isNullToken(p) {
			best = p
		}
	}
	if best == "" {
		return last
	}
	return best
}

// parseAzimuth reads a sector azimuth. AT&T list cells take the first
// parseable element; everything else is a plain float.
func parseAzimuth(s string) *float64 {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
		for _, p := range strings.Split(strings.Trim(t, "[]"), ":") {
			if f, ok := parseFloat(p); ok {
				return &f
			}
		}
		return nil
	}
	if f, ok := parseFloat(t); ok {
		return &f
	}
	return nil
}

// targetCoordinate is false when the row carries no decimal
// coordinates at all and null otherwise. Nothing sets it to true.
func targetCoordinate(lat, lon *float64) *bool {
	if lat == nil && lon == nil {
		f := false
		return &f
	}
	return nil
}

// parseDuration accepts integer seconds, mm:ss, hh:mm:ss or float
// seconds and returns a non-negative second count; unparseable values
// count as zero.
func parseDuration(s string) int {
	t := strings.TrimSpace(s)
	if isNullToken(t) {
		return 0
	}
	if isAllDigits(t) {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	if strings.Contains(t, ":") {
		parts := strings.Split(t, ":")
		total := 0
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return 0
			}
			total = total*60 + n
		}
		if len(parts) < 2 || len(parts) > 3 {
			return 0
		}
		return total
	}
	if f, ok := parseFloat(t); ok && f > 0 {
		return int(f)
	}
	return 0
}

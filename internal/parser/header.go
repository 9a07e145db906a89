package parser

import "strings"

// headerScanLimit bounds how deep into a sheet header rows are looked
// for. Blocks opened by a detected header still run to the end of the
// sheet.
const headerScanLimit = 600

// headerThreshold is the minimum number of distinct expected tokens a
// row must carry to count as a header.
const headerThreshold = 5

type scoreMode int

const (
	// scoreContains matches a token anywhere inside a cell
	// ("Durac. Seg." carries "durac").
	scoreContains scoreMode = iota
	// scoreExact requires the whole normalized cell to equal a token.
	scoreExact
)

// alias maps a normalized header prefix to a canonical column.
type alias struct {
	prefix string
	col    column
}

// vocabulary is one carrier's header fingerprint: the expected tokens
// used for scoring and the alias table used for column mapping.
type vocabulary struct {
	tokens  []string
	mode    scoreMode
	aliases []alias
}

// Block is one contiguous run of data rows under a single header row.
// Rows that are entirely empty or that re-echo the header are already
// removed; columns with no data at all are left unmapped.
type Block struct {
	Sheet     string
	HeaderRow int
	Header    []string
	Columns   map[column]int
	Rows      [][]string
}

// Has reports whether the block carries canonical column c.
func (b *Block) Has(c column) bool {
	_, ok := b.Columns[c]
	return ok
}

// Cell returns the trimmed value under canonical column c for the given
// data row, or "" when the column is absent or the row is short.
func (b *Block) Cell(row int, c column) string {
	i, ok := b.Columns[c]
	if !ok || row >= len(b.Rows) {
		return ""
	}
	r := b.Rows[row]
	if i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// Len returns the number of data rows in the block.
func (b *Block) Len() int {
	return len(b.Rows)
}

// headerScore counts how many distinct expected tokens appear in the
// row's non-empty cells.
func headerScore(row []string, v *vocabulary) int {
	if len(row) == 0 {
		return 0
	}
	normed := make([]string, 0, len(row))
	for _, cell := range row {
		if n := normToken(cell); n != "" {
			normed = append(normed, n)
		}
	}
	if len(normed) == 0 {
		return 0
	}
	score := 0
	for _, tok := range v.tokens {
		for _, n := range normed {
			if (v.mode == scoreExact && n == tok) ||
				(v.mode == scoreContains && strings.Contains(n, tok)) {
				score++
				break
			}
		}
	}
	return score
}

// exactTokenHits counts cells whose whole normalized value is an
// expected token. Data rows that re-echo the header score high here
// regardless of the carrier's scoring mode.
func exactTokenHits(row []string, v *vocabulary) int {
	hits := 0
	for _, cell := range row {
		n := normToken(cell)
		if n == "" {
			continue
		}
		for _, tok := range v.tokens {
			if n == tok {
				hits++
				break
			}
		}
	}
	return hits
}

// collectBlocks runs findBlocks over every sheet of the file.
func collectBlocks(f *File, v *vocabulary) []Block {
	var out []Block
	for _, s := range f.Sheets {
		out = append(out, findBlocks(s, v)...)
	}
	return out
}

// findBlocks locates every header row in the sheet and cuts the rows
// between consecutive headers into typed blocks.
func findBlocks(sheet Sheet, v *vocabulary) []Block {
	limit := len(sheet.Rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	var headers []int
	for i := 0; i < limit; i++ {
		if headerScore(sheet.Rows[i], v) >= headerThreshold {
			headers = append(headers, i)
		}
	}

	var blocks []Block
	for n, h := range headers {
		end := len(sheet.Rows)
		if n+1 < len(headers) {
			end = headers[n+1]
		}
		data := sheet.Rows[h+1 : end]

		cols := mapColumns(sheet.Rows[h], data, v.aliases)
		if len(cols) == 0 {
			continue
		}

		rows := make([][]string, 0, len(data))
		for _, r := range data {
			if rowEmpty(r) || exactTokenHits(r, v) >= 2 {
				continue
			}
			rows = append(rows, r)
		}
		if len(rows) == 0 {
			continue
		}

		blocks = append(blocks, Block{
			Sheet:     sheet.Name,
			HeaderRow: h,
			Header:    sheet.Rows[h],
			Columns:   cols,
			Rows:      rows,
		})
	}
	return blocks
}

// mapColumns resolves raw header cells to canonical columns by longest
// prefix match. Columns whose data cells are all empty are skipped so
// a blank duplicate header never shadows the populated one; when two
// populated columns map to the same canonical name the first wins.
func mapColumns(header []string, data [][]string, aliases []alias) map[column]int {
	cols := make(map[column]int)
	for i, cell := range header {
		h := normToken(cell)
		if h == "" {
			continue
		}
		best := ""
		var bestCol column
		for _, a := range aliases {
			if strings.HasPrefix(h, a.prefix) && len(a.prefix) > len(best) {
				best, bestCol = a.prefix, a.col
			}
		}
		if best == "" {
			continue
		}
		if _, taken := cols[bestCol]; taken {
			continue
		}
		if columnEmpty(data, i) {
			continue
		}
		cols[bestCol] = i
	}
	return cols
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func columnEmpty(data [][]string, i int) bool {
	for _, r := range data {
		if i < len(r) && strings.TrimSpace(r[i]) != "" {
			return false
		}
	}
	return true
}

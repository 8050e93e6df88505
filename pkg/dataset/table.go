package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/HatiCode/romcv/pkg/romerr"
)

// Table is an ordered, whitespace-delimited table: one header line of column
// names followed by one row of values per record.
//
// Tables are treated as immutable once built. Methods that derive a new table
// share row slices with the receiver rather than copying values.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.Rows) }

// Width returns the number of columns declared by the header.
func (t Table) Width() int { return len(t.Header) }

// Slice returns the records in the half-open range [lo, hi), header preserved.
// The range is clipped to the table.
func (t Table) Slice(lo, hi int) Table {
	lo, hi = clip(lo, hi, len(t.Rows))
	return Table{Header: t.Header, Rows: t.Rows[lo:hi:hi]}
}

// Exclude returns every record outside the half-open range [lo, hi) in
// original order, header preserved.
func (t Table) Exclude(lo, hi int) Table {
	lo, hi = clip(lo, hi, len(t.Rows))
	rows := make([][]float64, 0, len(t.Rows)-(hi-lo))
	rows = append(rows, t.Rows[:lo]...)
	rows = append(rows, t.Rows[hi:]...)
	return Table{Header: t.Header, Rows: rows}
}

// Column returns a copy of column j.
func (t Table) Column(j int) []float64 {
	col := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[j]
	}
	return col
}

// SelectColumns returns a table whose columns follow names. Every name must be
// present in the header exactly once.
func (t Table) SelectColumns(names []string) (Table, error) {
	index := make(map[string]int, len(t.Header))
	for j, h := range t.Header {
		if _, dup := index[h]; dup {
			return Table{}, romerr.Configf("duplicate column %q", h)
		}
		index[h] = j
	}

	order := make([]int, len(names))
	for k, name := range names {
		j, ok := index[name]
		if !ok {
			return Table{}, romerr.Configf("column %q not found in header %v", name, t.Header)
		}
		order[k] = j
	}

	rows := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]float64, len(order))
		for k, j := range order {
			out[k] = row[j]
		}
		rows[i] = out
	}

	header := make([]string, len(names))
	copy(header, names)
	return Table{Header: header, Rows: rows}, nil
}

// Equal reports whether both tables have the same header and values.
// NaN cells compare equal to each other.
func (t Table) Equal(o Table) bool {
	if len(t.Header) != len(o.Header) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for j := range t.Header {
		if t.Header[j] != o.Header[j] {
			return false
		}
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			a, b := t.Rows[i][j], o.Rows[i][j]
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		}
	}
	return true
}

// ReadTable reads a table file. Rows must have as many fields as the header.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, romerr.IO("open", path, err)
	}
	defer f.Close()

	t, err := ParseTable(f)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTable parses a table from r. Fields may be separated by any amount of
// whitespace and blank lines are ignored.
func ParseTable(r io.Reader) (Table, error) {
	sc := newScanner(r)

	header, ok := nextFields(sc)
	if !ok {
		if err := sc.Err(); err != nil {
			return Table{}, romerr.IO("read", "table", err)
		}
		return Table{}, romerr.Configf("table has no header line")
	}

	rows, err := parseRows(sc, len(header), -1)
	if err != nil {
		return Table{}, err
	}
	return Table{Header: header, Rows: rows}, nil
}

// ReadBody reads up to limit rows of exactly width values from path, skipping
// the first line whatever it contains. A negative limit reads every row.
func ReadBody(path string, width, limit int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, romerr.IO("open", path, err)
	}
	defer f.Close()

	sc := newScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, romerr.IO("read", path, err)
		}
		return nil, nil
	}

	rows, err := parseRows(sc, width, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// WriteTable writes t to path, replacing any existing file.
func WriteTable(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return romerr.IO("create", path, err)
	}

	w := bufio.NewWriter(f)
	if err := Encode(w, t); err != nil {
		f.Close()
		return romerr.IO("write", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return romerr.IO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return romerr.IO("close", path, err)
	}
	return nil
}

// Encode writes t with every field right-justified to 12 characters.
func Encode(w io.Writer, t Table) error {
	var sb strings.Builder
	for _, name := range t.Header {
		fmt.Fprintf(&sb, "%12s ", name)
	}
	sb.WriteByte('\n')
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	for _, row := range t.Rows {
		sb.Reset()
		for _, v := range row {
			fmt.Fprintf(&sb, "%12s  ", FormatFloat(v))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// FormatFloat renders v in the shortest form that parses back to the same
// value. NaN is written as "nan".
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return sc
}

func nextFields(sc *bufio.Scanner) ([]string, bool) {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			return fields, true
		}
	}
	return nil, false
}

func parseRows(sc *bufio.Scanner, width, limit int) ([][]float64, error) {
	var rows [][]float64
	for limit < 0 || len(rows) < limit {
		fields, ok := nextFields(sc)
		if !ok {
			break
		}
		if len(fields) != width {
			return nil, romerr.Configf("row %d has %d fields, want %d", len(rows)+1, len(fields), width)
		}
		row := make([]float64, width)
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, romerr.Configf("row %d column %d: %v", len(rows)+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, romerr.IO("read", "table", err)
	}
	return rows, nil
}

func clip(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

package swc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const commentPrefix = "#"

// ParseError reports a malformed line, carrying its 1-based line number.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("swc: line %d: %s", e.Line, e.Reason)
}

// Parse reads SWC text: one record per line with seven whitespace-separated
// fields (id, kind, x, y, z, radius, parent). Blank lines and lines starting
// with '#' are skipped. On the wire ids are one-based and the root parent is
// -1; records are returned zero-based. Each record is validated; structural
// errors are wrapped with the offending line number.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		rec, err := parseLine(line, lineno)
		if err != nil {
			return nil, err
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("swc: line %d: %w", lineno, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("swc: read: %w", err)
	}
	return records, nil
}

func parseLine(line string, lineno int) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 7 {
		return Record{}, &ParseError{Line: lineno, Reason: fmt.Sprintf("expected 7 fields, got %d", len(fields))}
	}

	ints := make([]int, 3)
	for i, fi := range []int{0, 1, 6} {
		v, err := strconv.Atoi(fields[fi])
		if err != nil {
			return Record{}, &ParseError{Line: lineno, Reason: fmt.Sprintf("field %d: %q is not an integer", fi+1, fields[fi])}
		}
		ints[i] = v
	}
	floats := make([]float64, 4)
	for i, fi := range []int{2, 3, 4, 5} {
		v, err := strconv.ParseFloat(fields[fi], 64)
		if err != nil {
			return Record{}, &ParseError{Line: lineno, Reason: fmt.Sprintf("field %d: %q is not a number", fi+1, fields[fi])}
		}
		floats[i] = v
	}

	rec := Record{
		ID:     ints[0] - 1,
		Kind:   Kind(ints[1]),
		X:      floats[0],
		Y:      floats[1],
		Z:      floats[2],
		Radius: floats[3],
		Parent: ints[2],
	}
	if rec.Parent != NoParent {
		rec.Parent--
	}
	return rec, nil
}

// Write emits records as SWC text, converting zero-based ids back to the
// one-based wire form.
func Write(w io.Writer, records []Record) error {
	for _, r := range records {
		parent := r.Parent
		if parent != NoParent {
			parent++
		}
		_, err := fmt.Fprintf(w, "%d %d %g %g %g %g %d\n",
			r.ID+1, int(r.Kind), r.X, r.Y, r.Z, r.Radius, parent)
		if err != nil {
			return fmt.Errorf("swc: write: %w", err)
		}
	}
	return nil
}

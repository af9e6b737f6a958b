// Package trace reads access traces and replays them on a simulation.
//
// A trace has one access per line. Blank lines and lines starting with # are
// ignored.
//
//	R <addr>          read the word at addr
//	W <addr> <value>  write value as a little-endian word at addr
//	T <addr>          translate addr without touching the caches
//
// Numbers are decimal or 0x-prefixed hexadecimal.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the type of an access.
type Kind byte

// The kinds of accesses, named by the letter that starts their line.
const (
	Read      Kind = 'R'
	Write     Kind = 'W'
	Translate Kind = 'T'
)

func (k Kind) String() string {
	return string(rune(k))
}

// An Op is one access of a trace.
type Op struct {
	Kind  Kind
	Addr  uint64
	Value uint64

	// Line is the 1-based line number of the access in its trace.
	Line int
}

// A ParseError reports a line that is not a valid access.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %s", e.Line, e.Text, e.Reason)
}

// ParseLine parses one line. It returns false for blank and comment lines.
func ParseLine(text string, line int) (Op, bool, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return Op{}, false, nil
	}

	fail := func(format string, args ...any) (Op, bool, error) {
		return Op{}, false, &ParseError{
			Line:   line,
			Text:   text,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	op := Op{Line: line}
	wantFields := 2

	switch strings.ToUpper(fields[0]) {
	case "R":
		op.Kind = Read
	case "W":
		op.Kind = Write
		wantFields = 3
	case "T":
		op.Kind = Translate
	default:
		return fail("unknown access %q", fields[0])
	}

	if len(fields) != wantFields {
		return fail("%s takes %d operands, got %d",
			op.Kind, wantFields-1, len(fields)-1)
	}

	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return fail("bad address %q", fields[1])
	}

	op.Addr = addr

	if op.Kind == Write {
		value, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil {
			return fail("bad value %q", fields[2])
		}

		op.Value = value
	}

	return op, true, nil
}

// A Reader parses the accesses of a trace one at a time.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next access, or io.EOF after the last one.
func (r *Reader) Next() (Op, error) {
	for r.scanner.Scan() {
		r.line++

		op, ok, err := ParseLine(r.scanner.Text(), r.line)
		if err != nil {
			return Op{}, err
		}

		if ok {
			return op, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Op{}, err
	}

	return Op{}, io.EOF
}

// ReadAll parses a whole trace.
func ReadAll(r io.Reader) ([]Op, error) {
	reader := NewReader(r)

	var ops []Op

	for {
		op, err := reader.Next()
		if err == io.EOF {
			return ops, nil
		}

		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}
}

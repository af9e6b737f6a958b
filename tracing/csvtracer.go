package tracing

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVTracer stores accesses into a CSV file.
type CSVTracer struct {
	path string
	w    io.Writer
	file *os.File

	entries    []AccessEntry
	bufferSize int
}

// NewCSVTracer creates a tracer writing to path.csv. An empty path picks a
// unique name.
func NewCSVTracer(path string) *CSVTracer {
	return &CSVTracer{
		path:       path,
		bufferSize: 1000,
	}
}

// NewCSVTracerWithWriter creates a tracer writing to w. Init must not be
// called.
func NewCSVTracerWithWriter(w io.Writer) *CSVTracer {
	t := &CSVTracer{
		w:          w,
		bufferSize: 1000,
	}
	t.writeHeader()

	return t
}

// Init creates the CSV file. It panics if the file already exists.
func (t *CSVTracer) Init() {
	if t.path == "" {
		t.path = "memhier_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}

	t.file = file
	t.w = file
	t.writeHeader()

	atexit.Register(t.Terminate)
}

func (t *CSVTracer) writeHeader() {
	fmt.Fprintf(t.w, "Seq, Kind, VAddr, PAddr, PageFault, TLBHit, HitLevel, Outcomes\n")
}

// RecordAccess buffers one access.
func (t *CSVTracer) RecordAccess(entry AccessEntry) {
	t.entries = append(t.entries, entry)
	if len(t.entries) >= t.bufferSize {
		t.Flush()
	}
}

// Flush writes the buffered accesses.
func (t *CSVTracer) Flush() {
	for _, e := range t.entries {
		fmt.Fprintf(t.w, "%d, %s, 0x%x, 0x%x, %t, %t, %s, %s\n",
			e.Seq,
			e.Kind,
			e.VAddr,
			e.PAddr,
			e.PageFault,
			e.TLBHit,
			e.HitLevel,
			e.Outcomes,
		)
	}

	t.entries = nil
}

// Terminate flushes and closes the file. Calling it again has no effect.
func (t *CSVTracer) Terminate() {
	t.Flush()

	if t.file == nil {
		return
	}

	if err := t.file.Close(); err != nil {
		panic(err)
	}

	t.file = nil
}

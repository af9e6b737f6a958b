package tracing

import (
	"github.com/sarchlab/memhier/datarecording"
	"github.com/sarchlab/memhier/simulation"
)

const (
	accessTable = "access_trace"
	statsTable  = "level_stats"
)

// A LevelStatsEntry is one row of the level statistics table.
type LevelStatsEntry struct {
	Level       string
	ReadHits    uint64
	ReadMisses  uint64
	WriteHits   uint64
	WriteMisses uint64
	Fills       uint64
	Evictions   uint64
	HitRate     float64
}

// DBTracer stores accesses and final statistics through a DataRecorder.
type DBTracer struct {
	backend datarecording.DataRecorder
}

// NewDBTracer creates the tables it writes into.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	dataRecorder.CreateTable(accessTable, AccessEntry{})
	dataRecorder.CreateTable(statsTable, LevelStatsEntry{})

	return &DBTracer{backend: dataRecorder}
}

// RecordAccess buffers one access.
func (t *DBTracer) RecordAccess(entry AccessEntry) {
	t.backend.InsertData(accessTable, entry)
}

// RecordStats stores one row per cache level.
func (t *DBTracer) RecordStats(stats simulation.Stats) {
	for _, l := range stats.Levels {
		t.backend.InsertData(statsTable, LevelStatsEntry{
			Level:       l.Name,
			ReadHits:    l.Counts.ReadHits,
			ReadMisses:  l.Counts.ReadMisses,
			WriteHits:   l.Counts.WriteHits,
			WriteMisses: l.Counts.WriteMisses,
			Fills:       l.Counts.Fills,
			Evictions:   l.Counts.Evictions,
			HitRate:     l.HitRate,
		})
	}
}

// Terminate flushes the recorder.
func (t *DBTracer) Terminate() {
	t.backend.Flush()
}

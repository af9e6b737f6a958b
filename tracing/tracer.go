// Package tracing collects the accesses of a simulation into databases and
// CSV files.
package tracing

import (
	"strings"

	"github.com/sarchlab/memhier/simulation"
)

// An AccessEntry is the flat form of one access, fit for a table row.
type AccessEntry struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	VAddr     uint64 `json:"vaddr"`
	PAddr     uint64 `json:"paddr"`
	PageFault bool   `json:"page_fault"`
	TLBHit    bool   `json:"tlb_hit"`
	HitLevel  string `json:"hit_level"`

	// Outcomes lists level:outcome pairs, nearest level first.
	Outcomes string `json:"outcomes"`
}

// NewAccessEntry flattens an access record.
func NewAccessEntry(rec simulation.AccessRecord) AccessEntry {
	entry := AccessEntry{
		Seq:       rec.Seq,
		Kind:      string(rec.Kind),
		VAddr:     rec.VAddr,
		PAddr:     rec.PAddr,
		PageFault: rec.PageFault,
		TLBHit:    rec.TLBHit,
	}

	if len(rec.Outcomes) == 0 {
		return entry
	}

	entry.HitLevel = rec.HitLevel()

	pairs := make([]string, len(rec.Outcomes))
	for i, o := range rec.Outcomes {
		pairs[i] = rec.Levels[i] + ":" + o.String()
	}

	entry.Outcomes = strings.Join(pairs, " ")

	return entry
}

// A Tracer consumes the accesses of a simulation.
type Tracer interface {
	// RecordAccess stores one access.
	RecordAccess(entry AccessEntry)

	// Terminate writes everything buffered.
	Terminate()
}

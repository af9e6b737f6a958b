package simulation

import "github.com/sarchlab/memhier/mem/cache"

// LevelStats are the counters of one cache level.
type LevelStats struct {
	Name    string      `json:"name"`
	Counts  cache.Stats `json:"counts"`
	HitRate float64     `json:"hit_rate"`
}

// Stats aggregates the counters of a simulation since the last reset.
type Stats struct {
	Reads      uint64       `json:"reads"`
	Writes     uint64       `json:"writes"`
	PageFaults uint64       `json:"page_faults"`
	TLBHits    uint64       `json:"tlb_hits"`
	Levels     []LevelStats `json:"levels"`
}

// Stats returns the counters of the simulation.
func (s *Simulation) Stats() Stats {
	mmuStats := s.mmu.Stats()

	stats := Stats{
		Reads:      s.reads,
		Writes:     s.writes,
		PageFaults: mmuStats.PageFaults,
		TLBHits:    mmuStats.TLBHits,
	}

	for _, l := range s.hierarchy.Levels() {
		ls := l.Stats()
		stats.Levels = append(stats.Levels, LevelStats{
			Name:    l.Name(),
			Counts:  ls,
			HitRate: ls.HitRate(),
		})
	}

	return stats
}

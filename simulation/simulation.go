// Package simulation wires an address translation unit in front of a cache
// hierarchy and exposes the accesses of a simulated program.
package simulation

import (
	"fmt"
	"slices"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/mem/hierarchy"
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/mem/vm/mmu"
	"github.com/sarchlab/memhier/mem/vm/tlb"
	"github.com/sarchlab/memhier/sim"
)

// HookPosAccess marks the completion of an access. The hook item is an
// AccessRecord.
var HookPosAccess = &sim.HookPos{Name: "Access"}

// HookPosReset marks a reset of the simulation. The hook item is nil.
var HookPosReset = &sim.HookPos{Name: "Reset"}

// ReadResult is the outcome of reading one word.
type ReadResult struct {
	VAddr uint64 `json:"vaddr"`
	PAddr uint64 `json:"paddr"`
	Data  []byte `json:"data"`

	// Hits has one entry per consulted level, nearest first. The read stops
	// at the first level that hits.
	Hits      []bool              `json:"hits"`
	Outcomes  []hierarchy.Outcome `json:"outcomes"`
	PageFault bool                `json:"page_fault"`
	TLBHit    bool                `json:"tlb_hit"`
}

// Value decodes Data as a little-endian word.
func (r ReadResult) Value() uint64 {
	return decodeWord(r.Data)
}

// WriteResult is the outcome of a write. Every level is consulted.
type WriteResult struct {
	VAddr     uint64              `json:"vaddr"`
	PAddr     uint64              `json:"paddr"`
	Hits      []bool              `json:"hits"`
	Outcomes  []hierarchy.Outcome `json:"outcomes"`
	PageFault bool                `json:"page_fault"`
	TLBHit    bool                `json:"tlb_hit"`
}

// Simulation owns one translation unit and one hierarchy. It is not safe for
// concurrent use.
type Simulation struct {
	sim.HookableBase

	id         string
	cfg        Config
	levelNames []string
	mmu        *mmu.MMU
	hierarchy  *hierarchy.Hierarchy

	nextSeq uint64
	reads   uint64
	writes  uint64
}

// New validates the configuration and builds a simulation.
func New(cfg Config) (*Simulation, error) {
	return MakeBuilder().WithConfig(cfg).Build()
}

// ID returns the unique identifier of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Reconfigure replaces the whole memory system. Registered hooks are kept.
// On error the simulation is left unchanged.
func (s *Simulation) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg = cfg.clone()

	m, h, err := build(cfg)
	if err != nil {
		return err
	}

	if err := applyMappings(m, cfg.Mappings); err != nil {
		return err
	}

	s.cfg = cfg
	s.mmu = m
	s.hierarchy = h
	s.levelNames = make([]string, len(cfg.Levels))

	for i, l := range cfg.Levels {
		s.levelNames[i] = l.Name
	}

	s.clearCounters()

	return nil
}

func build(cfg Config) (*mmu.MMU, *hierarchy.Hierarchy, error) {
	log2PageSize := mem.Log2(cfg.PageSize)
	pagePolicy, _ := vm.ParsePagePolicy(cfg.PagePolicy)
	frameAllocation, _ := vm.ParseFrameAllocation(cfg.FrameAllocation)
	writePolicy, _ := hierarchy.ParseWritePolicy(cfg.WritePolicy)

	mmuBuilder := mmu.MakeBuilder().
		WithLog2PageSize(log2PageSize).
		WithAddressWidth(cfg.AddressWidth).
		WithPageTable(vm.NewPageTable(log2PageSize)).
		WithPagePolicy(pagePolicy).
		WithFrameAllocation(frameAllocation).
		WithFirstFrame(cfg.FirstFrame)

	if cfg.TLB.Enabled() {
		t, err := tlb.MakeBuilder().
			WithNumSets(cfg.TLB.Sets).
			WithNumWays(cfg.TLB.Ways).
			Build()
		if err != nil {
			return nil, nil, err
		}

		mmuBuilder = mmuBuilder.WithTLB(t)
	}

	m, err := mmuBuilder.Build("MMU")
	if err != nil {
		return nil, nil, err
	}

	hBuilder := hierarchy.MakeBuilder().
		WithStorage(mem.NewStorage(0)).
		WithWritePolicy(writePolicy)

	for _, lc := range cfg.Levels {
		l, err := lc.builder().Build(lc.Name)
		if err != nil {
			return nil, nil, err
		}

		hBuilder = hBuilder.WithLevel(l)
	}

	h, err := hBuilder.Build()
	if err != nil {
		return nil, nil, err
	}

	return m, h, nil
}

func applyMappings(m *mmu.MMU, mappings map[uint64]uint64) error {
	vpns := make([]uint64, 0, len(mappings))
	for vpn := range mappings {
		vpns = append(vpns, vpn)
	}

	slices.Sort(vpns)

	for _, vpn := range vpns {
		if err := m.MapPage(vpn, mappings[vpn]); err != nil {
			return mem.NewConfigError("mappings", "%v", err)
		}
	}

	return nil
}

// Config returns a copy of the configuration in use.
func (s *Simulation) Config() Config {
	return s.cfg.clone()
}

// LevelNames returns the names of the cache levels, nearest first.
func (s *Simulation) LevelNames() []string {
	return slices.Clone(s.levelNames)
}

// Level returns the cache level with the given name.
func (s *Simulation) Level(name string) (*cache.Level, bool) {
	return s.hierarchy.Level(name)
}

// TranslateAddress converts a virtual address without accessing the caches.
// Under allocate-on-first-use an unmapped page is allocated.
func (s *Simulation) TranslateAddress(vAddr uint64) (mmu.Translation, error) {
	t, err := s.mmu.Translate(vAddr)
	if err != nil {
		return mmu.Translation{}, err
	}

	s.invokeAccess(AccessRecord{
		Kind:      AccessTranslate,
		VAddr:     vAddr,
		PAddr:     t.PAddr,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	})

	return t, nil
}

// Read returns the naturally aligned word that holds vAddr.
func (s *Simulation) Read(vAddr uint64) (ReadResult, error) {
	t, err := s.mmu.Translate(vAddr)
	if err != nil {
		return ReadResult{}, err
	}

	wordAddr := t.PAddr &^ (s.cfg.WordSize - 1)

	res, err := s.hierarchy.Read(wordAddr, s.cfg.WordSize)
	if err != nil {
		return ReadResult{}, err
	}

	s.reads++

	consulted := len(res.Outcomes)
	if res.HitLevel >= 0 {
		consulted = res.HitLevel + 1
	}

	result := ReadResult{
		VAddr:     vAddr,
		PAddr:     t.PAddr,
		Data:      res.Data,
		Hits:      hits(res.Outcomes[:consulted]),
		Outcomes:  res.Outcomes,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	}

	s.invokeAccess(AccessRecord{
		Kind:      AccessRead,
		VAddr:     vAddr,
		PAddr:     t.PAddr,
		Data:      res.Data,
		Outcomes:  res.Outcomes,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	})

	return result, nil
}

// Write stores data at vAddr through every level and the backing store. The
// data must not cross a block of any level.
func (s *Simulation) Write(vAddr uint64, data []byte) (WriteResult, error) {
	t, err := s.mmu.Translate(vAddr)
	if err != nil {
		return WriteResult{}, err
	}

	outcomes, err := s.hierarchy.Write(t.PAddr, data)
	if err != nil {
		return WriteResult{}, err
	}

	s.writes++

	s.invokeAccess(AccessRecord{
		Kind:      AccessWrite,
		VAddr:     vAddr,
		PAddr:     t.PAddr,
		Data:      data,
		Outcomes:  outcomes,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	})

	return WriteResult{
		VAddr:     vAddr,
		PAddr:     t.PAddr,
		Hits:      hits(outcomes),
		Outcomes:  outcomes,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	}, nil
}

// WriteWord stores value as a little-endian word at the naturally aligned
// word that holds vAddr.
func (s *Simulation) WriteWord(vAddr, value uint64) (WriteResult, error) {
	wordAddr := vAddr &^ (s.cfg.WordSize - 1)
	return s.Write(wordAddr, encodeWord(value, s.cfg.WordSize))
}

// Reset empties the page table, the TLB, every cache and the backing store,
// clears the statistics and restores the configured mappings.
func (s *Simulation) Reset() {
	s.hierarchy.Reset()
	s.mmu.Reset()
	s.clearCounters()

	if err := applyMappings(s.mmu, s.cfg.Mappings); err != nil {
		panic(fmt.Sprintf("mappings accepted before reset are rejected: %v", err))
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosReset,
	})
}

func (s *Simulation) clearCounters() {
	s.reads = 0
	s.writes = 0
	s.nextSeq = 0
}

// MapPage maps a virtual page to a physical frame.
func (s *Simulation) MapPage(vpn, pfn uint64) error {
	return s.mmu.MapPage(vpn, pfn)
}

// UnmapPage removes the mapping of a virtual page. Cached blocks are physical
// and stay resident.
func (s *Simulation) UnmapPage(vpn uint64) error {
	return s.mmu.UnmapPage(vpn)
}

// PageTableEntries returns the page table sorted by virtual page number.
func (s *Simulation) PageTableEntries() []vm.Page {
	return s.mmu.PageTable().Entries()
}

// LevelSets returns the non-empty sets of a level.
func (s *Simulation) LevelSets(name string) ([]cache.SetSnapshot, error) {
	l, found := s.hierarchy.Level(name)
	if !found {
		return nil, fmt.Errorf("no cache level named %q", name)
	}

	return l.Sets(), nil
}

func (s *Simulation) invokeAccess(rec AccessRecord) {
	s.nextSeq++
	rec.Seq = s.nextSeq
	rec.Levels = s.levelNames

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosAccess,
		Item:   rec,
	})
}

func hits(outcomes []hierarchy.Outcome) []bool {
	h := make([]bool, len(outcomes))
	for i, o := range outcomes {
		h[i] = o == hierarchy.Hit
	}

	return h
}

// Package vm provides the models for address translations.
package vm

import (
	"container/list"
	"sort"
	"sync"
)

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual page number to a physical frame number.
type Page struct {
	VPN      uint64
	PFN      uint64
	PageSize uint64
	Valid    bool

	// Allocated is set on pages created by a soft page fault rather than
	// mapped explicitly.
	Allocated bool
}

// A PageTable holds a set of pages, keyed by virtual page number.
type PageTable interface {
	Insert(page Page)
	Remove(vpn uint64) error
	Find(vpn uint64) (Page, bool)
	Update(page Page) error
	Entries() []Page
	Len() int
	Clear()
	Log2PageSize() uint64
}

// NewPageTable creates a new PageTable.
func NewPageTable(log2PageSize uint64) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		entries:      list.New(),
		entriesTable: make(map[uint64]*list.Element),
	}
}

// pageTableImpl keeps pages in insertion order in a doubly linked list, with
// a map for constant time lookups by VPN.
type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (pt *pageTableImpl) Log2PageSize() uint64 {
	return pt.log2PageSize
}

// Insert puts a new page into the PageTable. Inserting a VPN that is already
// present replaces the old entry.
func (pt *pageTableImpl) Insert(page Page) {
	pt.Lock()
	defer pt.Unlock()

	page.PageSize = 1 << pt.log2PageSize

	if elem, found := pt.entriesTable[page.VPN]; found {
		elem.Value = page
		return
	}

	elem := pt.entries.PushBack(page)
	pt.entriesTable[page.VPN] = elem
}

// Remove removes the entry of the given VPN.
func (pt *pageTableImpl) Remove(vpn uint64) error {
	pt.Lock()
	defer pt.Unlock()

	elem, found := pt.entriesTable[vpn]
	if !found {
		return &PageFaultError{VPN: vpn}
	}

	pt.entries.Remove(elem)
	delete(pt.entriesTable, vpn)

	return nil
}

// Find returns the page of the given VPN. The bool return value indicates if
// the page is found or not.
func (pt *pageTableImpl) Find(vpn uint64) (Page, bool) {
	pt.Lock()
	defer pt.Unlock()

	elem, found := pt.entriesTable[vpn]
	if !found {
		return Page{}, false
	}

	return elem.Value.(Page), true
}

// Update changes the fields of an existing page. The VPN is used to locate
// the page to update.
func (pt *pageTableImpl) Update(page Page) error {
	pt.Lock()
	defer pt.Unlock()

	elem, found := pt.entriesTable[page.VPN]
	if !found {
		return &PageFaultError{VPN: page.VPN}
	}

	page.PageSize = 1 << pt.log2PageSize
	elem.Value = page

	return nil
}

// Entries returns a copy of all the pages, sorted by VPN.
func (pt *pageTableImpl) Entries() []Page {
	pt.Lock()
	defer pt.Unlock()

	pages := make([]Page, 0, pt.entries.Len())
	for e := pt.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(Page))
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].VPN < pages[j].VPN })

	return pages
}

func (pt *pageTableImpl) Len() int {
	pt.Lock()
	defer pt.Unlock()

	return pt.entries.Len()
}

// Clear removes all the pages.
func (pt *pageTableImpl) Clear() {
	pt.Lock()
	defer pt.Unlock()

	pt.entries.Init()
	pt.entriesTable = make(map[uint64]*list.Element)
}

// Package monitoring serves a simulation over HTTP so that its caches, page
// table and statistics can be inspected while accesses are issued.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/hierarchy"
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/monitoring/web"
	"github.com/sarchlab/memhier/simulation"
	"github.com/sarchlab/memhier/trace"
)

// Monitor turns a simulation into a server. All requests are serialized
// since a simulation is not safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	sim        *simulation.Simulation
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a Monitor for a simulation.
func NewMonitor(s *simulation.Simulation) *Monitor {
	return &Monitor{sim: s}
}

// WithPortNumber sets the port number of the monitor. Zero or a port below
// 1000 selects a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/config", m.getConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", m.putConfig).Methods(http.MethodPut)
	r.HandleFunc("/api/stats", m.getStats).Methods(http.MethodGet)
	r.HandleFunc("/api/translate/{addr}", m.translate).Methods(http.MethodGet)
	r.HandleFunc("/api/read/{addr}", m.read).Methods(http.MethodGet)
	r.HandleFunc("/api/write/{addr}/{value}", m.write).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", m.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/pagetable", m.pageTable).Methods(http.MethodGet)
	r.HandleFunc("/api/level/{name}", m.levelDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/level/{name}/sets", m.levelSets).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Handler())
		dieOnErr(err)
	}()

	return url, nil
}

// ReplayTrace applies the accesses of a trace while tracking the progress.
// Requests are served between accesses.
func (m *Monitor) ReplayTrace(name string, ops []trace.Op) *ProgressBar {
	bar := m.createProgressBar(name, uint64(len(ops)))

	for _, op := range ops {
		m.mu.Lock()
		err := op.Apply(m.sim)
		m.mu.Unlock()

		var pageFault *vm.PageFaultError
		if errors.As(err, &pageFault) {
			bar.IncrementPageFaults(1)
		} else if err != nil {
			bar.Fail(err)
			break
		}

		bar.IncrementFinished(1)
	}

	return bar
}

func (m *Monitor) createProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

func (m *Monitor) getConfig(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writeJSON(w, m.sim.Config())
}

// putConfig replaces the whole configuration. Fields missing from the body
// take their default values.
func (m *Monitor) putConfig(w http.ResponseWriter, r *http.Request) {
	cfg := simulation.DefaultConfig()

	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sim.Reconfigure(cfg); err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, m.sim.Config())
}

func (m *Monitor) getStats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writeJSON(w, m.sim.Stats())
}

type translateRsp struct {
	VAddr     uint64 `json:"vaddr"`
	PAddr     uint64 `json:"paddr"`
	VPN       uint64 `json:"vpn"`
	PFN       uint64 `json:"pfn"`
	Offset    uint64 `json:"offset"`
	PageFault bool   `json:"page_fault"`
	TLBHit    bool   `json:"tlb_hit"`
}

func (m *Monitor) translate(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseUintVar(w, r, "addr")
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.sim.TranslateAddress(addr)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, translateRsp{
		VAddr:     t.VAddr,
		PAddr:     t.PAddr,
		VPN:       t.VPN,
		PFN:       t.PFN,
		Offset:    t.Offset,
		PageFault: t.PageFault,
		TLBHit:    t.TLBHit,
	})
}

func (m *Monitor) read(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseUintVar(w, r, "addr")
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.sim.Read(addr)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, res)
}

func (m *Monitor) write(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseUintVar(w, r, "addr")
	if !ok {
		return
	}

	value, ok := parseUintVar(w, r, "value")
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.sim.WriteWord(addr, value)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, res)
}

func (m *Monitor) reset(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sim.Reset()

	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) pageTable(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	writeJSON(w, m.sim.PageTableEntries())
}

func (m *Monitor) levelDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.mu.Lock()
	defer m.mu.Unlock()

	level, found := m.sim.Level(name)
	if !found {
		writeError(w, http.StatusNotFound,
			fmt.Errorf("no cache level named %q", name))
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(level)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) levelSets(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sets, err := m.sim.LevelSets(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, sets)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	for _, b := range m.progressBars {
		b.Lock()
		defer b.Unlock()
	}

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func parseUintVar(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	text := mux.Vars(r)[name]

	value, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("bad %s %q", name, text))
		return 0, false
	}

	return value, true
}

func statusOf(err error) int {
	var (
		pageFault  *vm.PageFaultError
		frameInUse *vm.FrameInUseError
		config     *mem.ConfigError
		outOfRange *vm.AddressOutOfRangeError
		access     *hierarchy.AccessError
	)

	switch {
	case errors.As(err, &pageFault):
		return http.StatusNotFound
	case errors.As(err, &frameInUse):
		return http.StatusConflict
	case errors.As(err, &config),
		errors.As(err, &outOfRange),
		errors.As(err, &access):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorRsp struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	dieOnErr(json.NewEncoder(w).Encode(errorRsp{Error: err.Error()}))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	dieOnErr(json.NewEncoder(w).Encode(v))
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

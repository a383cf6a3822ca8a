// Package statusapi is the Coordinator's read-only HTTP surface
// (GET /healthz, GET /status), modeled on the teacher's
// api-coordinator/internal/health and .../monitoring packages: a
// gin.Engine with gin.Recovery() only (no request logger), same "process stats +
// host stats" split, using runtime.MemStats and gopsutil respectively.
// It never participates in matchmaking — it only reads the registry
// size the Coordinator already exposes.
package statusapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"fbroker/internal/consolelog"
)

// RegistrySource is the minimal view of the Coordinator the status API
// needs — satisfied by *coordinator.Server without importing that
// package's TCP internals here.
type RegistrySource interface {
	WorkerCount() int
}

// ProcessStats mirrors the teacher's SystemStats.Process fields.
type ProcessStats struct {
	NumGoroutine int    `json:"num_goroutine"`
	AllocBytes   uint64 `json:"alloc_bytes"`
	SysBytes     uint64 `json:"sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

// HostStats mirrors the teacher's SystemStats.System fields, gathered via
// gopsutil the same way api-coordinator/internal/monitoring does.
type HostStats struct {
	TotalRAM        uint64    `json:"total_ram"`
	AvailableRAM    uint64    `json:"available_ram"`
	UsedRAMPercent  float64   `json:"used_ram_percent"`
	TotalCPUCores   int       `json:"total_cpu_cores"`
	CPUUsagePercent []float64 `json:"cpu_usage_percent"`
}

// Status is the /status response body.
type Status struct {
	Timestamp   time.Time    `json:"timestamp"`
	UptimeSecs  float64      `json:"uptime_seconds"`
	WorkerCount int          `json:"worker_count"`
	Process     ProcessStats `json:"process"`
	Host        HostStats    `json:"host"`
}

// Server hosts the status HTTP API on a dedicated address, separate from
// the Coordinator's TCP matchmaking port (BROKERAGE_STATUS_ADDR).
type Server struct {
	registry  RegistrySource
	startedAt time.Time
	engine    *gin.Engine
	http      *http.Server
}

// New builds a status API server bound to addr, wired to registry for
// worker counts. Call Start to actually listen.
func New(addr string, registry RegistrySource) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		registry:  registry,
		startedAt: time.Now(),
		engine:    engine,
		http:      &http.Server{Addr: addr, Handler: engine},
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)

	return s
}

// Start begins serving in the background. Errors other than
// http.ErrServerClosed are logged, mirroring the teacher's
// log.Fatalf-on-ListenAndError habit but non-fatal here since the status
// API is an optional observability surface, not core matchmaking.
func (s *Server) Start() {
	go func() {
		consolelog.Info_("statusapi: listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			consolelog.Error_("statusapi: %v", err)
		}
	}()
}

// Shutdown stops the HTTP server immediately, closing its listener and
// every open connection without waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.http.Close()
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	host := HostStats{TotalCPUCores: runtime.NumCPU()}
	if vm, err := mem.VirtualMemory(); err == nil {
		host.TotalRAM = vm.Total
		host.AvailableRAM = vm.Available
		host.UsedRAMPercent = vm.UsedPercent
	}
	if pct, err := cpu.Percent(0, true); err == nil {
		host.CPUUsagePercent = pct
	}

	c.JSON(http.StatusOK, Status{
		Timestamp:   time.Now(),
		UptimeSecs:  time.Since(s.startedAt).Seconds(),
		WorkerCount: s.registry.WorkerCount(),
		Process: ProcessStats{
			NumGoroutine: runtime.NumGoroutine(),
			AllocBytes:   memStats.Alloc,
			SysBytes:     memStats.Sys,
			NumGC:        memStats.NumGC,
		},
		Host: host,
	})
}

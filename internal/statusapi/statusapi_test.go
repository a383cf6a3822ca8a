package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeRegistry struct{ count int }

func (f fakeRegistry) WorkerCount() int { return f.count }

func newTestEngine(reg RegistrySource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	s := &Server{registry: reg, engine: engine}
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	return s.engine
}

func TestHealthzReturnsOK(t *testing.T) {
	engine := newTestEngine(fakeRegistry{count: 0})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestStatusReportsWorkerCount(t *testing.T) {
	engine := newTestEngine(fakeRegistry{count: 3})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var body Status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.WorkerCount != 3 {
		t.Fatalf("got worker count %d, want 3", body.WorkerCount)
	}
}

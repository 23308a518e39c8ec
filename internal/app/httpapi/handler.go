// Package httpapi exposes the NovaStack REST API over gorilla/mux.
package httpapi

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/mem"

	app "github.com/novastack/service_layer/internal/app"
	"github.com/novastack/service_layer/internal/app/services/payments"
	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/pkg/logger"
)

const (
	serviceName    = "NovaStack Backend"
	serviceVersion = "1.0.0"

	defaultListLimit = 20
	maxListLimit     = 100
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app          *app.Application
	log          *logger.Logger
	hideInternal bool
	audit        *auditLog
	started      time.Time
}

// writeError is the single exit for failed requests. 5xx responses are
// logged with the trace ID.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.StatusOf(err) >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		}).Error("request failed")
	}
	httputil.WriteError(w, r, err, h.hideInternal)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeBody(r, dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorResponse(w, r, http.StatusNotFound, string(errors.CodeNotFound), "Route not found", nil)
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, string(errors.CodeMethodNotAllowed), "Method not allowed", nil)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"service":   serviceName,
		"version":   serviceVersion,
	})
}

type systemStatus struct {
	Service    string       `json:"service"`
	Version    string       `json:"version"`
	Uptime     string       `json:"uptime"`
	Goroutines int          `json:"goroutines"`
	GoVersion  string       `json:"goVersion"`
	Memory     *memoryStats `json:"memory,omitempty"`
	Services   []string     `json:"services"`
}

type memoryStats struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"usedPercent"`
	HeapAlloc   uint64  `json:"heapAlloc"`
}

func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	status := systemStatus{
		Service:    serviceName,
		Version:    serviceVersion,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
		Services:   h.app.Services(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		status.Memory = &memoryStats{
			Total:       vm.Total,
			Available:   vm.Available,
			UsedPercent: vm.UsedPercent,
			HeapAlloc:   ms.HeapAlloc,
		}
	} else {
		h.log.WithContext(r.Context()).WithError(err).Debug("host memory unavailable")
		status.Memory = &memoryStats{HeapAlloc: ms.HeapAlloc}
	}

	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"status": status})
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, h.audit.max, h.audit.max)
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"entries": h.audit.listLimit(limit)})
}

func (h *handler) pricing(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"plans": payments.Plans()})
}

// queryLimit parses ?limit=, falling back to def and clamping to max.
func queryLimit(r *http.Request, def, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// csvQuery splits a comma separated query parameter, dropping blanks.
func csvQuery(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func pathVar(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}

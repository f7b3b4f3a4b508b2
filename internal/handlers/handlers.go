// Package handlers serves the federator's admin HTTP surface.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"shard-federator/internal/audit"
	"shard-federator/internal/circuitbreaker"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/executor"
	"shard-federator/internal/shard"
)

// HealthChecker is implemented by shard providers that can be pinged
type HealthChecker interface {
	Health(ctx context.Context) error
}

// AuditReader exposes the recorded audit trail
type AuditReader interface {
	Recent(ctx context.Context, n int64) ([]audit.Entry, error)
	Len(ctx context.Context) (int64, error)
}

// DefaultAuditLimit is how many entries /audit returns without a limit parameter
const DefaultAuditLimit = 50

// Handlers holds what the admin endpoints report on
type Handlers struct {
	registry *shard.Registry
	manager  *executor.Manager
	breakers *circuitbreaker.Manager
	checks   map[string]HealthChecker
	audit    AuditReader
	timeout  time.Duration
	logger   logging.Logger
}

// New creates admin handlers. breakers may be nil when breakers are disabled.
func New(registry *shard.Registry, manager *executor.Manager, breakers *circuitbreaker.Manager, checks map[string]HealthChecker) *Handlers {
	return &Handlers{
		registry: registry,
		manager:  manager,
		breakers: breakers,
		checks:   checks,
		timeout:  5 * time.Second,
		logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "admin"}),
	}
}

// WithAudit enables the /audit endpoint
func (h *Handlers) WithAudit(reader AuditReader) *Handlers {
	h.audit = reader
	return h
}

// Register mounts the admin routes on router
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/shards", h.ListShards).Methods("GET")
	router.HandleFunc("/shards/{id}", h.GetShard).Methods("GET")
	if h.audit != nil {
		router.HandleFunc("/audit", h.RecentAudit).Methods("GET")
	}
}

// ShardInfo is the admin view of one shard
type ShardInfo struct {
	Identity string                `json:"identity"`
	PoolSize int                   `json:"pool_size"`
	Pool     *executor.Stats       `json:"pool,omitempty"`
	Breaker  *circuitbreaker.Stats `json:"breaker,omitempty"`
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ids := make([]string, 0, len(h.checks))
	for id := range h.checks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shards := make(map[string]string, len(ids))
	healthy := true
	for _, id := range ids {
		if err := h.checks[id].Health(ctx); err != nil {
			healthy = false
			shards[id] = "unhealthy: " + err.Error()
			h.logger.Warn("Shard health check failed", logging.String("shard", id), logging.Err(err))
			continue
		}
		shards[id] = "healthy"
	}

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"shards":    shards,
		"disposed":  h.manager.IsDisposed(),
	}

	code := http.StatusOK
	if !healthy || h.manager.IsDisposed() {
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handlers) ListShards(w http.ResponseWriter, r *http.Request) {
	pools := h.poolStats()

	descriptors := h.registry.All()
	out := make([]ShardInfo, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, h.info(d, pools))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetShard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.registry.Descriptor(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "shard " + id + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, h.info(d, h.poolStats()))
}

// RecentAudit returns the newest audit entries, up to ?limit=N
func (h *Handlers) RecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := int64(DefaultAuditLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read audit trail", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read audit trail"})
		return
	}
	total, err := h.audit.Len(r.Context())
	if err != nil {
		h.logger.Error("Failed to count audit trail", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read audit trail"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"entries": entries,
	})
}

func (h *Handlers) poolStats() map[string]executor.Stats {
	return h.manager.ShardStats()
}

func (h *Handlers) info(d shard.Descriptor, pools map[string]executor.Stats) ShardInfo {
	info := ShardInfo{Identity: d.Identity, PoolSize: d.EffectivePoolSize()}
	if s, ok := pools[d.Identity]; ok {
		info.Pool = &s
	}
	if h.breakers != nil {
		if b, ok := h.breakers.Get(d.Identity); ok {
			s := b.Stats()
			info.Breaker = &s
		}
	}
	return info
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status — состояние отдельной проверки или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc проверяет зависимость; ненулевая ошибка означает отказ. Обязана уважать ctx.
type CheckFunc func(ctx context.Context) error

// Result — итог одной проверки.
type Result struct {
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	Critical   bool   `json:"critical"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — ответ /healthz.
type Report struct {
	Status        Status            `json:"status"`
	Version       string            `json:"version,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]Result `json:"checks,omitempty"`
}

type probe struct {
	name     string
	fn       CheckFunc
	critical bool
}

// Handler агрегирует проверки: отказ критичной даёт unhealthy (503),
// отказ необязательной — degraded без влияния на readiness.
type Handler struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	probes map[string]probe
}

// NewHandler создаёт handler, отдающий version в отчёте.
func NewHandler(version string) *Handler {
	return &Handler{
		version: version,
		started: time.Now(),
		timeout: defaultCheckTimeout,
		probes:  make(map[string]probe),
	}
}

// Critical регистрирует проверку, без которой сервис не готов принимать запросы.
func (h *Handler) Critical(name string, fn CheckFunc) {
	h.register(probe{name: name, fn: fn, critical: true})
}

// Optional регистрирует проверку, отказ которой лишь деградирует сервис.
func (h *Handler) Optional(name string, fn CheckFunc) {
	h.register(probe{name: name, fn: fn})
}

func (h *Handler) register(p probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[p.name] = p
}

func (h *Handler) snapshot() []probe {
	h.mu.RLock()
	defer h.mu.RUnlock()

	probes := make([]probe, 0, len(h.probes))
	for _, p := range h.probes {
		probes = append(probes, p)
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i].name < probes[j].name })
	return probes
}

// Run параллельно выполняет все проверки с общим таймаутом и сводит итоговый статус.
func (h *Handler) Run(ctx context.Context) Report {
	probes := h.snapshot()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	type outcome struct {
		index  int
		result Result
	}
	started := time.Now()
	done := make(chan outcome, len(probes))
	for i, p := range probes {
		go func() {
			done <- outcome{index: i, result: evaluate(ctx, p)}
		}()
	}

	// Проверка, не вернувшаяся к таймауту, считается отказавшей.
	results := make([]Result, len(probes))
	finished := make([]bool, len(probes))
collect:
	for range probes {
		select {
		case o := <-done:
			results[o.index], finished[o.index] = o.result, true
		case <-ctx.Done():
			break collect
		}
	}
	for i, p := range probes {
		if !finished[i] {
			results[i] = fail(Result{Critical: p.critical, DurationMs: time.Since(started).Milliseconds()}, ctx.Err())
		}
	}

	report := Report{
		Status:        StatusHealthy,
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Checks:        make(map[string]Result, len(probes)),
	}
	for i, p := range probes {
		report.Checks[p.name] = results[i]
		report.Status = worse(report.Status, results[i].Status)
	}
	return report
}

func evaluate(ctx context.Context, p probe) (result Result) {
	started := time.Now()
	result = Result{Status: StatusHealthy, Critical: p.critical}
	defer func() {
		if r := recover(); r != nil {
			result = fail(result, fmt.Errorf("check panicked: %v", r))
		}
		result.DurationMs = time.Since(started).Milliseconds()
	}()

	if err := p.fn(ctx); err != nil {
		result = fail(result, err)
	}
	return result
}

func fail(r Result, err error) Result {
	r.Status = StatusDegraded
	if r.Critical {
		r.Status = StatusUnhealthy
	}
	r.Message = err.Error()
	return r
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ServeHTTP отдаёт JSON-отчёт; 503 только при unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Run(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(report.Status))
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler — readiness probe: degraded-сервис остаётся готовым.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	code := httpStatus(h.Run(r.Context()).Status)
	body := "ready"
	if code != http.StatusOK {
		body = "not ready"
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// LivenessHandler — liveness probe, всегда 200.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func httpStatus(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

package observability

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Well-known operations tracked against objectives.
const (
	OpRender   = "render"
	OpDownload = "download"
	OpReclaim  = "reclaim"
)

// maxObservationsPerOp bounds memory; beyond it the oldest half of an
// operation's observations is dropped.
const maxObservationsPerOp = 10000

// SLOTarget defines a service level objective for one operation.
type SLOTarget struct {
	SLOID       string        `json:"slo_id"`
	Name        string        `json:"name"`
	Operation   string        `json:"operation"`
	LatencyP99  time.Duration `json:"latency_p99"`
	SuccessRate float64       `json:"success_rate"` // target success rate (0-1)
	WindowHours int           `json:"window_hours"` // evaluation window
}

// DefaultSLOTargets returns the objectives the service ships with.
// Rendering shells out to an external engine, so its latency target is
// generous; downloads are straight file reads and must stay fast.
func DefaultSLOTargets() []*SLOTarget {
	return []*SLOTarget{
		{
			SLOID:       "slo-render",
			Name:        "Report rendering",
			Operation:   OpRender,
			LatencyP99:  10 * time.Second,
			SuccessRate: 0.99,
			WindowHours: 24,
		},
		{
			SLOID:       "slo-download",
			Name:        "Artifact download",
			Operation:   OpDownload,
			LatencyP99:  250 * time.Millisecond,
			SuccessRate: 0.999,
			WindowHours: 24,
		},
		{
			SLOID:       "slo-reclaim",
			Name:        "Store reclaim sweep",
			Operation:   OpReclaim,
			LatencyP99:  5 * time.Second,
			SuccessRate: 0.999,
			WindowHours: 24,
		},
	}
}

// SLOObservation is a single data point.
type SLOObservation struct {
	Operation string        `json:"operation"`
	Latency   time.Duration `json:"latency"`
	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
}

// SLOStatus reports current compliance for one operation.
type SLOStatus struct {
	SLOID            string  `json:"slo_id"`
	Operation        string  `json:"operation"`
	CurrentP99       float64 `json:"current_p99_ms"`
	CurrentSuccess   float64 `json:"current_success_rate"`
	InCompliance     bool    `json:"in_compliance"`
	BurnRate         float64 `json:"burn_rate"`         // >1 means burning faster than budget allows
	ErrorBudgetLeft  float64 `json:"error_budget_left"` // percentage remaining
	ObservationCount int     `json:"observation_count"`
}

// SLOTracker monitors objectives across the service's operations.
type SLOTracker struct {
	mu           sync.Mutex
	targets      map[string]*SLOTarget
	observations map[string][]SLOObservation
	clock        func() time.Time
}

// NewSLOTracker creates a tracker with the default targets.
func NewSLOTracker() *SLOTracker {
	t := &SLOTracker{
		targets:      make(map[string]*SLOTarget),
		observations: make(map[string][]SLOObservation),
		clock:        time.Now,
	}
	for _, target := range DefaultSLOTargets() {
		t.targets[target.Operation] = target
	}
	return t
}

// WithClock overrides clock for testing.
func (t *SLOTracker) WithClock(clock func() time.Time) *SLOTracker {
	t.clock = clock
	return t
}

// SetTarget replaces the objective for an operation.
func (t *SLOTracker) SetTarget(target *SLOTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[target.Operation] = target
}

// Record records an observation.
func (t *SLOTracker) Record(obs SLOObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if obs.Timestamp.IsZero() {
		obs.Timestamp = t.clock()
	}
	existing := t.observations[obs.Operation]
	if len(existing) >= maxObservationsPerOp {
		existing = existing[len(existing)/2:]
	}
	t.observations[obs.Operation] = append(existing, obs)
}

// Status computes current compliance for an operation.
func (t *SLOTracker) Status(operation string) (*SLOStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked(operation)
}

// Statuses computes compliance for every operation with a target,
// sorted by operation name.
func (t *SLOTracker) Statuses() []*SLOStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := make([]string, 0, len(t.targets))
	for op := range t.targets {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	statuses := make([]*SLOStatus, 0, len(ops))
	for _, op := range ops {
		status, err := t.statusLocked(op)
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (t *SLOTracker) statusLocked(operation string) (*SLOStatus, error) {
	target, ok := t.targets[operation]
	if !ok {
		return nil, fmt.Errorf("no SLO target for operation %q", operation)
	}

	now := t.clock()
	windowStart := now.Add(-time.Duration(target.WindowHours) * time.Hour)

	var windowed []SLOObservation
	for _, obs := range t.observations[operation] {
		if obs.Timestamp.After(windowStart) {
			windowed = append(windowed, obs)
		}
	}

	if len(windowed) == 0 {
		// No traffic inside the window is compliant, not unknown.
		return &SLOStatus{
			SLOID:           target.SLOID,
			Operation:       operation,
			InCompliance:    true,
			ErrorBudgetLeft: 100.0,
		}, nil
	}

	successCount := 0
	latencies := make([]float64, len(windowed))
	for i, obs := range windowed {
		if obs.Success {
			successCount++
		}
		latencies[i] = float64(obs.Latency.Milliseconds())
	}
	successRate := float64(successCount) / float64(len(windowed))

	sort.Float64s(latencies)
	p99Index := int(float64(len(latencies)) * 0.99)
	if p99Index >= len(latencies) {
		p99Index = len(latencies) - 1
	}
	p99 := latencies[p99Index]

	latencyOK := p99 <= float64(target.LatencyP99.Milliseconds())
	successOK := successRate >= target.SuccessRate

	errorBudget := 1.0 - target.SuccessRate
	errorRate := 1.0 - successRate
	var burnRate float64
	if errorBudget > 0 {
		burnRate = errorRate / errorBudget
	}
	budgetLeft := 100.0 * (1.0 - burnRate)
	if budgetLeft < 0 {
		budgetLeft = 0
	}

	return &SLOStatus{
		SLOID:            target.SLOID,
		Operation:        operation,
		CurrentP99:       p99,
		CurrentSuccess:   successRate,
		InCompliance:     latencyOK && successOK,
		BurnRate:         burnRate,
		ErrorBudgetLeft:  budgetLeft,
		ObservationCount: len(windowed),
	}, nil
}

package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// maxPollTimings bounds the per-poll history kept for the metrics endpoint.
const maxPollTimings = 1000

// Tracker tracks orchestrator cycle and poll metrics
type Tracker struct {
	mu sync.RWMutex

	// Overall metrics
	TotalCycles    int
	TotalPolls     int
	FailedPolls    int
	TimedOutPolls  int
	TotalSnapshots int
	TotalEvents    int
	TotalAlerts    int
	Finalized      int

	// Timing metrics
	CycleDuration time.Duration
	PollDuration  time.Duration
	LastCycleAt   time.Time

	// Per-poll metrics, newest last
	PollTimings []PollTiming
}

// PollTiming tracks a single game poll
type PollTiming struct {
	GameID    int64
	Snapshots int
	Events    int
	Alerts    int
	Duration  time.Duration
	Success   bool
	TimedOut  bool
	Error     string
	Timestamp time.Time
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker {
	return &Tracker{PollTimings: make([]PollTiming, 0, 64)}
}

var globalTracker = NewTracker()

// GetTracker returns the process-wide tracker
func GetTracker() *Tracker {
	return globalTracker
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles = 0
	t.TotalPolls = 0
	t.FailedPolls = 0
	t.TimedOutPolls = 0
	t.TotalSnapshots = 0
	t.TotalEvents = 0
	t.TotalAlerts = 0
	t.Finalized = 0
	t.CycleDuration = 0
	t.PollDuration = 0
	t.LastCycleAt = time.Time{}
	t.PollTimings = t.PollTimings[:0]
}

// RecordCycle records a complete orchestrator cycle
func (t *Tracker) RecordCycle(duration time.Duration, finishedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles++
	t.CycleDuration += duration
	t.LastCycleAt = finishedAt
}

// RecordPoll records the outcome of one game poll
func (t *Tracker) RecordPoll(p PollTiming) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalPolls++
	t.PollDuration += p.Duration
	t.TotalSnapshots += p.Snapshots
	t.TotalEvents += p.Events
	t.TotalAlerts += p.Alerts
	if !p.Success {
		t.FailedPolls++
	}
	if p.TimedOut {
		t.TimedOutPolls++
	}

	if len(t.PollTimings) >= maxPollTimings {
		copy(t.PollTimings, t.PollTimings[1:])
		t.PollTimings = t.PollTimings[:len(t.PollTimings)-1]
	}
	t.PollTimings = append(t.PollTimings, p)
}

// RecordFinal counts a game moved to final
func (t *Tracker) RecordFinal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Finalized++
}

// LastCycle returns when the last cycle finished, zero before the first one
func (t *Tracker) LastCycle() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.LastCycleAt
}

// PrintSummary logs a performance summary
func (t *Tracker) PrintSummary() {
	m := t.GetMetrics()
	if m.Overall.TotalCycles == 0 {
		slog.Info("No performance data collected yet")
		return
	}

	slog.Info("Overall Statistics",
		"total_cycles", m.Overall.TotalCycles,
		"total_polls", m.Overall.TotalPolls,
		"failed_polls", m.Overall.FailedPolls,
		"timed_out_polls", m.Overall.TimedOutPolls,
		"snapshots", m.Overall.TotalSnapshots,
		"events", m.Overall.TotalEvents,
		"alerts", m.Overall.TotalAlerts,
		"finalized", m.Overall.Finalized)

	slog.Info("Timing Breakdown",
		"avg_cycle", m.Timing.AvgCycle,
		"avg_poll", m.Timing.AvgPoll,
		"poll_success_rate", m.Timing.PollSuccessRate)

	for _, p := range m.SlowestPolls {
		slog.Info("Slowest poll", "game_id", p.GameID, "duration", p.Duration, "success", p.Success)
	}
}

// MetricsResponse represents the JSON response structure for /metrics endpoint
type MetricsResponse struct {
	Overall struct {
		TotalCycles    int `json:"total_cycles"`
		TotalPolls     int `json:"total_polls"`
		FailedPolls    int `json:"failed_polls"`
		TimedOutPolls  int `json:"timed_out_polls"`
		TotalSnapshots int `json:"total_snapshots"`
		TotalEvents    int `json:"total_events"`
		TotalAlerts    int `json:"total_alerts"`
		Finalized      int `json:"finalized"`
	} `json:"overall"`

	Timing struct {
		AvgCycle        string  `json:"avg_cycle"`
		AvgPoll         string  `json:"avg_poll"`
		PollSuccessRate float64 `json:"poll_success_rate"`
		LastCycleAt     string  `json:"last_cycle_at,omitempty"`
	} `json:"timing"`

	SlowestPolls []struct {
		GameID   int64  `json:"game_id"`
		Duration string `json:"duration"`
		Success  bool   `json:"success"`
		Error    string `json:"error,omitempty"`
	} `json:"slowest_polls"`
}

// GetMetrics returns structured metrics for JSON API
func (t *Tracker) GetMetrics() MetricsResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var resp MetricsResponse
	resp.Overall.TotalCycles = t.TotalCycles
	resp.Overall.TotalPolls = t.TotalPolls
	resp.Overall.FailedPolls = t.FailedPolls
	resp.Overall.TimedOutPolls = t.TimedOutPolls
	resp.Overall.TotalSnapshots = t.TotalSnapshots
	resp.Overall.TotalEvents = t.TotalEvents
	resp.Overall.TotalAlerts = t.TotalAlerts
	resp.Overall.Finalized = t.Finalized

	if t.TotalCycles > 0 {
		resp.Timing.AvgCycle = (t.CycleDuration / time.Duration(t.TotalCycles)).String()
		resp.Timing.LastCycleAt = t.LastCycleAt.UTC().Format(time.RFC3339)
	}
	if t.TotalPolls > 0 {
		resp.Timing.AvgPoll = (t.PollDuration / time.Duration(t.TotalPolls)).String()
		resp.Timing.PollSuccessRate = float64(t.TotalPolls-t.FailedPolls) / float64(t.TotalPolls) * 100
	}

	slowest := make([]PollTiming, len(t.PollTimings))
	copy(slowest, t.PollTimings)
	sort.SliceStable(slowest, func(i, j int) bool { return slowest[i].Duration > slowest[j].Duration })
	if len(slowest) > 5 {
		slowest = slowest[:5]
	}
	for _, p := range slowest {
		resp.SlowestPolls = append(resp.SlowestPolls, struct {
			GameID   int64  `json:"game_id"`
			Duration string `json:"duration"`
			Success  bool   `json:"success"`
			Error    string `json:"error,omitempty"`
		}{p.GameID, p.Duration.String(), p.Success, p.Error})
	}
	return resp
}

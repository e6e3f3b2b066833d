package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/alerts"
	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

var t0 = time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func iptr(v int) *int             { return &v }
func fptr(v float64) *float64     { return &v }
func tptr(t time.Time) *time.Time { return &t }

// scriptPoller returns a queued result per game on each call.
type scriptPoller struct {
	name    string
	mu      sync.Mutex
	results map[int64][]*collector.PollResult
	errs    map[int64]error
	calls   map[int64]int
}

func newScriptPoller() *scriptPoller {
	return &scriptPoller{
		results: map[int64][]*collector.PollResult{},
		errs:    map[int64]error{},
		calls:   map[int64]int{},
	}
}

func namedPoller(name string) *scriptPoller {
	p := newScriptPoller()
	p.name = name
	return p
}

func (p *scriptPoller) Name() string {
	if p.name != "" {
		return p.name
	}
	return "script"
}

func (p *scriptPoller) PollGame(_ context.Context, game models.Game) (*collector.PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[game.ID]++
	if err := p.errs[game.ID]; err != nil {
		return nil, err
	}
	q := p.results[game.ID]
	if len(q) == 0 {
		return nil, nil
	}
	p.results[game.ID] = q[1:]
	return q[0], nil
}

func (p *scriptPoller) push(gameID int64, recs ...timeline.LiveOddsRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[gameID] = append(p.results[gameID], &collector.PollResult{Live: recs})
}

func (p *scriptPoller) pushQuarter(gameID int64, recs ...timeline.QuarterRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[gameID] = append(p.results[gameID], &collector.PollResult{Quarter: recs})
}

type staticLister []models.DiscoveredGame

func (l staticLister) DiscoverGames(context.Context) []models.DiscoveredGame { return l }

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerts.Notification
}

func (n *recordingNotifier) Name() string { return "test" }

func (n *recordingNotifier) Deliver(_ context.Context, note alerts.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Interval:          60 * time.Second,
		PreStartWindow:    15 * time.Minute,
		FinalQuietWindow:  20 * time.Minute,
		MinQuietSnapshots: 2,
		PollTimeout:       time.Second,
		HistorySize:       50,
	}
}

type harness struct {
	store    *storage.MemoryStore
	poller   *scriptPoller
	notifier *recordingNotifier
	clock    *clock
	orch     *Orchestrator
}

func newHarness(t *testing.T, lister collector.GameLister) *harness {
	t.Helper()
	h := &harness{
		store:    storage.NewMemoryStore(),
		poller:   newScriptPoller(),
		notifier: &recordingNotifier{},
		clock:    &clock{t: t0},
	}
	gate := alerts.NewGate(h.notifier, 10*time.Minute).WithClock(h.clock.now)
	h.orch = New(testConfig(), h.store, lister, h.poller, gate).WithClock(h.clock.now)
	return h
}

// useSources rebuilds the orchestrator over several live sources chained in order.
func (h *harness) useSources(sources ...collector.LivePoller) {
	gate := alerts.NewGate(h.notifier, 10*time.Minute).WithClock(h.clock.now)
	h.orch = New(testConfig(), h.store, nil, collector.Chain(sources), gate).WithClock(h.clock.now)
}

func (h *harness) addGame(t *testing.T, g models.Game) int64 {
	t.Helper()
	if err := h.store.CreateGame(context.Background(), &g); err != nil {
		t.Fatal(err)
	}
	return g.ID
}

func (h *harness) status(t *testing.T, id int64) models.GameStatus {
	t.Helper()
	g, err := h.store.GetGame(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return g.Status
}

func liveRec(ts time.Time, quarter, home, away int, mlHome, mlAway float64) timeline.LiveOddsRecord {
	return timeline.LiveOddsRecord{
		Timestamp:  ts,
		Quarter:    iptr(quarter),
		TeamAScore: iptr(home),
		TeamBScore: iptr(away),
		TeamAML:    fptr(mlHome),
		TeamBML:    fptr(mlAway),
	}
}

func TestShouldGoLive(t *testing.T) {
	tests := []struct {
		name string
		game models.Game
		want bool
	}{
		{"no start time", models.Game{Status: models.StatusScheduled}, false},
		{"starts in 10m", models.Game{Status: models.StatusScheduled, StartTime: tptr(t0.Add(10 * time.Minute))}, true},
		{"starts in exactly 15m", models.Game{Status: models.StatusScheduled, StartTime: tptr(t0.Add(15 * time.Minute))}, true},
		{"starts in 16m", models.Game{Status: models.StatusScheduled, StartTime: tptr(t0.Add(16 * time.Minute))}, false},
		{"already started", models.Game{Status: models.StatusScheduled, StartTime: tptr(t0.Add(-time.Hour))}, true},
		{"already live", models.Game{Status: models.StatusLive, StartTime: tptr(t0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldGoLive(tt.game, t0, 15*time.Minute); got != tt.want {
				t.Errorf("ShouldGoLive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldFinish(t *testing.T) {
	scored := func(ago time.Duration, home, away int) models.Snapshot {
		return models.Snapshot{Timestamp: t0.Add(-ago), Stage: "Q4", ScoreHome: iptr(home), ScoreAway: iptr(away)}
	}
	tests := []struct {
		name  string
		snaps []models.Snapshot
		want  bool
	}{
		{"empty", nil, false},
		{"final stage", []models.Snapshot{{Timestamp: t0, Stage: models.StageFinal}}, true},
		{"two identical scores", []models.Snapshot{scored(2*time.Minute, 100, 98), scored(time.Minute, 100, 98)}, true},
		{"score changed", []models.Snapshot{scored(2*time.Minute, 100, 98), scored(time.Minute, 102, 98)}, false},
		{"single snapshot", []models.Snapshot{scored(time.Minute, 100, 98)}, false},
		{"outside window", []models.Snapshot{scored(25*time.Minute, 100, 98), scored(21*time.Minute, 100, 98)}, false},
		{"window bound is inclusive", []models.Snapshot{scored(20*time.Minute, 100, 98), scored(time.Minute, 100, 98)}, true},
		{"same poll time", []models.Snapshot{scored(time.Minute, 100, 98), scored(time.Minute, 100, 98)}, false},
		{"final after quiet scores", []models.Snapshot{scored(2*time.Minute, 100, 98), {Timestamp: t0, Stage: models.StageFinal}}, true},
		{"unscored ignored", []models.Snapshot{
			scored(3*time.Minute, 100, 98),
			{Timestamp: t0.Add(-2 * time.Minute), Stage: "Q4"},
			scored(time.Minute, 100, 98),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldFinish(tt.snaps, t0, 20*time.Minute, 2); got != tt.want {
				t.Errorf("ShouldFinish = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextSleep(t *testing.T) {
	tests := []struct {
		elapsed, want time.Duration
	}{
		{10 * time.Second, 50 * time.Second},
		{60 * time.Second, 0},
		{90 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := nextSleep(60*time.Second, tt.elapsed); got != tt.want {
			t.Errorf("nextSleep(60s, %v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestRunCycle_StartsGameInPreStartWindow(t *testing.T) {
	h := newHarness(t, nil)
	soon := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", StartTime: tptr(t0.Add(10 * time.Minute))})
	later := h.addGame(t, models.Game{HomeTeam: "Knicks", AwayTeam: "Bulls", StartTime: tptr(t0.Add(3 * time.Hour))})

	if err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.status(t, soon); got != models.StatusLive {
		t.Errorf("status(soon) = %v, want live", got)
	}
	if got := h.status(t, later); got != models.StatusScheduled {
		t.Errorf("status(later) = %v, want scheduled", got)
	}
	if h.poller.calls[soon] != 1 || h.poller.calls[later] != 0 {
		t.Errorf("calls = %v, want soon polled once and later untouched", h.poller.calls)
	}
}

func TestPollGame_QuietScoreMarksFinal(t *testing.T) {
	h := newHarness(t, nil)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive})
	ctx := context.Background()

	h.poller.push(id, liveRec(h.clock.now(), 4, 110, 104, 1.05, 9.0))
	out, err := h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusLive {
		t.Fatalf("after first poll status = %v, want live", out.Status)
	}

	h.clock.advance(time.Minute)
	h.poller.push(id, liveRec(h.clock.now(), 4, 110, 104, 1.04, 10.0))
	out, err = h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusFinal || h.status(t, id) != models.StatusFinal {
		t.Errorf("status = %v, want final", out.Status)
	}

	// Final is terminal: no further collector calls.
	calls := h.poller.calls[id]
	if _, err := h.orch.PollGame(ctx, id); err != nil {
		t.Fatal(err)
	}
	if h.poller.calls[id] != calls {
		t.Error("final game was polled again")
	}
}

func TestPollGame_FinalStage(t *testing.T) {
	h := newHarness(t, nil)
	id := h.addGame(t, models.Game{Status: models.StatusLive})
	rec := liveRec(h.clock.now(), 4, 120, 110, 1.01, 30.0)
	rec.Final = true
	h.poller.push(id, rec)

	out, err := h.orch.PollGame(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusFinal {
		t.Errorf("status = %v, want final", out.Status)
	}
}

func TestPollGame_NilResultIsNotFinal(t *testing.T) {
	h := newHarness(t, nil)
	id := h.addGame(t, models.Game{Status: models.StatusLive})

	for i := 0; i < 3; i++ {
		out, err := h.orch.PollGame(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if !out.NoData {
			t.Error("NoData = false, want true")
		}
		h.clock.advance(time.Minute)
	}
	if got := h.status(t, id); got != models.StatusLive {
		t.Errorf("status = %v, want live", got)
	}
}

func TestPollGame_InPlayDataStartsScheduledGame(t *testing.T) {
	h := newHarness(t, nil)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat"})
	h.poller.push(id, liveRec(h.clock.now(), 1, 2, 0, 1.5, 2.6))

	if err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.status(t, id); got != models.StatusLive {
		t.Errorf("status = %v, want live", got)
	}
}

func TestPollGame_AlertsOnlyForNewSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive})
	ctx := context.Background()

	// Home 1/1.25 = 80% -> 1/2.0 = 50%: home dip, away surge and away reversal.
	h.poller.push(id, liveRec(h.clock.now(), 2, 50, 40, 1.25, 5.0))
	if _, err := h.orch.PollGame(ctx, id); err != nil {
		t.Fatal(err)
	}
	h.clock.advance(time.Minute)
	h.poller.push(id, liveRec(h.clock.now(), 2, 50, 52, 2.0, 1.8))
	out, err := h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Events) == 0 {
		t.Fatal("no events detected")
	}
	if len(out.Alerts) != 1 || len(h.notifier.notes) != 1 {
		t.Fatalf("alerts = %d, notes = %d, want 1 each (cooldown)", len(out.Alerts), len(h.notifier.notes))
	}

	// A quiet follow-up poll must not re-report the old swing.
	h.clock.advance(11 * time.Minute)
	h.poller.push(id, liveRec(h.clock.now(), 3, 60, 64, 2.0, 1.8))
	out, err = h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range out.Events {
		if ev.Kind != models.EventStabilizing {
			t.Errorf("unexpected event %v on quiet poll", ev.Kind)
		}
	}
	if len(out.Alerts) != 0 {
		t.Errorf("alerts = %d, want 0", len(out.Alerts))
	}
	stored, _ := h.store.ListSnapshots(ctx, id, storage.SnapshotQuery{})
	if len(stored) != 3 {
		t.Errorf("stored snapshots = %d, want 3", len(stored))
	}
}

func oddsRec(ts time.Time, home, away int, mlHome, mlAway float64) timeline.QuarterRecord {
	return timeline.QuarterRecord{Timestamp: ts, Stage: "Q2", ScoreHome: iptr(home), ScoreAway: iptr(away), MLHome: fptr(mlHome), MLAway: fptr(mlAway)}
}

func boardRec(ts time.Time, home, away int) timeline.LiveOddsRecord {
	return timeline.LiveOddsRecord{Source: models.SourceESPN, Timestamp: ts, Quarter: iptr(2), TeamAScore: iptr(home), TeamBScore: iptr(away)}
}

func TestPollGame_TwoSourcesAgreeingIsNotFinal(t *testing.T) {
	h := newHarness(t, nil)
	odds, board := namedPoller("odds"), namedPoller("board")
	h.useSources(odds, board)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive})
	ctx := context.Background()

	odds.pushQuarter(id, oddsRec(h.clock.now(), 50, 40, 1.25, 4.0))
	board.push(id, boardRec(h.clock.now().Add(time.Second), 50, 40))
	out, err := h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusLive || h.status(t, id) != models.StatusLive {
		t.Fatalf("after first poll status = %v, want live", out.Status)
	}
	stored, _ := h.store.ListSnapshots(ctx, id, storage.SnapshotQuery{})
	if len(stored) != 1 || out.Snapshots != 1 {
		t.Fatalf("stored = %d, out.Snapshots = %d, want one merged snapshot", len(stored), out.Snapshots)
	}
	if got := stored[0].Source; got != "oddsportal+espn" {
		t.Errorf("Source = %q, want %q", got, "oddsportal+espn")
	}
	if stored[0].MoneylineHome == nil || !stored[0].HasScore() {
		t.Errorf("merged snapshot = %+v, want odds and score", stored[0])
	}

	// The score holding across a second poll is what ends the game.
	h.clock.advance(time.Minute)
	odds.pushQuarter(id, oddsRec(h.clock.now(), 50, 40, 1.01, 20.0))
	board.push(id, boardRec(h.clock.now(), 50, 40))
	out, err = h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusFinal {
		t.Errorf("after second quiet poll status = %v, want final", out.Status)
	}
}

func TestPollGame_TwoSourcesDetectMomentum(t *testing.T) {
	h := newHarness(t, nil)
	odds, board := namedPoller("odds"), namedPoller("board")
	h.useSources(odds, board)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive})
	ctx := context.Background()

	odds.pushQuarter(id, oddsRec(h.clock.now(), 50, 40, 1.25, 4.0))
	board.push(id, boardRec(h.clock.now().Add(time.Second), 50, 40))
	if _, err := h.orch.PollGame(ctx, id); err != nil {
		t.Fatal(err)
	}

	h.clock.advance(time.Minute)
	odds.pushQuarter(id, oddsRec(h.clock.now(), 50, 52, 2.0, 1.8))
	board.push(id, boardRec(h.clock.now().Add(time.Second), 50, 52))
	out, err := h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	kinds := map[models.EventKind]bool{}
	for _, ev := range out.Events {
		kinds[ev.Kind] = true
	}
	for _, want := range []models.EventKind{models.EventFavoriteDip, models.EventUnderdogSurge, models.EventReversal} {
		if !kinds[want] {
			t.Errorf("missing %v in %+v", want, out.Events)
		}
	}
	if len(out.Alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(out.Alerts))
	}
	if out.Status != models.StatusLive {
		t.Errorf("status = %v, want live", out.Status)
	}
}

func TestPollGame_OneSourceFailing(t *testing.T) {
	h := newHarness(t, nil)
	odds, board := namedPoller("odds"), namedPoller("board")
	h.useSources(odds, board)
	id := h.addGame(t, models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive})
	ctx := context.Background()

	odds.errs[id] = errors.New("page load timeout")
	board.push(id, boardRec(h.clock.now(), 12, 9))
	out, err := h.orch.PollGame(ctx, id)
	if err != nil {
		t.Fatalf("PollGame = %v, want nil with one source up", err)
	}
	if out.NoData || out.Snapshots != 1 {
		t.Errorf("outcome = %+v, want one snapshot", out)
	}
	stored, _ := h.store.ListSnapshots(ctx, id, storage.SnapshotQuery{})
	if len(stored) != 1 || stored[0].Source != models.SourceESPN || stored[0].MoneylineHome != nil {
		t.Errorf("stored = %+v, want one score-only espn snapshot", stored)
	}
}

func TestRunCycle_FailingGameDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, nil)
	bad := h.addGame(t, models.Game{Status: models.StatusLive})
	good := h.addGame(t, models.Game{Status: models.StatusLive})
	h.poller.errs[bad] = errors.New("upstream 503")
	h.poller.push(good, liveRec(h.clock.now(), 1, 5, 3, 1.6, 2.4))

	if err := h.orch.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	snaps, _ := h.store.ListSnapshots(context.Background(), good, storage.SnapshotQuery{})
	if len(snaps) != 1 {
		t.Errorf("good game snapshots = %d, want 1", len(snaps))
	}
	m := h.orch.Tracker().GetMetrics()
	if m.Overall.TotalPolls != 2 || m.Overall.FailedPolls != 1 || m.Overall.TotalCycles != 1 {
		t.Errorf("metrics = %+v", m.Overall)
	}
}

func TestSyncRoster(t *testing.T) {
	start := t0.Add(2 * time.Hour)
	lister := staticLister{
		{HomeTeam: "Boston Celtics", AwayTeam: "Miami Heat", ExternalURL: "https://example.test/mia-bos", StartTime: &start,
			Pregame: &models.PregameOdds{MoneylineHome: fptr(1.5), MoneylineAway: fptr(2.7)}},
		{HomeTeam: "No Link", AwayTeam: "Skipped"},
	}
	h := newHarness(t, lister)
	ctx := context.Background()

	created, err := h.orch.SyncRoster(ctx)
	if err != nil || created != 1 {
		t.Fatalf("SyncRoster = %d, %v; want 1, nil", created, err)
	}
	created, err = h.orch.SyncRoster(ctx)
	if err != nil || created != 0 {
		t.Errorf("second SyncRoster = %d, %v; want 0, nil", created, err)
	}
	games, _ := h.store.ListGamesByStatus(ctx, models.StatusScheduled)
	if len(games) != 1 || games[0].Pregame.Empty() {
		t.Errorf("games = %+v", games)
	}
}

type blockingPoller struct{ release chan struct{} }

func (blockingPoller) Name() string { return "blocking" }

func (p blockingPoller) PollGame(ctx context.Context, _ models.Game) (*collector.PollResult, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil, ctx.Err()
}

func TestPollGuard_Timeout(t *testing.T) {
	g := NewPollGuard(20 * time.Millisecond)
	p := blockingPoller{release: make(chan struct{})}
	defer close(p.release)

	_, err := g.Poll(context.Background(), p, models.Game{ID: 1})
	if !errors.Is(err, ErrPollTimeout) {
		t.Errorf("err = %v, want ErrPollTimeout", err)
	}
}

func TestPollGuard_ParentCancel(t *testing.T) {
	g := NewPollGuard(time.Second)
	p := blockingPoller{release: make(chan struct{})}
	defer close(p.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Poll(ctx, p, models.Game{ID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPollGame_TimeoutIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	cfg := testConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	p := blockingPoller{release: make(chan struct{})}
	defer close(p.release)
	h.orch = New(cfg, h.store, nil, p, nil).WithClock(h.clock.now)
	id := h.addGame(t, models.Game{Status: models.StatusLive})

	_, err := h.orch.PollGame(context.Background(), id)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if m := h.orch.Tracker().GetMetrics(); m.Overall.TimedOutPolls != 1 {
		t.Errorf("TimedOutPolls = %d, want 1", m.Overall.TimedOutPolls)
	}
	if got := h.status(t, id); got != models.StatusLive {
		t.Errorf("status = %v, want live", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

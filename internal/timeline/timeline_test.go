package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

var base = time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestNormalize_SortsStably(t *testing.T) {
	records := []models.Snapshot{
		{GameID: 1, Timestamp: base.Add(2 * time.Minute), Source: "b"},
		{GameID: 1, Timestamp: base, Source: "a"},
		{GameID: 1, Timestamp: base.Add(2 * time.Minute), Source: "c"},
		{GameID: 1, Timestamp: base.Add(time.Minute), Source: "d"},
	}
	tl, err := Normalize(records)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	want := []string{"a", "d", "b", "c"}
	if len(tl) != len(want) {
		t.Fatalf("len = %d, want %d", len(tl), len(want))
	}
	for i, s := range tl {
		if s.Source != want[i] {
			t.Errorf("tl[%d].Source = %q, want %q", i, s.Source, want[i])
		}
	}
}

func TestNormalize_RejectsMissingTimestamp(t *testing.T) {
	records := []models.Snapshot{
		{GameID: 1, Timestamp: base},
		{GameID: 1},
	}
	tl, err := Normalize(records)
	if !errors.Is(err, ErrMissingTimestamp) {
		t.Fatalf("err = %v, want ErrMissingTimestamp", err)
	}
	if len(tl) != 1 {
		t.Errorf("len = %d, want 1", len(tl))
	}
}

func TestNormalize_NoDedup(t *testing.T) {
	s := models.Snapshot{GameID: 1, Timestamp: base, MoneylineHome: fptr(1.5)}
	tl, _ := Normalize([]models.Snapshot{s, s})
	if len(tl) != 2 {
		t.Errorf("len = %d, want 2 (identical records are kept)", len(tl))
	}
}

func TestNormalize_DefaultsStageToLive(t *testing.T) {
	tl, _ := Normalize([]models.Snapshot{{GameID: 1, Timestamp: base}})
	if tl[0].Stage != models.StageLive {
		t.Errorf("Stage = %q, want live", tl[0].Stage)
	}
}

func TestFromLiveOddsRecord(t *testing.T) {
	snap, err := FromLiveOddsRecord(7, LiveOddsRecord{
		Timestamp:  base,
		TeamAScore: iptr(50),
		TeamBScore: iptr(48),
		TeamAML:    fptr(1.7),
		TeamBML:    fptr(2.2),
		SpreadLine: fptr(-2.5),
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if snap.Stage != models.StageLive {
		t.Errorf("Stage = %q, want live for unknown quarter", snap.Stage)
	}
	if *snap.ScoreHome != 50 || *snap.ScoreAway != 48 {
		t.Errorf("scores = %d-%d, want 50-48", *snap.ScoreHome, *snap.ScoreAway)
	}
	if *snap.MoneylineHome != 1.7 || *snap.MoneylineAway != 2.2 {
		t.Errorf("moneylines = %v/%v", *snap.MoneylineHome, *snap.MoneylineAway)
	}
	if snap.Source != models.SourcePinnacle {
		t.Errorf("Source = %q", snap.Source)
	}

	snap, _ = FromLiveOddsRecord(7, LiveOddsRecord{Timestamp: base, Quarter: iptr(3)})
	if snap.Stage != "Q3" {
		t.Errorf("Stage = %q, want Q3", snap.Stage)
	}

	snap, _ = FromLiveOddsRecord(7, LiveOddsRecord{Timestamp: base, Quarter: iptr(4), Final: true})
	if snap.Stage != models.StageFinal {
		t.Errorf("Stage = %q, want final", snap.Stage)
	}
}

func TestFromQuarterRecord_InvalidOddsNulled(t *testing.T) {
	snap, err := FromQuarterRecord(3, QuarterRecord{
		Timestamp: base,
		Stage:     "Q2",
		MLHome:    fptr(0.95),
		MLAway:    fptr(3.1),
		ScoreHome: iptr(-1),
	})
	if !errors.Is(err, ErrInvalidOdds) || !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("err = %v, want ErrInvalidOdds and ErrInvalidScore", err)
	}
	if snap.MoneylineHome != nil {
		t.Errorf("MoneylineHome = %v, want nil", *snap.MoneylineHome)
	}
	if snap.ScoreHome != nil {
		t.Errorf("ScoreHome = %v, want nil", *snap.ScoreHome)
	}
	if snap.MoneylineAway == nil || *snap.MoneylineAway != 3.1 {
		t.Errorf("MoneylineAway = %v, want 3.1", snap.MoneylineAway)
	}
	if snap.Stage != "Q2" {
		t.Errorf("Stage = %q, want Q2", snap.Stage)
	}
}

func TestAdapters_MissingTimestamp(t *testing.T) {
	if _, err := FromQuarterRecord(1, QuarterRecord{}); !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("FromQuarterRecord err = %v", err)
	}
	if _, err := FromLiveOddsRecord(1, LiveOddsRecord{}); !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("FromLiveOddsRecord err = %v", err)
	}
}

func TestTimelineHelpers(t *testing.T) {
	tl := Timeline{
		{Timestamp: base, Stage: "Q4"},
		{Timestamp: base.Add(time.Minute), Stage: models.StageFinal},
		{Timestamp: base.Add(2 * time.Minute), Stage: models.StageLive},
	}
	if got := tl.UntilFinal(); len(got) != 2 {
		t.Errorf("UntilFinal len = %d, want 2", len(got))
	}
	if !tl.HasFinal() {
		t.Error("HasFinal = false, want true")
	}
	if got := tl.Since(base); len(got) != 3 {
		t.Errorf("Since(first) len = %d, want 3", len(got))
	}
	if got := tl.Since(base.Add(30 * time.Second)); len(got) != 2 {
		t.Errorf("Since(between) len = %d, want 2", len(got))
	}
	if got := tl.Since(base.Add(time.Hour)); len(got) != 0 {
		t.Errorf("Since(after last) len = %d, want 0", len(got))
	}
	if got := tl.Tail(1); len(got) != 1 || got[0].Stage != models.StageLive {
		t.Errorf("Tail(1) = %+v", got)
	}
	if last, ok := tl.Last(); !ok || !last.Timestamp.Equal(base.Add(2*time.Minute)) {
		t.Errorf("Last = %+v, %v", last, ok)
	}
}

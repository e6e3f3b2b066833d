package timeline

import (
	"testing"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

func TestMerge_OddsAndScoreSources(t *testing.T) {
	odds := models.Snapshot{GameID: 4, Timestamp: base, Stage: models.StageLive, Source: models.SourceOddsPortal,
		MoneylineHome: fptr(1.25), MoneylineAway: fptr(4.0), Spread: fptr(-7.5)}
	board := models.Snapshot{GameID: 4, Timestamp: base.Add(time.Second), Stage: "Q3", Source: models.SourceESPN,
		ScoreHome: iptr(70), ScoreAway: iptr(61)}
	bookie := models.Snapshot{GameID: 4, Timestamp: base, Stage: models.StageLive, Source: models.SourcePinnacle,
		MoneylineHome: fptr(1.3), MoneylineAway: fptr(3.6), Total: fptr(221.5)}

	s, ok := Merge([]models.Snapshot{odds, board, bookie})
	if !ok {
		t.Fatal("Merge ok = false, want true")
	}
	if *s.MoneylineHome != 1.25 || *s.MoneylineAway != 4.0 {
		t.Errorf("moneyline = %v/%v, want 1.25/4", *s.MoneylineHome, *s.MoneylineAway)
	}
	if !s.HasScore() || *s.ScoreHome != 70 || *s.ScoreAway != 61 {
		t.Errorf("score = %v/%v, want 70/61", s.ScoreHome, s.ScoreAway)
	}
	if *s.Spread != -7.5 || s.Total == nil || *s.Total != 221.5 {
		t.Errorf("spread/total = %v/%v", s.Spread, s.Total)
	}
	if s.Stage != "Q3" {
		t.Errorf("Stage = %v, want Q3", s.Stage)
	}
	if !s.Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("Timestamp = %v, want latest record", s.Timestamp)
	}
	if s.Source != "oddsportal+espn+pinnacle" || s.GameID != 4 {
		t.Errorf("Source = %q, GameID = %d", s.Source, s.GameID)
	}
}

func TestMerge_Stage(t *testing.T) {
	tests := []struct {
		name   string
		stages []models.Stage
		want   models.Stage
	}{
		{"final wins", []models.Stage{"Q4", models.StageFinal, models.StageLive}, models.StageFinal},
		{"quarter beats live", []models.Stage{models.StageLive, "Q2"}, "Q2"},
		{"later quarter", []models.Stage{"Q5", "Q4"}, "Q5"},
		{"live beats pregame", []models.Stage{models.StagePregame, models.StageLive}, models.StageLive},
		{"empty defaults to live", []models.Stage{""}, models.StageLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recs []models.Snapshot
			for _, st := range tt.stages {
				recs = append(recs, models.Snapshot{Timestamp: base, Stage: st})
			}
			s, _ := Merge(recs)
			if s.Stage != tt.want {
				t.Errorf("Stage = %v, want %v", s.Stage, tt.want)
			}
		})
	}
}

func TestMerge_PrefersCompleteMoneyline(t *testing.T) {
	partial := models.Snapshot{Timestamp: base, MoneylineHome: fptr(1.5)}
	full := models.Snapshot{Timestamp: base, MoneylineHome: fptr(1.6), MoneylineAway: fptr(2.4)}
	s, _ := Merge([]models.Snapshot{partial, full})
	if s.MoneylineAway == nil || *s.MoneylineHome != 1.6 {
		t.Errorf("moneyline = %v/%v, want 1.6/2.4", s.MoneylineHome, s.MoneylineAway)
	}
}

func TestMerge_Empty(t *testing.T) {
	if _, ok := Merge(nil); ok {
		t.Error("Merge(nil) ok = true, want false")
	}
	if _, ok := Merge([]models.Snapshot{{Stage: "Q1"}}); ok {
		t.Error("Merge(no timestamp) ok = true, want false")
	}
}

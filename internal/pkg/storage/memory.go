package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Transactions are serialized and
// a failed transaction restores the state captured when it began.
type MemoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	games     []models.Game
	snapshots []models.Snapshot
	alerts    []models.AlertRecord
	nextID    int64
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) findGame(id int64) int {
	for i := range s.games {
		if s.games[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) UpsertGameByURL(_ context.Context, d models.DiscoveredGame) (*models.Game, bool, error) {
	if d.ExternalURL == "" {
		return nil, false, fmt.Errorf("upsert game: external url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ExternalURL == d.ExternalURL {
			mergeDiscovered(&s.games[i], d)
			g := s.games[i]
			return &g, false, nil
		}
	}
	g := newGameFromDiscovered(d, s.now())
	g.ID = s.id()
	s.games = append(s.games, *g)
	return g, true, nil
}

func (s *MemoryStore) CreateGame(_ context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Status == "" {
		g.Status = models.StatusScheduled
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.ID = s.id()
	s.games = append(s.games, *g)
	return nil
}

func (s *MemoryStore) GetGame(_ context.Context, id int64) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findGame(id)
	if i < 0 {
		return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	g := s.games[i]
	return &g, nil
}

func (s *MemoryStore) ListGamesByStatus(_ context.Context, statuses ...models.GameStatus) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Game
	for _, g := range s.games {
		for _, st := range statuses {
			if g.Status == st {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateGameStatus(_ context.Context, id int64, status models.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findGame(id)
	if i < 0 {
		return fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	next, err := s.games[i].Status.Advance(status)
	if err != nil {
		return fmt.Errorf("game %d: %w", id, err)
	}
	s.games[i].Status = next
	return nil
}

func (s *MemoryStore) UpdateGameTeams(_ context.Context, id int64, home, away string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findGame(id)
	if i < 0 {
		return fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	if home != "" {
		s.games[i].HomeTeam = home
	}
	if away != "" {
		s.games[i].AwayTeam = away
	}
	return nil
}

func (s *MemoryStore) TouchGame(_ context.Context, id int64, polledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findGame(id)
	if i < 0 {
		return fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	s.games[i].LastPolledAt = &polledAt
	return nil
}

func (s *MemoryStore) InsertSnapshots(_ context.Context, snaps []models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range snaps {
		if s.findGame(snaps[i].GameID) < 0 {
			return fmt.Errorf("insert snapshot for game %d: %w", snaps[i].GameID, ErrGameNotFound)
		}
	}
	for i := range snaps {
		snaps[i].ID = s.id()
		s.snapshots = append(s.snapshots, snaps[i])
	}
	return nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, gameID int64, q SnapshotQuery) ([]models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Snapshot
	for _, snap := range s.snapshots {
		if snap.GameID != gameID {
			continue
		}
		if q.Since != nil && snap.Timestamp.Before(*q.Since) {
			continue
		}
		out = append(out, snap)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (s *MemoryStore) DeleteSnapshots(_ context.Context, gameID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.snapshots[:0]
	var removed int64
	for _, snap := range s.snapshots {
		if snap.GameID == gameID {
			removed++
			continue
		}
		kept = append(kept, snap)
	}
	s.snapshots = kept
	return removed, nil
}

func (s *MemoryStore) LastAlertTime(_ context.Context, gameID int64) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *time.Time
	for _, a := range s.alerts {
		if a.GameID != gameID {
			continue
		}
		if last == nil || a.Timestamp.After(*last) {
			ts := a.Timestamp
			last = &ts
		}
	}
	return last, nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, rec *models.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.id()
	s.alerts = append(s.alerts, *rec)
	return nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, gameID int64) ([]models.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AlertRecord
	for _, a := range s.alerts {
		if a.GameID == gameID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memoryState struct {
	games     []models.Game
	snapshots []models.Snapshot
	alerts    []models.AlertRecord
	nextID    int64
}

func (s *MemoryStore) save() memoryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryState{
		games:     append([]models.Game(nil), s.games...),
		snapshots: append([]models.Snapshot(nil), s.snapshots...),
		alerts:    append([]models.AlertRecord(nil), s.alerts...),
		nextID:    s.nextID,
	}
}

func (s *MemoryStore) restore(st memoryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games, s.snapshots, s.alerts, s.nextID = st.games, st.snapshots, st.alerts, st.nextID
}

func (s *MemoryStore) InTx(_ context.Context, fn func(Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	saved := s.save()
	if err := fn(s); err != nil {
		s.restore(saved)
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

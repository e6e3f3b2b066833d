package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists games, snapshots and alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

// NewPostgresStore opens the connection, checks it and creates the schema.
func NewPostgresStore(cfg *config.PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{db: db, q: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL storage initialized successfully")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS games (
		id BIGSERIAL PRIMARY KEY,
		home_team VARCHAR(200) NOT NULL DEFAULT '',
		away_team VARCHAR(200) NOT NULL DEFAULT '',
		external_url VARCHAR(1000) UNIQUE,
		status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
		start_time TIMESTAMPTZ,
		last_polled_at TIMESTAMPTZ,
		pregame_ml_home DOUBLE PRECISION,
		pregame_ml_away DOUBLE PRECISION,
		pregame_spread DOUBLE PRECISION,
		pregame_total DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);

	CREATE TABLE IF NOT EXISTS snapshots (
		id BIGSERIAL PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id),
		ts TIMESTAMPTZ NOT NULL,
		stage VARCHAR(16) NOT NULL DEFAULT 'live',
		score_home INTEGER,
		score_away INTEGER,
		ml_home DOUBLE PRECISION,
		ml_away DOUBLE PRECISION,
		spread DOUBLE PRECISION,
		total DOUBLE PRECISION,
		source VARCHAR(32) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_game_ts ON snapshots(game_id, ts, id);

	CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id),
		kind VARCHAR(32) NOT NULL,
		message TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		channel VARCHAR(32) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_game_sent ON alerts(game_id, sent_at DESC);
	`
	_, err := s.q.ExecContext(ctx, query)
	return err
}

// InTx runs fn inside a database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const gameColumns = `id, home_team, away_team, COALESCE(external_url, ''), status, start_time, last_polled_at,
	pregame_ml_home, pregame_ml_away, pregame_spread, pregame_total, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var (
		g                             models.Game
		status                        string
		startTime, polledAt           sql.NullTime
		mlHome, mlAway, spread, total sql.NullFloat64
	)
	if err := row.Scan(&g.ID, &g.HomeTeam, &g.AwayTeam, &g.ExternalURL, &status, &startTime, &polledAt,
		&mlHome, &mlAway, &spread, &total, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.Status = models.ParseGameStatus(status)
	g.StartTime = timePtr(startTime)
	g.LastPolledAt = timePtr(polledAt)
	p := &models.PregameOdds{
		MoneylineHome: floatPtr(mlHome),
		MoneylineAway: floatPtr(mlAway),
		Spread:        floatPtr(spread),
		Total:         floatPtr(total),
	}
	if !p.Empty() {
		g.Pregame = p
	}
	return &g, nil
}

func (s *PostgresStore) getGameByURL(ctx context.Context, url string) (*models.Game, error) {
	g, err := scanGame(s.q.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE external_url = $1`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

// UpsertGameByURL inserts or refreshes a game keyed by its external URL.
func (s *PostgresStore) UpsertGameByURL(ctx context.Context, d models.DiscoveredGame) (*models.Game, bool, error) {
	if d.ExternalURL == "" {
		return nil, false, fmt.Errorf("upsert game: external url is required")
	}
	existing, err := s.getGameByURL(ctx, d.ExternalURL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up game by url: %w", err)
	}
	if existing == nil {
		g := newGameFromDiscovered(d, time.Now())
		if err := s.CreateGame(ctx, g); err != nil {
			return nil, false, err
		}
		return g, true, nil
	}

	mergeDiscovered(existing, d)
	pg := existing.Pregame
	if pg == nil {
		pg = &models.PregameOdds{}
	}
	query := `
	UPDATE games SET
		home_team = $2, away_team = $3, status = $4, start_time = $5,
		pregame_ml_home = $6, pregame_ml_away = $7, pregame_spread = $8, pregame_total = $9
	WHERE id = $1
	`
	if _, err := s.q.ExecContext(ctx, query,
		existing.ID, existing.HomeTeam, existing.AwayTeam, string(existing.Status), existing.StartTime,
		pg.MoneylineHome, pg.MoneylineAway, pg.Spread, pg.Total,
	); err != nil {
		return nil, false, fmt.Errorf("failed to update game %d: %w", existing.ID, err)
	}
	return existing, false, nil
}

// CreateGame inserts a game and sets its ID and creation time.
func (s *PostgresStore) CreateGame(ctx context.Context, g *models.Game) error {
	if g.Status == "" {
		g.Status = models.StatusScheduled
	}
	pg := g.Pregame
	if pg == nil {
		pg = &models.PregameOdds{}
	}
	query := `
	INSERT INTO games (
		home_team, away_team, external_url, status, start_time,
		pregame_ml_home, pregame_ml_away, pregame_spread, pregame_total
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at
	`
	err := s.q.QueryRowContext(ctx, query,
		g.HomeTeam, g.AwayTeam, nullString(g.ExternalURL), string(g.Status), g.StartTime,
		pg.MoneylineHome, pg.MoneylineAway, pg.Spread, pg.Total,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	g, err := scanGame(s.q.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return g, nil
}

func (s *PostgresStore) ListGamesByStatus(ctx context.Context, statuses ...models.GameStatus) ([]models.Game, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(st)
	}
	query := `SELECT ` + gameColumns + ` FROM games WHERE status IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// UpdateGameStatus moves a game forward, locking the row for the read-check-write.
func (s *PostgresStore) UpdateGameStatus(ctx context.Context, id int64, status models.GameStatus) error {
	var current string
	err := s.q.QueryRowContext(ctx, `SELECT status FROM games WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read status of game %d: %w", id, err)
	}
	next, err := models.GameStatus(current).Advance(status)
	if err != nil {
		return fmt.Errorf("game %d: %w", id, err)
	}
	if next == models.GameStatus(current) {
		return nil
	}
	if _, err := s.q.ExecContext(ctx, `UPDATE games SET status = $2 WHERE id = $1`, id, string(next)); err != nil {
		return fmt.Errorf("failed to update status of game %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateGameTeams(ctx context.Context, id int64, home, away string) error {
	query := `
	UPDATE games SET
		home_team = COALESCE(NULLIF($2, ''), home_team),
		away_team = COALESCE(NULLIF($3, ''), away_team)
	WHERE id = $1
	`
	return s.execOne(ctx, id, query, id, home, away)
}

func (s *PostgresStore) TouchGame(ctx context.Context, id int64, polledAt time.Time) error {
	return s.execOne(ctx, id, `UPDATE games SET last_polled_at = $2 WHERE id = $1`, id, polledAt)
}

func (s *PostgresStore) execOne(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	return nil
}

func (s *PostgresStore) InsertSnapshots(ctx context.Context, snaps []models.Snapshot) error {
	query := `
	INSERT INTO snapshots (
		game_id, ts, stage, score_home, score_away,
		ml_home, ml_away, spread, total, source
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
	`
	for i := range snaps {
		sn := &snaps[i]
		err := s.q.QueryRowContext(ctx, query,
			sn.GameID, sn.Timestamp, string(sn.Stage), sn.ScoreHome, sn.ScoreAway,
			sn.MoneylineHome, sn.MoneylineAway, sn.Spread, sn.Total, sn.Source,
		).Scan(&sn.ID)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for game %d: %w", sn.GameID, err)
		}
	}
	return nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, gameID int64, q SnapshotQuery) ([]models.Snapshot, error) {
	cols := `id, game_id, ts, stage, score_home, score_away, ml_home, ml_away, spread, total, source`
	args := []any{gameID}
	where := `game_id = $1`
	if q.Since != nil {
		args = append(args, *q.Since)
		where += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	query := `SELECT ` + cols + ` FROM snapshots WHERE ` + where + ` ORDER BY ts, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query = fmt.Sprintf(`SELECT %s FROM (SELECT %s FROM snapshots WHERE %s ORDER BY ts DESC, id DESC LIMIT $%d) recent ORDER BY ts, id`,
			cols, cols, where, len(args))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var (
			sn                            models.Snapshot
			stage                         string
			scoreHome, scoreAway          sql.NullInt64
			mlHome, mlAway, spread, total sql.NullFloat64
		)
		if err := rows.Scan(&sn.ID, &sn.GameID, &sn.Timestamp, &stage, &scoreHome, &scoreAway,
			&mlHome, &mlAway, &spread, &total, &sn.Source); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		sn.Stage = models.ParseStage(stage)
		sn.ScoreHome = intPtr(scoreHome)
		sn.ScoreAway = intPtr(scoreAway)
		sn.MoneylineHome = floatPtr(mlHome)
		sn.MoneylineAway = floatPtr(mlAway)
		sn.Spread = floatPtr(spread)
		sn.Total = floatPtr(total)
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSnapshots(ctx context.Context, gameID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM snapshots WHERE game_id = $1`, gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots for game %d: %w", gameID, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("Deleted snapshots", "game_id", gameID, "rows_deleted", n)
	}
	return n, nil
}

func (s *PostgresStore) LastAlertTime(ctx context.Context, gameID int64) (*time.Time, error) {
	var last sql.NullTime
	err := s.q.QueryRowContext(ctx, `SELECT MAX(sent_at) FROM alerts WHERE game_id = $1`, gameID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last alert time: %w", err)
	}
	return timePtr(last), nil
}

func (s *PostgresStore) InsertAlert(ctx context.Context, rec *models.AlertRecord) error {
	query := `
	INSERT INTO alerts (game_id, kind, message, sent_at, channel)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
	`
	err := s.q.QueryRowContext(ctx, query, rec.GameID, string(rec.Kind), rec.Message, rec.Timestamp, rec.Channel).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, gameID int64) ([]models.AlertRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, game_id, kind, message, sent_at, channel FROM alerts WHERE game_id = $1 ORDER BY sent_at, id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		var kind string
		if err := rows.Scan(&a.ID, &a.GameID, &kind, &a.Message, &a.Timestamp, &a.Channel); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Kind = models.EventKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func intPtr(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}

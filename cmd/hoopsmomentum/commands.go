package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/hoopsmomentum/internal/momentum"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/health"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
	"github.com/Vodeneev/hoopsmomentum/internal/replay"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseGameID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", arg)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd(flags *globalFlags) *cobra.Command {
	var runFor time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator loop and the health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			if runFor > 0 {
				var stop context.CancelFunc
				ctx, stop = context.WithTimeout(ctx, runFor)
				defer stop()
			}

			return withApp(ctx, flags, true, func(ctx context.Context, a *app) error {
				health.Run(ctx, a.cfg.Server.Addr, serviceName, health.Deps{
					Store:   a.store,
					Tracker: performance.GetTracker(),
					MaxGap:  a.cfg.Scheduler.MaxGap,
				})
				err := a.orch.Run(ctx)
				performance.GetTracker().PrintSummary()
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&runFor, "run-for", 0, "Stop after this long (0 runs until signalled)")
	return cmd
}

// --------------------------------------------------------------------------
// one-shot orchestrator commands
// --------------------------------------------------------------------------

func syncCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the game roster once from the game list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, true, func(ctx context.Context, a *app) error {
				created, err := a.orch.SyncRoster(ctx)
				slog.Info("Sync finished", "created", created)
				return err
			})
		},
	}
}

func pollCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "poll <game-id>",
		Short: "Poll one game once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, true, func(ctx context.Context, a *app) error {
				out, err := a.orch.PollGame(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
}

// --------------------------------------------------------------------------
// store commands
// --------------------------------------------------------------------------

func addCmd(flags *globalFlags) *cobra.Command {
	var (
		home, away, url, start string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a game manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			g := &models.Game{HomeTeam: home, AwayTeam: away, ExternalURL: url, Status: models.StatusScheduled}
			if start != "" {
				ts, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				ts = ts.UTC()
				g.StartTime = &ts
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, false, func(ctx context.Context, a *app) error {
				if err := a.store.CreateGame(ctx, g); err != nil {
					return err
				}
				slog.Info("Game added", "game_id", g.ID, "game", g.Name())
				return printJSON(g)
			})
		},
	}
	cmd.Flags().StringVar(&home, "home", "", "Home team")
	cmd.Flags().StringVar(&away, "away", "", "Away team")
	cmd.Flags().StringVar(&url, "url", "", "Game page URL")
	cmd.Flags().StringVar(&start, "start", "", "Start time, RFC3339")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func loadTimeline(ctx context.Context, st storage.Store, id int64) (*models.Game, timeline.Timeline, error) {
	game, err := st.GetGame(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := st.ListSnapshots(ctx, id, storage.SnapshotQuery{})
	if err != nil {
		return nil, nil, err
	}
	tl, err := timeline.Normalize(snaps)
	if err != nil {
		slog.Warn("Dropped snapshots without timestamp", "game_id", id, "error", err)
	}
	return game, tl, nil
}

func insightsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <game-id>",
		Short: "Show the market summary, momentum events and alert history of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, false, func(ctx context.Context, a *app) error {
				game, tl, err := loadTimeline(ctx, a.store, id)
				if err != nil {
					return err
				}
				sent, err := a.store.ListAlerts(ctx, id)
				if err != nil {
					return err
				}
				events := momentum.Detect(tl)
				if events == nil {
					events = []models.Event{}
				}
				return printJSON(map[string]any{
					"game":      game,
					"summary":   momentum.Summarize(tl),
					"events":    events,
					"alerts":    sent,
					"snapshots": len(tl),
				})
			})
		},
	}
}

func healthCmd(flags *globalFlags) *cobra.Command {
	var maxGap time.Duration
	cmd := &cobra.Command{
		Use:   "health <game-id>",
		Short: "Report polling gaps for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, false, func(ctx context.Context, a *app) error {
				_, tl, err := loadTimeline(ctx, a.store, id)
				if err != nil {
					return err
				}
				gap := maxGap
				if gap <= 0 {
					gap = a.cfg.Scheduler.MaxGap
				}
				return printJSON(replay.Analyze(tl, gap))
			})
		},
	}
	cmd.Flags().DurationVar(&maxGap, "max-gap", 0, "Largest tolerated gap (defaults to scheduler.max_gap)")
	return cmd
}

func replayCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <game-id>",
		Short: "Print the merged timeline of a game frame by frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, false, func(ctx context.Context, a *app) error {
				game, tl, err := loadTimeline(ctx, a.store, id)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"game":   game.Name(),
					"frames": replay.Frames(tl),
				})
			})
		},
	}
}

func resetCmd(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset <game-id>",
		Short: "Delete every snapshot of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("reset deletes all snapshots of game %d; pass --yes to confirm", id)
			}
			ctx, cancel := signalContext()
			defer cancel()
			return withApp(ctx, flags, false, func(ctx context.Context, a *app) error {
				if _, err := a.store.GetGame(ctx, id); err != nil {
					return err
				}
				n, err := a.store.DeleteSnapshots(ctx, id)
				if err != nil {
					return err
				}
				slog.Info("Snapshots deleted", "game_id", id, "count", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

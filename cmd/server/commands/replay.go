package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/motion-coach/internal/coaching"
)

type replayOptions struct {
	file     string
	userID   string
	activity string
}

// NewReplayCommand creates the replay command, which feeds recorded pose
// events through the coaching engine offline and prints each result.
func NewReplayCommand() *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded pose events through the coaching engine",
		Long: `Reads newline-delimited JSON events (one per line, the same shape the
WebSocket endpoint accepts) and prints one JSON result per event followed by
a session summary. Analysis is disabled, so feedback comes from the
heuristic templates. Gate timing follows the event timestamps.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if opts.file != "" && opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("open events: %w", err)
				}
				defer f.Close()
				in = f
			}
			return replay(cmd.Context(), in, cmd.OutOrStdout(), opts, slog.Default())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "NDJSON event file (default stdin)")
	cmd.Flags().StringVar(&opts.userID, "user", "replay", "user id for events that carry none")
	cmd.Flags().StringVar(&opts.activity, "activity", "", "override the activity type of every event")

	return cmd
}

type replayLine struct {
	Seq int `json:"seq"`
	coaching.Result
}

type replaySummary struct {
	Events  int              `json:"events"`
	Skipped int              `json:"skipped"`
	Summary coaching.Summary `json:"summary"`
}

// replay drives a private engine with a clock that tracks the events'
// timestamps, so interval and batch gates behave as they did live.
func replay(ctx context.Context, r io.Reader, w io.Writer, opts replayOptions, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.userID == "" {
		opts.userID = "replay"
	}

	var current time.Time
	clock := func() time.Time {
		if current.IsZero() {
			return time.Now()
		}
		return current
	}

	engine := coaching.NewEngine(nil, nil, coaching.NewOrchestrator(nil, coaching.OrchestratorConfig{}, logger), logger,
		coaching.WithClock(clock))

	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)

	var (
		summary replaySummary
		started bool
		first   string
		users   = map[string]bool{}
	)

	for seq := 1; ; seq++ {
		var ev coaching.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode event %d: %w", seq, err)
		}

		if ev.UserID == "" {
			ev.UserID = opts.userID
		}
		if opts.activity != "" {
			ev.ActivityType = opts.activity
		}
		if ev.TimestampMs > 0 {
			current = time.UnixMilli(ev.TimestampMs)
		}

		if !started {
			if _, err := engine.Start(ev.UserID, ev.ActivityType); err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			started = true
			first = ev.UserID
		}
		users[ev.UserID] = true

		res, err := engine.Process(ctx, ev)
		if err != nil {
			logger.Warn("Skipping event", "seq", seq, "error", err)
			summary.Skipped++
			continue
		}
		summary.Events++

		if err := enc.Encode(replayLine{Seq: seq, Result: res}); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	if !started {
		return errors.New("no events to replay")
	}

	for userID := range users {
		s, ok := engine.Stop(userID)
		if ok && userID == first {
			summary.Summary = s
		}
	}

	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/openrange/orbcore/internal/domain"
)

// ReplayFeed reads ticks from a JSONL file, one tick per line, and pushes
// them in file order. With pacing enabled it sleeps the recorded inter-tick
// gaps; otherwise it replays as fast as the engine accepts.
type ReplayFeed struct {
	path   string
	paced  bool
	submit SubmitFunc
	logger *slog.Logger
}

// NewReplayFeed creates a replay feed over the given JSONL file.
func NewReplayFeed(path string, paced bool, submit SubmitFunc, logger *slog.Logger) *ReplayFeed {
	return &ReplayFeed{
		path:   path,
		paced:  paced,
		submit: submit,
		logger: logger.With(slog.String("component", "replay_feed")),
	}
}

// Run replays the file and returns nil at EOF.
func (f *ReplayFeed) Run(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("feed: open replay file: %w", err)
	}
	defer file.Close()

	f.logger.Info("replay started", slog.String("path", f.path), slog.Bool("paced", f.paced))

	var prev time.Time
	var count, dropped int
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tick domain.PriceTick
		if err := json.Unmarshal(line, &tick); err != nil {
			f.logger.Debug("malformed replay line dropped", slog.String("error", err.Error()))
			continue
		}

		if f.paced && !prev.IsZero() {
			if gap := tick.Timestamp.Sub(prev); gap > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prev = tick.Timestamp

		if err := f.submit(tick); err != nil {
			dropped++
			continue
		}
		count++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("feed: read replay file: %w", err)
	}

	f.logger.Info("replay finished",
		slog.Int("ticks", count),
		slog.Int("dropped", dropped),
	)
	return nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"signalengine/internal/model"

	"github.com/robfig/cron/v3"
)

const schedulerPushTimeout = 5 * time.Second

// cronParser accepts the seconds-enabled six-field expressions
// cronExpression derives, matching the cron crate the source scheduler uses.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler emits a FetchCandlesJob per configured symbol at every tick of
// a cron schedule aligned to wall-clock boundaries derived from Interval
// (spec §4.2): minute-granular for intervals >= 60s, second-granular below.
// Ticks missed during downtime are not replayed; there is no ordering
// guarantee across symbols within a tick; a per-symbol enqueue failure
// never blocks the others beyond a bounded timeout.
type Scheduler struct {
	Symbols  []string
	Interval time.Duration
	Fetch    model.Queue
}

// Run blocks, emitting fetch jobs at every aligned cron boundary until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	schedule, err := cronParser.Parse(cronExpression(s.Interval))
	if err != nil {
		slog.Error("scheduler: invalid cron expression derived from interval, not scheduling", "interval", s.Interval, "error", err)
		return
	}

	now := time.Now()
	next := schedule.Next(now)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fired := <-timer.C:
			for _, symbol := range s.Symbols {
				go s.enqueue(ctx, symbol)
			}
			next = schedule.Next(fired)
			timer.Reset(time.Until(next))
		}
	}
}

// cronExpression derives a six-field (seconds-enabled) cron expression from
// interval: minute-granular ("0 */M * * * *") for intervals >= 60s,
// second-granular ("*/N * * * * *") below, mirroring the source scheduler's
// interval-to-cron derivation.
func cronExpression(interval time.Duration) string {
	seconds := int(interval.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds >= 60 {
		minutes := seconds / 60
		return fmt.Sprintf("0 */%d * * * *", minutes)
	}
	return fmt.Sprintf("*/%d * * * * *", seconds)
}

func (s *Scheduler) enqueue(ctx context.Context, symbol string) {
	cctx, cancel := context.WithTimeout(ctx, schedulerPushTimeout)
	defer cancel()

	payload, err := json.Marshal(model.FetchCandlesJob{Symbol: symbol})
	if err != nil {
		slog.Error("scheduler: marshal fetch job failed", "symbol", symbol, "error", err)
		return
	}
	if err := s.Fetch.Push(cctx, payload); err != nil {
		slog.Error("scheduler: enqueue fetch job failed", "symbol", symbol, "error", err)
	}
}

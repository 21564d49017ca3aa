package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/toolflow"
	"github.com/petal-labs/toolflow/config"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

type scheduleEntry struct {
	tool     string
	schedule cron.Schedule
	input    toolflow.Request
	next     time.Time
}

// Scheduler dispatches configured tools on UTC cron schedules.
type Scheduler struct {
	dispatcher *toolflow.Dispatcher
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries []*scheduleEntry

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler from config schedules. Unparseable cron
// expressions fail construction; validation should have caught them earlier.
func NewScheduler(dispatcher *toolflow.Dispatcher, schedules []config.ScheduleConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   time.Second,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for i, sc := range schedules {
		schedule, err := parseCronExpressionUTC(sc.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %d (%s): %w", i, sc.Tool, err)
		}
		s.entries = append(s.entries, &scheduleEntry{
			tool:     sc.Tool,
			schedule: schedule,
			input:    sc.Input,
			next:     schedule.Next(s.now().UTC()),
		})
	}
	return s, nil
}

// Start launches the tick loop. Stop must be called to release it.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop halts the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runDue(context.Background())
		}
	}
}

// runDue dispatches every entry whose next fire time has passed and
// advances it to the following occurrence.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	var due []*scheduleEntry
	for _, e := range s.entries {
		if !e.next.After(now) {
			due = append(due, e)
			e.next = e.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		input := e.input
		if input == nil {
			input = toolflow.Request{}
		}
		if _, err := s.dispatcher.Dispatch(ctx, e.tool, input); err != nil {
			s.logger.WarnContext(ctx, "scheduled dispatch failed",
				"tool", e.tool, "code", toolflow.CodeOf(err), "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "scheduled dispatch ok", "tool", e.tool)
	}
}

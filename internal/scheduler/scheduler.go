// Package scheduler delivers the periodic flush alarm to the tracker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MidnightSpec fires at local midnight. The flush it triggers is already
// keyed to the new day; it only makes post-midnight time start on a fresh
// interval.
const MidnightSpec = "0 0 0 * * *"

const stopTimeout = 5 * time.Second

// AlarmHandler receives named alarms
type AlarmHandler interface {
	HandleAlarm(ctx context.Context, name string)
}

// Scheduler fires a named alarm on a fixed period
type Scheduler struct {
	mu            sync.Mutex
	cron          *rcron.Cron
	handler       AlarmHandler
	alarmName     string
	interval      time.Duration
	flushMidnight bool
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
}

// New creates a stopped scheduler
func New(handler AlarmHandler, alarmName string, interval time.Duration, flushMidnight bool, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		handler:       handler,
		alarmName:     alarmName,
		interval:      interval,
		flushMidnight: flushMidnight,
		logger:        log,
	}
}

// Spec returns the cron descriptor for the flush period
func (s *Scheduler) Spec() string {
	return "@every " + s.interval.String()
}

// Start registers the alarm entries and starts the cron runner. The
// scheduler stops on its own when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	cronLog := newCronLogger(s.logger)
	c := rcron.New(
		rcron.WithSeconds(),
		rcron.WithLocation(time.Local),
		rcron.WithLogger(cronLog),
		rcron.WithChain(rcron.Recover(cronLog), rcron.SkipIfStillRunning(cronLog)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.Spec(), func() { s.Fire(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to register flush alarm: %w", err)
	}
	if s.flushMidnight {
		if _, err := c.AddFunc(MidnightSpec, func() { s.Fire(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("failed to register midnight flush: %w", err)
		}
	}

	s.cron = c
	s.ctx = runCtx
	s.cancel = cancel
	c.Start()

	s.logger.Info("scheduler_started",
		zap.String("alarm", s.alarmName),
		zap.String("spec", s.Spec()),
		zap.Bool("midnight_flush", s.flushMidnight),
	)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	return nil
}

// Fire delivers the alarm immediately
func (s *Scheduler) Fire(ctx context.Context) {
	s.handler.HandleAlarm(ctx, s.alarmName)
}

// Stop halts the runner and waits briefly for a running alarm to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler_stop_timeout")
	}
	s.logger.Info("scheduler_stopped")
}

// cronLogger adapts zap to the cron.Logger interface
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(log *zap.Logger) rcron.Logger {
	return cronLogger{sugar: log.Named("cron").Sugar()}
}

// Info logs routine cron activity at debug level; it is chatty
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

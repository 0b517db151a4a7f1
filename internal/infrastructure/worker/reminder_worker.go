package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/domain/entity"
)

// Reminder nudges the assignee of a stale step
type Reminder interface {
	RemindStale(ctx context.Context, step *entity.ApprovalStep) error
}

// ReminderConfig controls the stale-approval poller
type ReminderConfig struct {
	// After is how long a current step may wait before its assignee is reminded
	After time.Duration

	// Interval is how often the poller looks for stale steps
	Interval time.Duration

	BatchSize int
}

// ReminderWorker periodically reminds approvers about steps that have waited too long
type ReminderWorker struct {
	steps    port.StepRepository
	reminder Reminder
	cfg      ReminderConfig
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(steps port.StepRepository, reminder Reminder, cfg ReminderConfig, logger *zap.Logger) *ReminderWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.After <= 0 {
		cfg.After = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &ReminderWorker{
		steps:    steps,
		reminder: reminder,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

// Start launches the polling loop
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("reminder worker is already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("ReminderWorker started",
		zap.Duration("after", w.cfg.After),
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current pass to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("ReminderWorker stopped")
	return nil
}

func (w *ReminderWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Reminder pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reminds every stale step in one batch and returns how many were reminded.
// A reminded step is touched so it is not picked up again until it goes stale again.
func (w *ReminderWorker) RunOnce(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.cfg.After)
	stale, err := w.steps.ListStale(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale steps: %w", err)
	}

	reminded := 0
	for _, step := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := w.reminder.RemindStale(ctx, step); err != nil {
			w.logger.Warn("Failed to remind approver",
				zap.String("requisition_id", step.RequisitionID),
				zap.String("step_id", step.ID),
				zap.Error(err))
			continue
		}
		if err := w.steps.Touch(ctx, step.ID); err != nil {
			w.logger.Warn("Failed to touch reminded step",
				zap.String("step_id", step.ID),
				zap.Error(err))
			continue
		}
		reminded++
	}

	if len(stale) > 0 {
		w.logger.Info("Reminder pass finished",
			zap.Int("stale", len(stale)),
			zap.Int("reminded", reminded))
	}
	return reminded, nil
}

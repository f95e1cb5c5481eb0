package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const rearmTimeout = time.Minute

// Rearmable re-schedules the outstanding reminder of every known event.
type Rearmable interface {
	EnsureReminders(ctx context.Context) error
}

// Rearmer runs EnsureReminders on a cron schedule so recurring events regain
// a pending reminder after their previous one fired.
type Rearmer struct {
	cron   *cron.Cron
	target Rearmable
	logger *zap.Logger
}

// NewRearmer validates schedule (standard five-field cron syntax or a
// descriptor such as @hourly) and registers the job. Call Start to run it.
func NewRearmer(schedule string, target Rearmable, logger *zap.Logger) (*Rearmer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rearmer := &Rearmer{
		cron:   cron.New(cron.WithLocation(time.Local)),
		target: target,
		logger: logger,
	}
	if _, err := rearmer.cron.AddFunc(schedule, rearmer.run); err != nil {
		return nil, fmt.Errorf("reminders: invalid rearm schedule %q: %w", schedule, err)
	}
	return rearmer, nil
}

// Start runs the schedule in the background.
func (r *Rearmer) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Rearmer) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Rearmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), rearmTimeout)
	defer cancel()
	if err := r.target.EnsureReminders(ctx); err != nil {
		r.logger.Warn("reminder rearm failed", zap.Error(err))
	}
}

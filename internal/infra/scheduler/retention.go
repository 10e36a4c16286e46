package scheduler

import (
	"context"
	"time"

	"seat_monitor_bot/internal/domain/monitoring"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionJob prunes old check-log rows on a cron schedule. The check log
// is append-only and otherwise grows without bound.
type RetentionJob struct {
	cronEngine    *cron.Cron
	monRepo       monitoring.Repository
	logger        *logrus.Logger
	retentionDays int
	cronSpec      string
}

func NewRetentionJob(monRepo monitoring.Repository, logger *logrus.Logger, retentionDays int, cronSpec string) *RetentionJob {
	return &RetentionJob{
		cronEngine:    cron.New(cron.WithLocation(time.Local)),
		monRepo:       monRepo,
		logger:        logger,
		retentionDays: retentionDays,
		cronSpec:      cronSpec,
	}
}

// Start registers and starts the prune job. A non-positive retention
// disables pruning entirely.
func (j *RetentionJob) Start() error {
	if j.retentionDays <= 0 {
		j.logger.Info("Check-log retention disabled")
		return nil
	}

	_, err := j.cronEngine.AddFunc(j.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
		deleted, err := j.monRepo.PruneCheckLogs(ctx, cutoff)
		if err != nil {
			j.logger.Errorf("Check-log retention sweep failed: %v", err)
			return
		}
		j.logger.Infof("Check-log retention sweep removed %d rows older than %s", deleted, cutoff.Format("2006-01-02"))
	})
	if err != nil {
		return err
	}

	j.cronEngine.Start()
	j.logger.Infof("Check-log retention job started (spec %q, %d days)", j.cronSpec, j.retentionDays)
	return nil
}

// Stop halts the cron engine and waits for a running sweep to finish.
func (j *RetentionJob) Stop() {
	ctx := j.cronEngine.Stop()
	<-ctx.Done()
}

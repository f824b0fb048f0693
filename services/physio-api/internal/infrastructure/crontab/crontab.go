package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/infrastructure/metrics"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

const (
	JobDoctorStatistics = "doctor_statistics"
	JobStaleSessions    = "stale_device_sessions"

	CronJobTimeout = 2 * time.Minute
)

// StatisticsRefresher recomputes the per-doctor counters.
type StatisticsRefresher interface {
	RefreshDoctorStatistics(ctx context.Context) (int, error)
}

// StaleSweeper stops running device sessions that stopped reporting.
type StaleSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Instrumenter wraps each job run with tracing and timing.
type Instrumenter interface {
	InstrumentJob(ctx context.Context, jobType string, fn func(context.Context) error) error
}

// Schedules holds the cron expressions; an empty one disables the job.
type Schedules struct {
	DoctorStatistics string
	StaleSessions    string
}

type Crontab struct {
	ctab       *crontab.Crontab
	statistics StatisticsRefresher
	sweeper    StaleSweeper
	schedules  Schedules
	instrument Instrumenter
	log        zerolog.Logger
}

// NewCrontab builds the scheduler. instrument may be nil.
func NewCrontab(statistics StatisticsRefresher, sweeper StaleSweeper, schedules Schedules, instrument Instrumenter, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:       crontab.New(),
		statistics: statistics,
		sweeper:    sweeper,
		schedules:  schedules,
		instrument: instrument,
		log:        log.With().Str("component", "crontab").Logger(),
	}
}

// Run schedules the jobs and blocks until ctx ends.
func (c *Crontab) Run(ctx context.Context) error {
	// execute once on server start
	c.refreshStatistics(ctx)

	if c.schedules.DoctorStatistics != "" {
		if err := c.ctab.AddJob(c.schedules.DoctorStatistics, c.job(c.refreshStatistics)); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add doctor statistics job")
		}
		c.log.Info().Str("schedule", c.schedules.DoctorStatistics).Msg("doctor statistics refresh scheduled")
	}

	if c.schedules.StaleSessions != "" {
		if err := c.ctab.AddJob(c.schedules.StaleSessions, c.job(c.sweepStale)); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add stale session job")
		}
		c.log.Info().Str("schedule", c.schedules.StaleSessions).Msg("stale device session sweep scheduled")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) job(fn func(ctx context.Context)) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		fn(jobCtx)
	}
}

func (c *Crontab) run(ctx context.Context, job string, fn func(context.Context) error) error {
	var err error
	if c.instrument != nil {
		err = c.instrument.InstrumentJob(ctx, job, fn)
	} else {
		err = fn(ctx)
	}
	metrics.RecordCronRun(job, err)
	return err
}

func (c *Crontab) refreshStatistics(ctx context.Context) {
	var doctors int
	err := c.run(ctx, JobDoctorStatistics, func(ctx context.Context) error {
		var err error
		doctors, err = c.statistics.RefreshDoctorStatistics(ctx)
		return err
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to refresh doctor statistics")
		return
	}
	c.log.Debug().Int("doctors", doctors).Msg("refreshed doctor statistics")
}

func (c *Crontab) sweepStale(ctx context.Context) {
	var stopped int
	err := c.run(ctx, JobStaleSessions, func(ctx context.Context) error {
		var err error
		stopped, err = c.sweeper.SweepStale(ctx)
		return err
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to sweep stale device sessions")
		return
	}
	if stopped > 0 {
		c.log.Warn().Int("sessions", stopped).Msg("stopped stale device sessions")
	}
}

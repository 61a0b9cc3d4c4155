package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const schedulerStopTimeout = time.Minute

// Scheduler runs the daily search and the weekly notification cleanup as a supervised service.
type Scheduler struct {
	Server          Server
	SearchSchedule  string
	CleanupSchedule string
	Location        *time.Location
}

type cronLogger struct {
	l logger
}

func (cl cronLogger) Info(msg string, keysAndValues ...any) {
	cl.l.Tracef("cron: %s %v", msg, keysAndValues)
}

func (cl cronLogger) Error(err error, msg string, keysAndValues ...any) {
	cl.l.Errorf("cron: %s %v, err: %v", msg, keysAndValues, err)
}

func (sc Scheduler) newCron(ctx context.Context) (*cron.Cron, error) {
	loc := sc.Location
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{l: sc.Server.Logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(sc.SearchSchedule, func() {
		if err := sc.Server.SearchAll(ctx); err != nil {
			sc.Server.Logger.Errorf("Scheduler: Search run aborted, err: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid search schedule %q: %w", sc.SearchSchedule, err)
	}
	if _, err := c.AddFunc(sc.CleanupSchedule, func() {
		if _, err := sc.Server.CleanupNotifications(ctx); err != nil {
			sc.Server.Logger.Errorf("Scheduler: Notification cleanup failed, err: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", sc.CleanupSchedule, err)
	}
	return c, nil
}

func (sc Scheduler) Serve(ctx context.Context) error {
	c, err := sc.newCron(ctx)
	if err != nil {
		return err
	}
	c.Start()
	sc.Server.Logger.Infof("Scheduler: Started, search: %q, cleanup: %q, location: %s",
		sc.SearchSchedule, sc.CleanupSchedule, c.Location())

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(schedulerStopTimeout):
		sc.Server.Logger.Warnf("Scheduler: Running jobs did not stop within %s", schedulerStopTimeout)
	}
	return ctx.Err()
}

func (sc Scheduler) String() string {
	return "scheduler"
}

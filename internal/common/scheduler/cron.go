package scheduler

import (
	"context"
	"fmt"

	"crisis-alerts/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// Cron runs periodic jobs. A panicking job is logged and does not stop the schedule.
type Cron struct {
	c *cron.Cron
}

func NewCron(log logger.Logger) *Cron {
	cl := cronLogger{log: log}
	return &Cron{c: cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)}
}

// AddWithCtx schedules fn on a standard cron expression or a descriptor such as "@every 15m".
func (cr *Cron) AddWithCtx(ctx context.Context, expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	id, err := cr.c.AddFunc(expr, func() { fn(ctx) })
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return id, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for running jobs to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = fmt.Sprint(err)
	l.log.Error("cron: "+msg, fields)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

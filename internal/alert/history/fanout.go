package history

import (
	"context"
	"errors"

	"crisis-alerts/internal/common/logger"
)

// Fanout writes each record to every sink. One failing sink does not stop
// the others.
type Fanout struct {
	sinks  []Sink
	logger logger.Logger
}

func NewFanout(log logger.Logger, sinks ...Sink) *Fanout {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Fanout{sinks: sinks, logger: log}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Save(ctx, rec); err != nil {
			f.logger.Warn("history sink failed", map[string]interface{}{
				"sink":       sink.Name(),
				"dispatchId": rec.ID,
				"error":      err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package logger

import (
	"time"
)

// Stage logs the start and end of one step of a reconciliation run with
// the number of items it handled.
type Stage struct {
	logger    Logger
	name      string
	startTime time.Time
}

// StartStage logs the beginning of a named step and returns its tracker.
func StartStage(l Logger, name string, fields Fields) *Stage {
	l = OrGlobal(l)
	if fields == nil {
		fields = Fields{}
	}
	fields["stage"] = name
	l = l.WithFields(fields)
	l.Debug("stage started")
	return &Stage{logger: l, name: name, startTime: time.Now()}
}

// Done logs completion with the processed item count.
func (s *Stage) Done(items int) time.Duration {
	elapsed := time.Since(s.startTime)
	s.logger.WithFields(Fields{
		"items":    items,
		"duration": elapsed.String(),
	}).Info("stage completed")
	return elapsed
}

// Fail logs the step as failed.
func (s *Stage) Fail(err error) {
	s.logger.WithError(err).WithField("duration", time.Since(s.startTime).String()).Error("stage failed")
}

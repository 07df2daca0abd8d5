package matcher

import (
	"sync"
	"time"

	"ride-reconciliation-service/pkg/logger"
)

// EventKind names a matching event
type EventKind string

const (
	EventSupplierMatched  EventKind = "supplier_matched"
	EventDateRangeTrimmed EventKind = "date_range_trimmed"
	EventPairRecovered    EventKind = "pair_recovered"
	EventStrategyChosen   EventKind = "strategy_chosen"
)

// Event is a structured observation emitted during matching
type Event struct {
	Kind     EventKind
	Supplier string
	Message  string
	Fields   map[string]interface{}
	Err      error
	Time     time.Time
}

// EventSink receives matching events. Implementations must be safe for
// concurrent use.
type EventSink interface {
	Emit(Event)
}

// LoggerSink forwards events to a logger at debug level
type LoggerSink struct {
	logger logger.Logger
}

// NewLoggerSink creates a sink backed by l
func NewLoggerSink(l logger.Logger) *LoggerSink {
	return &LoggerSink{logger: logger.OrGlobal(l).WithComponent("matcher.events")}
}

// Emit implements EventSink
func (s *LoggerSink) Emit(e Event) {
	fields := logger.Fields{"event": string(e.Kind)}
	if e.Supplier != "" {
		fields["supplier"] = e.Supplier
	}
	for k, v := range e.Fields {
		fields[k] = v
	}
	entry := s.logger.WithFields(fields)
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}
	entry.Debug(e.Message)
}

// NopSink discards events
type NopSink struct{}

// Emit implements EventSink
func (NopSink) Emit(Event) {}

// MemorySink keeps events in memory
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventSink
func (s *MemorySink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of the recorded events
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Count returns how many events of kind were recorded
func (s *MemorySink) Count(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

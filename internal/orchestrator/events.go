package orchestrator

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventStageStarted indicates a stage has begun.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a stage finished successfully.
	EventStageCompleted EventType = "stage_completed"
	// EventStageFailed indicates a stage failed and the run is aborting.
	EventStageFailed EventType = "stage_failed"
	// EventRunDone indicates the run is over, successfully or not.
	EventRunDone EventType = "run_done"
)

// OrchestratorEvent is emitted as a run progresses. The TUI renders them.
type OrchestratorEvent struct {
	Type      EventType
	Stage     Stage
	Message   string
	Error     error
	Timestamp time.Time
	Duration  time.Duration
}

// EventEmitter delivers events to a single subscriber without ever
// blocking the run.
type EventEmitter struct {
	events       chan OrchestratorEvent
	droppedCount atomic.Uint64
	log          *slog.Logger
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, log *slog.Logger) *EventEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &EventEmitter{
		events: make(chan OrchestratorEvent, bufferSize),
		log:    log,
	}
}

// Emit sends an event, dropping it when the buffer is full.
func (e *EventEmitter) Emit(event OrchestratorEvent) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- event:
	default:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.log.Warn("event channel full, dropped event", "total_dropped", count, "type", event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the subscriber side of the emitter.
func (e *EventEmitter) Events() <-chan OrchestratorEvent {
	return e.events
}

// Close closes the events channel. No Emit may follow.
func (e *EventEmitter) Close() {
	close(e.events)
}

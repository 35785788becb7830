package events

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"peerpair/pkg/kafka"
	"peerpair/pkg/logger"
	"peerpair/pkg/middleware"
	"peerpair/pkg/model"

	"github.com/google/uuid"
)

const (
	Source        = "bookings"
	SchemaVersion = "1"
)

// Emitter publishes booking events. Delivery is best effort: Emit never
// fails the caller and never undoes the transition that produced the event.
type Emitter interface {
	Emit(ctx context.Context, event model.BookingEvent)
}

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

const (
	DefaultPublishTimeout = 5 * time.Second
	DefaultQueueSize      = 1024
	DefaultWorkers        = 2
)

type EmitterConfig struct {
	PublishTimeout time.Duration
	QueueSize      int
	Workers        int
}

// KafkaEmitter hands events to bounded queues, one per worker, picked by
// booking id so a booking's events keep their order. Emit returns without
// waiting on the broker; when the queue is full the event is dropped and
// logged. QueueSize is per worker.
type KafkaEmitter struct {
	publisher Publisher
	timeout   time.Duration
	queues    []chan queuedEvent
	log       *logger.Logger
	closed    bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

type queuedEvent struct {
	msg   kafka.Message
	event model.BookingEvent
}

func NewKafkaEmitter(publisher Publisher, cfg EmitterConfig, log *logger.Logger) *KafkaEmitter {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	e := &KafkaEmitter{
		publisher: publisher,
		timeout:   cfg.PublishTimeout,
		queues:    make([]chan queuedEvent, cfg.Workers),
		log:       log,
	}
	for i := range e.queues {
		e.queues[i] = make(chan queuedEvent, cfg.QueueSize)
		e.wg.Add(1)
		go e.run(e.queues[i])
	}
	return e
}

func (e *KafkaEmitter) Emit(ctx context.Context, event model.BookingEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID(event.EventID).
		WithEventType(string(event.Kind)).
		WithSource(Source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		e.log.Error("Failed to build booking event",
			"event_kind", event.Kind,
			"booking_id", event.BookingID,
			"error", err,
		)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.log.Warn("Emitter closed, dropping booking event",
			"event_kind", event.Kind,
			"event_id", event.EventID,
			"booking_id", event.BookingID,
		)
		return
	}

	queue := e.queueFor(event.BookingID)
	select {
	case queue <- queuedEvent{msg: msg, event: event}:
	default:
		e.log.Error("Event queue full, dropping booking event",
			"event_kind", event.Kind,
			"event_id", event.EventID,
			"booking_id", event.BookingID,
			"queue_size", cap(queue),
		)
	}
}

func (e *KafkaEmitter) queueFor(bookingID string) chan queuedEvent {
	h := fnv.New32a()
	_, _ = h.Write([]byte(bookingID))
	return e.queues[h.Sum32()%uint32(len(e.queues))]
}

func (e *KafkaEmitter) run(queue chan queuedEvent) {
	defer e.wg.Done()
	for q := range queue {
		e.publish(q)
	}
}

func (e *KafkaEmitter) publish(q queuedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	// The producer already routes failed publishes to the dead letter topic.
	if err := e.publisher.Publish(ctx, q.msg); err != nil {
		e.log.Error("Failed to publish booking event",
			"event_kind", q.event.Kind,
			"event_id", q.event.EventID,
			"booking_id", q.event.BookingID,
			"error", err,
		)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (e *KafkaEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, queue := range e.queues {
		close(queue)
	}
	e.mu.Unlock()

	e.wg.Wait()
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.BookingEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, event model.BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []model.BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.BookingEvent(nil), r.events...)
}

// Count returns how many events of kind were emitted for bookingID.
func (r *Recorder) Count(bookingID string, kind model.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.BookingID == bookingID && e.Kind == kind {
			n++
		}
	}
	return n
}

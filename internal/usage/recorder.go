package usage

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Sink is where usage events land, normally the credential repository.
type Sink interface {
	RecordUsage(ctx context.Context, id uuid.UUID, success bool, at time.Time) error
}

// Event is one verification attempt against a known credential.
type Event struct {
	CredentialID uuid.UUID
	Success      bool
	At           time.Time
}

// Recorder applies usage events asynchronously. Record never blocks:
// when the buffer is full the event is dropped, because counters are
// best-effort and must never delay or fail the authorization decision.
type Recorder struct {
	events chan Event
	sink   Sink
	done   chan struct{}
}

func NewRecorder(sink Sink, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	r := &Recorder{
		events: make(chan Event, bufferSize),
		sink:   sink,
		done:   make(chan struct{}),
	}

	go r.run()

	return r
}

// Record queues a usage event. Drops silently when the buffer is full.
func (r *Recorder) Record(credentialID uuid.UUID, success bool, at time.Time) {
	select {
	case r.events <- Event{CredentialID: credentialID, Success: success, At: at}:
	default:
		// Buffer full - skip rather than block the request path.
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.RecordUsage(ctx, event.CredentialID, event.Success, event.At); err != nil {
			log.Printf("usage: failed to record for %s: %v", event.CredentialID, err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (r *Recorder) Close() {
	close(r.events)
	<-r.done
}

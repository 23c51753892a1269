package channel

import (
	"sync"

	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

// Handler consumes one typed push event.
type Handler func(evt domain.Event)

type handlerEntry struct {
	id int64
	fn Handler
}

// Dispatcher demultiplexes raw push messages to handlers registered per
// event kind. Handlers run synchronously on the channel's read goroutine,
// in registration order. Malformed messages are dropped and logged.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[domain.EventKind][]handlerEntry
	nextID   int64

	log logger.Logger
}

func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.EventKind][]handlerEntry),
		log:      log,
	}
}

// Register adds a handler for the given event kind and returns a func
// that removes it again.
func (d *Dispatcher) Register(kind domain.EventKind, fn Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[kind] = append(d.handlers[kind], handlerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		entries := d.handlers[kind]
		for i, e := range entries {
			if e.id == id {
				d.handlers[kind] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

// Dispatch parses one raw push message and fans it out. Install it as the
// manager's OnMessage sink.
func (d *Dispatcher) Dispatch(raw []byte) {
	evt, err := domain.ParseEvent(raw)
	if err != nil {
		d.log.Warn("dropping malformed push message", "error", err)
		return
	}

	d.mu.Lock()
	entries := make([]handlerEntry, len(d.handlers[evt.Kind]))
	copy(entries, d.handlers[evt.Kind])
	d.mu.Unlock()

	for _, e := range entries {
		e.fn(evt)
	}
}

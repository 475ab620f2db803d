// ABOUTME: Event dispatcher for session playback events
// ABOUTME: Synchronous fan-out keyed by (event kind, name) with handle-based removal
package session

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies a session event type
type EventKind string

const (
	EventPlay   EventKind = "play"
	EventPause  EventKind = "pause"
	EventEnd    EventKind = "end"
	EventError  EventKind = "error"
	EventLoaded EventKind = "loaded"
)

// Event carries an emitted session event
type Event struct {
	Kind        EventKind
	Name        string
	CurrentTime float64
	Err         error
}

// Listener receives session events
type Listener func(Event)

// dispatcher fans events out to the listeners registered for the exact
// (kind, name) pair. Listeners are keyed by registration handle; Go
// functions are not comparable, so the handle is the listener's stable
// identity for removal.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[EventKind]map[string]map[string]Listener
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		listeners: make(map[EventKind]map[string]map[string]Listener),
	}
}

// add registers a listener and returns its handle.
func (d *dispatcher) add(kind EventKind, name string, fn Listener) string {
	id := uuid.New().String()

	d.mu.Lock()
	defer d.mu.Unlock()

	byName, ok := d.listeners[kind]
	if !ok {
		byName = make(map[string]map[string]Listener)
		d.listeners[kind] = byName
	}
	bucket, ok := byName[name]
	if !ok {
		bucket = make(map[string]Listener)
		byName[name] = bucket
	}
	bucket[id] = fn

	return id
}

// remove unregisters a listener by handle. Unknown handles are a no-op.
func (d *dispatcher) remove(kind EventKind, name, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if bucket, ok := d.listeners[kind][name]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(d.listeners[kind], name)
		}
	}
}

// purge drops every listener registered for the name, across all kinds.
func (d *dispatcher) purge(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, byName := range d.listeners {
		delete(byName, name)
	}
}

// clear drops the whole registry.
func (d *dispatcher) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[EventKind]map[string]map[string]Listener)
}

// emit synchronously invokes the listeners registered for the exact
// (kind, name) pair at the moment of emission. The bucket is snapshotted
// first so listeners may register or remove during the callback.
func (d *dispatcher) emit(ev Event) {
	d.mu.Lock()
	bucket := d.listeners[ev.Kind][ev.Name]
	snapshot := make([]Listener, 0, len(bucket))
	for _, fn := range bucket {
		snapshot = append(snapshot, fn)
	}
	d.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

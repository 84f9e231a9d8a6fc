package authstate

import (
	"sync"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// EventType identifies why the auth service reported a session change.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is one entry of the session-change stream. Session is nil when no
// session is active (sign-out, expiry, or no session ever existed).
type Event struct {
	Type    EventType
	Session *models.Session
}

// Emitter is a small fan-out for session-change events. The Store
// subscribes to it once; auth actions and session restoration emit into it.
// Emission is serialized so subscribers observe events in order.
type Emitter struct {
	mu   sync.Mutex
	subs map[int]func(Event)
	next int
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns an unsubscribe handle.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Emit delivers ev to every subscriber. Subscribers run under the emitter
// lock, which is what serializes event processing.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, fn := range e.subs {
		fn(ev)
	}
}

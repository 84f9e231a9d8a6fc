package authstate

import (
	"log/slog"
	"sync"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// Recorder collects the notifications and navigation target produced by
// auth actions so a request handler can hand them to the client. It stands
// in for the toast system and client-side router of the original UI.
type Recorder struct {
	mu       sync.Mutex
	notices  []models.Notice
	navigate string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, models.Notice{Level: level, Message: message})
}

func (r *Recorder) NavigateTo(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigate = path
}

// Drain returns and clears everything recorded since the last drain.
func (r *Recorder) Drain() (navigate string, notices []models.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	navigate, notices = r.navigate, r.notices
	r.navigate, r.notices = "", nil
	return navigate, notices
}

// ClientSession bundles the per-session store with its own event stream
// and recorder.
type ClientSession struct {
	Store    *Store
	Events   *Emitter
	Recorder *Recorder
}

// Deps are the shared collaborators every store is built from.
type Deps struct {
	Fetcher ProfileFetcher
	Writer  ProfileWriter
	Auth    AuthAPI
	Logger  *slog.Logger
}

// Manager owns the stores, one per client session id. Stores are created
// on sign-in or restored lazily from a verified token after a restart.
type Manager struct {
	mu     sync.Mutex
	deps   Deps
	active map[string]*ClientSession
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:   deps,
		active: make(map[string]*ClientSession),
	}
}

// Get returns the session for sid if one exists.
func (m *Manager) Get(sid string) (*ClientSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.active[sid]
	return cs, ok
}

// Create builds a fresh store for sid, replacing (and closing) any
// previous one under the same id.
func (m *Manager) Create(sid string) *ClientSession {
	events := NewEmitter()
	rec := NewRecorder()
	store := NewStore(events, m.deps.Fetcher, m.deps.Writer, m.deps.Auth, rec, rec, m.deps.Logger)
	cs := &ClientSession{Store: store, Events: events, Recorder: rec}

	m.mu.Lock()
	old := m.active[sid]
	m.active[sid] = cs
	m.mu.Unlock()

	if old != nil {
		old.Store.Close()
	}
	return cs
}

// Delete closes and removes the session for sid.
func (m *Manager) Delete(sid string) {
	m.mu.Lock()
	cs := m.active[sid]
	delete(m.active, sid)
	m.mu.Unlock()
	if cs != nil {
		cs.Store.Close()
	}
}

// Ephemeral builds a session that is not registered, for actions that run
// without an authenticated caller (sign-up, password reset).
func (m *Manager) Ephemeral() *ClientSession {
	events := NewEmitter()
	rec := NewRecorder()
	store := NewStore(events, m.deps.Fetcher, m.deps.Writer, m.deps.Auth, rec, rec, m.deps.Logger)
	return &ClientSession{Store: store, Events: events, Recorder: rec}
}

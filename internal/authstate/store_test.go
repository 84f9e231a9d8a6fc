package authstate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

type fakeFetcher struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	plans    map[string][]models.UserPlan
	fetchErr error
	// block, when set, delays FetchProfile until the channel is closed.
	block chan struct{}
}

func (f *fakeFetcher) FetchProfile(_ context.Context, userID string) (*models.Profile, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.profiles[userID], nil
}

func (f *fakeFetcher) FetchPlans(_ context.Context, userID string) ([]models.UserPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plans[userID], nil
}

type fakeWriter struct {
	insertErr error
	inserted  []string
}

func (w *fakeWriter) InsertProfile(_ context.Context, userID, _ string) error {
	if w.insertErr != nil {
		return w.insertErr
	}
	w.inserted = append(w.inserted, userID)
	return nil
}

type fakeAuth struct {
	session   *models.Session
	signInErr error

	user      *models.User
	signUpErr error

	signOutErr   error
	resetErr     error
	authorizeURL string
	authorizeErr error
}

func (a *fakeAuth) SignInWithPassword(_ context.Context, _, _ string) (*models.Session, error) {
	return a.session, a.signInErr
}

func (a *fakeAuth) SignUp(_ context.Context, _, _, _ string) (*models.User, error) {
	return a.user, a.signUpErr
}

func (a *fakeAuth) SignOut(_ context.Context, _ string) error { return a.signOutErr }

func (a *fakeAuth) ResetPassword(_ context.Context, _ string) error { return a.resetErr }

func (a *fakeAuth) AuthorizeGoogle(_ context.Context) (string, error) {
	return a.authorizeURL, a.authorizeErr
}

func newTestStore(fetcher *fakeFetcher, writer *fakeWriter, auth *fakeAuth) (*Store, *Emitter, *Recorder) {
	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	if writer == nil {
		writer = &fakeWriter{}
	}
	if auth == nil {
		auth = &fakeAuth{}
	}
	events := NewEmitter()
	rec := NewRecorder()
	store := NewStore(events, fetcher, writer, auth, rec, rec, nil)
	return store, events, rec
}

func sessionFor(id, email string) *models.Session {
	return &models.Session{
		AccessToken: "token-" + id,
		User:        &models.User{ID: id, Email: email},
	}
}

func TestHandleEventNoUser(t *testing.T) {
	store, events, _ := newTestStore(nil, nil, nil)
	defer store.Close()

	assert.True(t, store.Snapshot().Loading, "store should start bootstrapping")

	events.Emit(Event{Type: EventInitialSession, Session: nil})
	store.Settle()

	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Equal(t, ProfileNone, snap.Profile.State)
	assert.Empty(t, snap.Plans)
	assert.False(t, snap.Loading, "bootstrap completes even without a session")
}

func TestHandleEventLoadsProfile(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]*models.Profile{
			"u1": {ID: "u1", Role: models.RoleAdmin, AllowedAssistants: []string{"digirioh"}},
		},
		plans: map[string][]models.UserPlan{
			"u1": {{UserID: "u1", PlanName: "free"}},
		},
	}
	store, events, _ := newTestStore(fetcher, nil, nil)
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()

	snap := store.Snapshot()
	assert.Equal(t, "u1", snap.User.ID)
	assert.Equal(t, ProfileLoaded, snap.Profile.State)
	assert.Equal(t, models.RoleAdmin, snap.Profile.Loaded().Role)
	assert.Len(t, snap.Plans, 1)
	assert.False(t, snap.Loading)
}

func TestProfileFetchFailureResolvesAbsent(t *testing.T) {
	fetcher := &fakeFetcher{fetchErr: errors.New("connection refused")}
	store, events, _ := newTestStore(fetcher, nil, nil)
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()

	snap := store.Snapshot()
	assert.Equal(t, ProfileFailed, snap.Profile.State)
	assert.Nil(t, snap.Profile.Loaded())
	assert.False(t, snap.Loading, "bootstrap completes even when the fetch fails")
}

func TestProfileNotFoundResolvesAbsent(t *testing.T) {
	store, events, _ := newTestStore(&fakeFetcher{}, nil, nil)
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()

	snap := store.Snapshot()
	assert.Equal(t, ProfileNotFound, snap.Profile.State)
	assert.Nil(t, snap.Profile.Loaded())
	assert.False(t, snap.Loading)
}

func TestLoadingTransitionsExactlyOnce(t *testing.T) {
	store, events, _ := newTestStore(&fakeFetcher{}, nil, nil)
	defer store.Close()

	var mu sync.Mutex
	var sawNotLoading bool
	var flippedBack bool
	unsub := store.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if !snap.Loading {
			sawNotLoading = true
		} else if sawNotLoading {
			flippedBack = true
		}
	})
	defer unsub()

	events.Emit(Event{Type: EventInitialSession, Session: nil})
	store.Settle()
	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()
	events.Emit(Event{Type: EventTokenRefreshed, Session: sessionFor("u1", "a@b.c")})
	store.Settle()
	events.Emit(Event{Type: EventSignedOut, Session: nil})
	store.Settle()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawNotLoading, "loading should reach false")
	assert.False(t, flippedBack, "loading must never return to true")
	assert.False(t, store.Snapshot().Loading)
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	block := make(chan struct{})
	fetcher := &fakeFetcher{
		block: block,
		profiles: map[string]*models.Profile{
			"u1": {ID: "u1", Role: models.RoleBasicUser},
		},
	}
	store, events, _ := newTestStore(fetcher, nil, nil)
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	// Sign-out arrives while the profile fetch is still in flight; its
	// outcome must win.
	events.Emit(Event{Type: EventSignedOut, Session: nil})
	close(block)
	store.Settle()

	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Equal(t, ProfileNone, snap.Profile.State)
	assert.False(t, snap.Loading)
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name         string
		auth         *fakeAuth
		wantNavigate string
		wantLevel    string
		wantUser     string
	}{
		{
			name:         "success navigates to dashboard",
			auth:         &fakeAuth{session: sessionFor("u1", "a@b.c")},
			wantNavigate: "/dashboard",
			wantUser:     "u1",
		},
		{
			name:      "failure notifies and stays",
			auth:      &fakeAuth{signInErr: errors.New("invalid login credentials")},
			wantLevel: NoticeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, rec := newTestStore(&fakeFetcher{}, nil, tt.auth)
			defer store.Close()

			store.SignIn(context.Background(), "a@b.c", "pw")
			store.Settle()

			navigate, notices := rec.Drain()
			assert.Equal(t, tt.wantNavigate, navigate)
			if tt.wantLevel != "" {
				assert.NotEmpty(t, notices)
				assert.Equal(t, tt.wantLevel, notices[0].Level)
			}

			snap := store.Snapshot()
			assert.False(t, snap.AuthLoading, "authLoading resets after the action")
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, snap.User.ID)
			} else {
				assert.Nil(t, snap.User)
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name         string
		auth         *fakeAuth
		writer       *fakeWriter
		wantNavigate string
		wantLevel    string
		wantInserted int
	}{
		{
			name:         "success inserts profile and navigates to login",
			auth:         &fakeAuth{user: &models.User{ID: "u1", Email: "a@b.c"}},
			writer:       &fakeWriter{},
			wantNavigate: "/login",
			wantLevel:    NoticeSuccess,
			wantInserted: 1,
		},
		{
			name:         "profile insert failure still lands on login with a warning",
			auth:         &fakeAuth{user: &models.User{ID: "u1", Email: "a@b.c"}},
			writer:       &fakeWriter{insertErr: errors.New("duplicate key")},
			wantNavigate: "/login",
			wantLevel:    NoticeWarning,
		},
		{
			name:      "account creation failure aborts before the insert",
			auth:      &fakeAuth{signUpErr: errors.New("email already registered")},
			writer:    &fakeWriter{},
			wantLevel: NoticeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, rec := newTestStore(nil, tt.writer, tt.auth)
			defer store.Close()

			store.SignUp(context.Background(), "a@b.c", "pw", "Ana")

			navigate, notices := rec.Drain()
			assert.Equal(t, tt.wantNavigate, navigate)
			assert.NotEmpty(t, notices)
			assert.Equal(t, tt.wantLevel, notices[0].Level)
			assert.Len(t, tt.writer.inserted, tt.wantInserted)
		})
	}
}

func TestSignOutClearsState(t *testing.T) {
	store, events, rec := newTestStore(&fakeFetcher{
		profiles: map[string]*models.Profile{"u1": {ID: "u1"}},
	}, nil, &fakeAuth{})
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()
	assert.NotNil(t, store.Snapshot().User)

	store.SignOut(context.Background())
	store.Settle()

	navigate, notices := rec.Drain()
	assert.Equal(t, "/", navigate)
	assert.NotEmpty(t, notices)

	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Equal(t, ProfileNone, snap.Profile.State)
	assert.Empty(t, snap.Plans)
}

func TestSignOutFailureKeepsSession(t *testing.T) {
	store, events, rec := newTestStore(&fakeFetcher{
		profiles: map[string]*models.Profile{"u1": {ID: "u1"}},
	}, nil, &fakeAuth{signOutErr: errors.New("network down")})
	defer store.Close()

	events.Emit(Event{Type: EventSignedIn, Session: sessionFor("u1", "a@b.c")})
	store.Settle()

	store.SignOut(context.Background())

	navigate, notices := rec.Drain()
	assert.Empty(t, navigate)
	assert.Equal(t, NoticeError, notices[0].Level)
	assert.NotNil(t, store.Snapshot().User, "session survives a failed sign-out")
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name      string
		auth      *fakeAuth
		wantLevel string
	}{
		{"success notifies", &fakeAuth{}, NoticeSuccess},
		{"failure notifies", &fakeAuth{resetErr: errors.New("rate limited")}, NoticeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, rec := newTestStore(nil, nil, tt.auth)
			defer store.Close()

			store.ResetPassword(context.Background(), "a@b.c")

			_, notices := rec.Drain()
			assert.NotEmpty(t, notices)
			assert.Equal(t, tt.wantLevel, notices[0].Level)
		})
	}
}

func TestSignInWithGoogle(t *testing.T) {
	store, _, rec := newTestStore(nil, nil, &fakeAuth{authorizeURL: "https://accounts.google.com/o/oauth2/auth?x=1"})
	defer store.Close()

	store.SignInWithGoogle(context.Background())

	navigate, _ := rec.Drain()
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", navigate)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(Deps{Fetcher: &fakeFetcher{}, Writer: &fakeWriter{}, Auth: &fakeAuth{}})

	cs := m.Create("sid-1")
	assert.NotNil(t, cs.Store)

	got, ok := m.Get("sid-1")
	assert.True(t, ok)
	assert.Same(t, cs, got)

	m.Delete("sid-1")
	_, ok = m.Get("sid-1")
	assert.False(t, ok)
}

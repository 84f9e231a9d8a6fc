// Package authstate holds the session/profile state machine that decides,
// for every request, whether a visitor is unauthenticated, authenticating,
// authenticated with a pending profile, a regular user, or an admin.
//
// One Store exists per client session. It subscribes once to its session's
// event stream; on every event it adopts the new session synchronously and
// resolves the matching profile asynchronously. A generation counter makes
// the most recent event win: a stale fetch result is discarded when a newer
// event has superseded it.
package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// Notification levels surfaced to the client.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeWarning = "warning"
)

// ProfileState tags the profile slot of a snapshot so "not fetched yet",
// "fetch failed", "row does not exist" and "loaded" stay distinguishable.
type ProfileState int

const (
	// ProfileNone means no user is signed in; there is nothing to fetch.
	ProfileNone ProfileState = iota
	// ProfilePending means a fetch for the current user is in flight.
	ProfilePending
	// ProfileFailed means the fetch errored; treated as absent, never fatal.
	ProfileFailed
	// ProfileNotFound means the fetch succeeded but no row exists yet.
	ProfileNotFound
	// ProfileLoaded means Profile holds the user's row.
	ProfileLoaded
)

func (s ProfileState) String() string {
	switch s {
	case ProfilePending:
		return "pending"
	case ProfileFailed:
		return "failed"
	case ProfileNotFound:
		return "not_found"
	case ProfileLoaded:
		return "loaded"
	default:
		return "none"
	}
}

// ProfileResult is the tagged profile slot.
type ProfileResult struct {
	State   ProfileState
	Profile *models.Profile
}

// Loaded returns the profile row, or nil unless the fetch completed with a
// row. Consumers that only care about "absent vs present" use this.
func (r ProfileResult) Loaded() *models.Profile {
	if r.State != ProfileLoaded {
		return nil
	}
	return r.Profile
}

// Snapshot is one consistent view of the auth state. Loading covers the
// initial bootstrap only and flips true→false exactly once; AuthLoading
// covers an explicit action (sign-in/up/out/reset) and is independent.
type Snapshot struct {
	Session     *models.Session
	User        *models.User
	Profile     ProfileResult
	Plans       []models.UserPlan
	Loading     bool
	AuthLoading bool
}

// ProfileFetcher reads the profile row and plan list for a user. A missing
// row is (nil, nil), not an error; errors mean the read itself failed.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
	FetchPlans(ctx context.Context, userID string) ([]models.UserPlan, error)
}

// ProfileWriter inserts the profile row created during sign-up.
type ProfileWriter interface {
	InsertProfile(ctx context.Context, userID, fullName string) error
}

// AuthAPI is the narrow surface of the hosted auth service the store needs.
type AuthAPI interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPassword(ctx context.Context, email string) error
	AuthorizeGoogle(ctx context.Context) (string, error)
}

// Notifier receives transient user-facing notifications.
type Notifier interface {
	Notify(level, message string)
}

// Navigator receives the route the client should move to after an action.
type Navigator interface {
	NavigateTo(path string)
}

// Store is the single source of truth for "who is signed in and what may
// they do". It has exactly one writer path (the event handler plus the
// action methods) and any number of snapshot readers.
type Store struct {
	fetcher  ProfileFetcher
	writer   ProfileWriter
	auth     AuthAPI
	notifier Notifier
	nav      Navigator
	logger   *slog.Logger
	events   *Emitter

	unsubscribe func()

	mu           sync.Mutex
	snap         Snapshot
	gen          uint64
	bootstrapped bool
	wg           sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewStore builds a store and subscribes it to events. The caller owns the
// lifecycle: Close unsubscribes and waits for in-flight fetches.
func NewStore(events *Emitter, fetcher ProfileFetcher, writer ProfileWriter, auth AuthAPI, notifier Notifier, nav Navigator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		fetcher:  fetcher,
		writer:   writer,
		auth:     auth,
		notifier: notifier,
		nav:      nav,
		logger:   logger,
		events:   events,
		snap: Snapshot{
			Loading: true,
			Profile: ProfileResult{State: ProfileNone},
		},
		subs: make(map[int]func(Snapshot)),
	}
	s.unsubscribe = events.Subscribe(s.handleEvent)
	return s
}

// Close detaches the store from its event stream and waits for any
// in-flight profile resolution to settle.
func (s *Store) Close() {
	s.unsubscribe()
	s.wg.Wait()
}

// Settle blocks until in-flight profile fetches have resolved. Request
// handlers call it so the guard never races the bootstrap.
func (s *Store) Settle() {
	s.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers an observer called with every new snapshot; returns
// an unsubscribe handle.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// handleEvent is the sole mutator of session/user/profile state. It adopts
// the session synchronously and resolves the profile asynchronously.
func (s *Store) handleEvent(ev Event) {
	s.mu.Lock()
	s.gen++
	gen := s.gen

	s.snap.Session = ev.Session
	if ev.Session != nil {
		s.snap.User = ev.Session.User
	} else {
		s.snap.User = nil
	}

	if s.snap.User == nil {
		s.snap.Profile = ProfileResult{State: ProfileNone}
		s.snap.Plans = nil
		s.finishBootstrapLocked()
		s.mu.Unlock()
		s.publish()
		return
	}

	userID := s.snap.User.ID
	s.snap.Profile = ProfileResult{State: ProfilePending}
	s.snap.Plans = nil
	s.mu.Unlock()
	s.publish()

	s.wg.Add(1)
	go s.resolveProfile(gen, userID)
}

// resolveProfile settles the profile slot for the event identified by gen.
// If a newer event arrived meanwhile this result is stale and dropped; the
// newer event's own resolution completes the bootstrap instead.
func (s *Store) resolveProfile(gen uint64, userID string) {
	defer s.wg.Done()

	ctx := context.Background()
	profile, err := s.fetcher.FetchProfile(ctx, userID)

	var plans []models.UserPlan
	if err == nil && profile != nil {
		if p, plansErr := s.fetcher.FetchPlans(ctx, userID); plansErr != nil {
			s.logger.Error("Failed to fetch user plans", "user_id", userID, "error", plansErr)
		} else {
			plans = p
		}
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Info("Discarding superseded profile fetch", "user_id", userID)
		return
	}

	switch {
	case err != nil:
		s.logger.Error("Profile fetch failed", "user_id", userID, "error", err)
		s.snap.Profile = ProfileResult{State: ProfileFailed}
	case profile == nil:
		s.logger.Info("No profile row for user", "user_id", userID)
		s.snap.Profile = ProfileResult{State: ProfileNotFound}
	default:
		s.snap.Profile = ProfileResult{State: ProfileLoaded, Profile: profile}
	}
	s.snap.Plans = plans
	s.finishBootstrapLocked()
	s.mu.Unlock()
	s.publish()
}

// finishBootstrapLocked flips Loading false the first time a resolution
// cycle settles; the guard keeps any later event from flipping it twice.
func (s *Store) finishBootstrapLocked() {
	if !s.bootstrapped {
		s.bootstrapped = true
		s.snap.Loading = false
	}
}

func (s *Store) setAuthLoading(v bool) {
	s.mu.Lock()
	s.snap.AuthLoading = v
	s.mu.Unlock()
	s.publish()
}

func (s *Store) publish() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// SignIn delegates the credential check to the auth service. Failures are
// reported to the user and swallowed; success emits SIGNED_IN (the event
// handler, not this method, populates user/profile) and navigates to the
// dashboard.
func (s *Store) SignIn(ctx context.Context, email, password string) {
	s.setAuthLoading(true)
	defer s.setAuthLoading(false)

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Error("Sign-in failed", "email", email, "error", err)
		s.notifier.Notify(NoticeError, "Sign in failed: invalid credentials or service unavailable")
		return
	}

	s.events.Emit(Event{Type: EventSignedIn, Session: sess})
	s.nav.NavigateTo("/dashboard")
}

// SignInWithGoogle starts the OAuth redirect flow. The eventual redirect
// completion, not this method, produces the session-change event.
func (s *Store) SignInWithGoogle(ctx context.Context) {
	s.setAuthLoading(true)
	defer s.setAuthLoading(false)

	url, err := s.auth.AuthorizeGoogle(ctx)
	if err != nil {
		s.logger.Error("Google sign-in failed", "error", err)
		s.notifier.Notify(NoticeError, "Google sign in is unavailable right now")
		return
	}
	s.nav.NavigateTo(url)
}

// SignUp creates the auth account, then attempts the profile-row insert. A
// failed insert is non-fatal: the account exists, the user is warned, and
// navigation to the login page happens regardless.
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) {
	s.setAuthLoading(true)
	defer s.setAuthLoading(false)

	user, err := s.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		s.logger.Error("Account creation failed", "email", email, "error", err)
		s.notifier.Notify(NoticeError, "Could not create the account")
		return
	}

	if err := s.writer.InsertProfile(ctx, user.ID, fullName); err != nil {
		s.logger.Error("Profile insert failed after sign-up", "user_id", user.ID, "error", err)
		s.notifier.Notify(NoticeWarning, "Account created, but profile setup is incomplete")
	} else {
		s.notifier.Notify(NoticeSuccess, "Account created. Please sign in.")
	}
	s.nav.NavigateTo("/login")
}

// SignOut delegates to the auth service and, on success, emits SIGNED_OUT
// so the event handler clears user/profile, then navigates to the landing
// page.
func (s *Store) SignOut(ctx context.Context) {
	s.setAuthLoading(true)
	defer s.setAuthLoading(false)

	var token string
	s.mu.Lock()
	if s.snap.Session != nil {
		token = s.snap.Session.AccessToken
	}
	s.mu.Unlock()

	if err := s.auth.SignOut(ctx, token); err != nil {
		s.logger.Error("Sign-out failed", "error", err)
		s.notifier.Notify(NoticeError, "Sign out failed")
		return
	}

	s.events.Emit(Event{Type: EventSignedOut, Session: nil})
	s.nav.NavigateTo("/")
	s.notifier.Notify(NoticeSuccess, "Signed out")
}

// ResetPassword requests a reset email. Both outcomes notify the user;
// neither propagates an error.
func (s *Store) ResetPassword(ctx context.Context, email string) {
	s.setAuthLoading(true)
	defer s.setAuthLoading(false)

	if err := s.auth.ResetPassword(ctx, email); err != nil {
		s.logger.Error("Password reset failed", "email", email, "error", err)
		s.notifier.Notify(NoticeError, "Could not send the password reset email")
		return
	}
	s.notifier.Notify(NoticeSuccess, "Password reset email sent")
}

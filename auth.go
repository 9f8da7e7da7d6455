package blogflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AuthOptions is a struct for configuring a new Auth gate.
type AuthOptions struct {
	Logger *slog.Logger     // Logger is the logger used by the gate. Default is a debug logger to stderr.
	Now    func() time.Time // Now stamps the last login of refreshed profiles. Default is time.Now.
}

// Auth is the authentication gate. It mirrors the identity provider's session and keeps the signed-in user's
// profile loaded. Session changes update the user synchronously; the profile is refreshed by a background task
// whose result is dropped if a newer session change arrived in the meantime.
type Auth struct {
	provider IdentityProvider
	profiles ProfileStore
	logger   *slog.Logger
	now      func() time.Time

	mu             sync.Mutex
	user           *User
	profile        *Profile
	loading        bool
	profileLoading bool
	generation     uint64
	unsubscribe    func()
	closed         bool

	tasks  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAuth creates an Auth gate. It starts out loading until Start has read the initial session.
func NewAuth(provider IdentityProvider, profiles ProfileStore, opts AuthOptions) *Auth {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Auth{
		provider: provider,
		profiles: profiles,
		logger:   opts.Logger,
		now:      orNow(opts.Now),
		loading:  true,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start reads the initial session and subscribes to session changes.
func (a *Auth) Start(ctx context.Context) error {
	session, err := a.provider.GetSession(ctx)
	if err != nil {
		a.logger.Warn("Failed to read initial session", slog.String("error", err.Error()))
		session = nil
	}
	a.handleSession(SessionInitial, session)

	unsubscribe := a.provider.OnSessionChange(a.handleSession)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		unsubscribe()
		return nil
	}
	a.unsubscribe = unsubscribe

	if err != nil {
		return fmt.Errorf("failed to read initial session: %w", err)
	}
	return nil
}

// handleSession is the provider callback. It never blocks: the user and loading flag change immediately and the
// profile refresh runs as a background task.
func (a *Auth) handleSession(event SessionEvent, session *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	a.generation++
	a.loading = false

	if session == nil {
		a.user = nil
		a.profile = nil
		a.profileLoading = false
		return
	}

	user := session.User
	a.user = &user
	a.profileLoading = true
	a.tasks.Add(1)
	go a.refreshProfile(a.generation, user, event == SessionSignedIn)
}

// refreshProfile loads the profile and, on sign-in, creates or updates it from the provider's user data.
func (a *Auth) refreshProfile(generation uint64, user User, signedIn bool) {
	defer a.tasks.Done()

	profile, err := a.profiles.GetProfile(a.ctx, user.ID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		a.logger.Error("Failed to load profile", slog.String("user", user.ID), slog.String("error", err.Error()))
		a.applyProfile(generation, nil, false)
		return
	}

	if signedIn {
		fields := profileFieldsFromUser(profile, user, a.now())
		updated, upsertErr := a.profiles.UpsertProfile(a.ctx, user.ID, fields)
		if upsertErr != nil {
			a.logger.Error("Failed to create or update profile", slog.String("user", user.ID), slog.String("error", upsertErr.Error()))
		} else {
			profile = updated
		}
	}

	a.applyProfile(generation, profile, profile != nil)
}

func (a *Auth) applyProfile(generation uint64, profile *Profile, set bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || generation != a.generation {
		a.logger.Debug("Dropping superseded profile refresh", slog.Uint64("generation", generation))
		return
	}

	a.profileLoading = false
	if set {
		a.profile = profile
	}
}

// profileFieldsFromUser merges the provider's identity into an existing profile, or builds a new reader profile.
func profileFieldsFromUser(existing *Profile, user User, now time.Time) ProfileFields {
	var fields ProfileFields
	if existing != nil {
		fields = existing.ProfileFields
	} else {
		fields.Role = RoleReader
	}

	if user.FullName != "" {
		fields.DisplayName = user.FullName
	}
	fields.Email = user.Email
	fields.AvatarURL = user.AvatarURL
	fields.ProviderID = user.ProviderID
	fields.LastLogin = now

	return fields
}

// SignIn starts an OAuth sign-in. The session itself arrives through the provider's change callback.
func (a *Auth) SignIn(ctx context.Context, provider string) (*SignInResult, error) {
	result, err := a.provider.SignInWithProvider(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in with %s: %w", provider, err)
	}
	return result, nil
}

// SignOut ends the session. The user and profile are cleared only if the provider succeeded.
func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.user = nil
	a.profile = nil
	a.profileLoading = false
	return nil
}

// UpdateProfile validates and stores the signed-in user's editable profile fields: display name, bio, website,
// twitter and location. Identity fields, role and last login are kept from the stored profile.
func (a *Auth) UpdateProfile(ctx context.Context, fields ProfileFields) (*Profile, error) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	user := *a.user
	generation := a.generation
	var current *Profile
	if a.profile != nil {
		cp := *a.profile
		current = &cp
	}
	a.mu.Unlock()

	if err := fields.Validate(); err != nil {
		return nil, err
	}

	if current == nil {
		stored, err := a.profiles.GetProfile(ctx, user.ID)
		switch {
		case err == nil:
			current = stored
		case !errors.Is(err, ErrProfileNotFound):
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
	}

	var base ProfileFields
	if current != nil {
		base = current.ProfileFields
	} else {
		base = profileFieldsFromUser(nil, user, time.Time{})
	}

	profile, err := a.profiles.UpsertProfile(ctx, user.ID, mergeEditable(base, fields))
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if generation == a.generation {
		a.profile = profile
	}

	cp := *profile
	return &cp, nil
}

// mergeEditable copies the user-editable fields of edit onto base.
func mergeEditable(base, edit ProfileFields) ProfileFields {
	base.DisplayName = edit.DisplayName
	base.Bio = edit.Bio
	base.Website = edit.Website
	base.Twitter = edit.Twitter
	base.Location = edit.Location
	return base
}

// User returns a copy of the signed-in user, or nil.
func (a *Auth) User() *User {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// Profile returns a copy of the signed-in user's profile, or nil if it is not loaded.
func (a *Auth) Profile() *Profile {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.profile == nil {
		return nil
	}
	p := *a.profile
	return &p
}

func (a *Auth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.user != nil
}

// Loading returns true until the initial session has been read.
func (a *Auth) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.loading
}

// ProfileLoading returns true while a profile refresh for the current session is running.
func (a *Auth) ProfileLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.profileLoading
}

// Wait blocks until all background profile refreshes have finished.
func (a *Auth) Wait() {
	a.tasks.Wait()
}

// Close unsubscribes from the provider, cancels background refreshes and waits for them to exit.
func (a *Auth) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubscribe := a.unsubscribe
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	a.cancel()
	a.tasks.Wait()
}

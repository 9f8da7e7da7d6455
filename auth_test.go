package blogflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hypergopher/blogflow"
)

var authNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

var (
	alice = blogflow.User{ID: "u-alice", Email: "alice@example.com", FullName: "Alice Smith", AvatarURL: "https://example.com/a.png", ProviderID: "github"}
	bob   = blogflow.User{ID: "u-bob", Email: "bob@example.com", FullName: "Bob Jones", ProviderID: "google"}
)

// fakeProvider is an IdentityProvider whose session changes are pushed by the test.
type fakeProvider struct {
	mu         sync.Mutex
	session    *blogflow.Session
	getErr     error
	signOutErr error
	handlers   map[int]blogflow.SessionHandler
	nextID     int
	signIns    []string
}

func newFakeProvider(session *blogflow.Session) *fakeProvider {
	return &fakeProvider{session: session, handlers: make(map[int]blogflow.SessionHandler)}
}

func (f *fakeProvider) GetSession(context.Context) (*blogflow.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.getErr
}

func (f *fakeProvider) OnSessionChange(handler blogflow.SessionHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeProvider) SignInWithProvider(_ context.Context, provider string) (*blogflow.SignInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns = append(f.signIns, provider)
	return &blogflow.SignInResult{Provider: provider, RedirectURL: "https://auth.example.com/" + provider}, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutErr
}

func (f *fakeProvider) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeProvider) emit(event blogflow.SessionEvent, session *blogflow.Session) {
	f.mu.Lock()
	handlers := make([]blogflow.SessionHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(event, session)
	}
}

// gatedProfiles holds GetProfile calls for selected users until their gate is opened.
type gatedProfiles struct {
	*blogflow.MemoryProfileStore
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedProfiles() *gatedProfiles {
	return &gatedProfiles{MemoryProfileStore: blogflow.NewMemoryProfileStore(), gates: make(map[string]chan struct{})}
}

func (g *gatedProfiles) hold(userID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[userID] = ch
	return ch
}

func (g *gatedProfiles) GetProfile(ctx context.Context, userID string) (*blogflow.Profile, error) {
	g.mu.Lock()
	gate := g.gates[userID]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.MemoryProfileStore.GetProfile(ctx, userID)
}

func newTestAuth(provider blogflow.IdentityProvider, profiles blogflow.ProfileStore) *blogflow.Auth {
	return blogflow.NewAuth(provider, profiles, blogflow.AuthOptions{Logger: testLogger(), Now: fixedClock(authNow)})
}

func TestAuth_StartWithoutSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	a := newTestAuth(provider, newGatedProfiles())
	defer a.Close()

	assert.True(t, a.Loading())
	require.NoError(t, a.Start(context.Background()))

	assert.False(t, a.Loading())
	assert.False(t, a.IsAuthenticated())
	assert.Nil(t, a.User())
	assert.Nil(t, a.Profile())
	assert.Equal(t, 1, provider.Subscribers())
}

func TestAuth_StartWithSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	profiles := newGatedProfiles()
	_, err := profiles.UpsertProfile(context.Background(), alice.ID, blogflow.ProfileFields{DisplayName: "Alice", Role: "author"})
	require.NoError(t, err)

	a := newTestAuth(newFakeProvider(&blogflow.Session{User: alice}), profiles)
	defer a.Close()

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.IsAuthenticated())
	assert.Equal(t, alice.ID, a.User().ID)

	a.Wait()
	assert.False(t, a.ProfileLoading())
	require.NotNil(t, a.Profile())
	// The initial session only loads the profile, it does not rewrite it.
	assert.Equal(t, "Alice", a.Profile().DisplayName)
	assert.Equal(t, "author", a.Profile().Role)
}

func TestAuth_StartSessionError(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	provider.getErr = errStore
	a := newTestAuth(provider, newGatedProfiles())
	defer a.Close()

	err := a.Start(context.Background())
	assert.ErrorIs(t, err, errStore)
	assert.False(t, a.Loading())
	assert.False(t, a.IsAuthenticated())
	assert.Equal(t, 1, provider.Subscribers())
}

func TestAuth_SignedInCreatesProfile(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	gate := profiles.hold(alice.ID)
	a := newTestAuth(provider, profiles)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: alice})
	assert.True(t, a.IsAuthenticated())
	assert.True(t, a.ProfileLoading())
	assert.Nil(t, a.Profile())

	close(gate)
	a.Wait()

	assert.False(t, a.ProfileLoading())
	p := a.Profile()
	require.NotNil(t, p)
	assert.Equal(t, alice.ID, p.UserID)
	assert.Equal(t, "Alice Smith", p.DisplayName)
	assert.Equal(t, alice.Email, p.Email)
	assert.Equal(t, alice.AvatarURL, p.AvatarURL)
	assert.Equal(t, "github", p.ProviderID)
	assert.Equal(t, blogflow.RoleReader, p.Role)
	assert.Equal(t, authNow, p.LastLogin)

	stored, err := profiles.GetProfile(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ProfileFields, stored.ProfileFields)
}

func TestAuth_SignedInKeepsExistingProfileFields(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	_, err := profiles.UpsertProfile(context.Background(), bob.ID, blogflow.ProfileFields{
		DisplayName: "Bobby",
		Bio:         "Writes about bread.",
		Role:        "editor",
	})
	require.NoError(t, err)

	a := newTestAuth(provider, profiles)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: bob})
	a.Wait()

	p := a.Profile()
	require.NotNil(t, p)
	assert.Equal(t, "Bob Jones", p.DisplayName)
	assert.Equal(t, "Writes about bread.", p.Bio)
	assert.Equal(t, "editor", p.Role)
	assert.Equal(t, authNow, p.LastLogin)
}

func TestAuth_SupersededRefreshIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	gate := profiles.hold(alice.ID)
	a := newTestAuth(provider, profiles)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: alice})
	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: bob})

	require.Eventually(t, func() bool { return !a.ProfileLoading() }, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, a.Profile())
	assert.Equal(t, bob.ID, a.Profile().UserID)

	close(gate)
	a.Wait()

	assert.Equal(t, bob.ID, a.User().ID)
	assert.Equal(t, bob.ID, a.Profile().UserID)
}

func TestAuth_SignedOutEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(&blogflow.Session{User: alice})
	a := newTestAuth(provider, newGatedProfiles())
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))
	a.Wait()

	provider.emit(blogflow.SessionSignedOut, nil)
	assert.False(t, a.IsAuthenticated())
	assert.Nil(t, a.Profile())
	assert.False(t, a.ProfileLoading())
}

func TestAuth_SignIn(t *testing.T) {
	provider := newFakeProvider(nil)
	a := newTestAuth(provider, newGatedProfiles())
	defer a.Close()

	result, err := a.SignIn(context.Background(), "github")
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/github", result.RedirectURL)
	assert.Equal(t, []string{"github"}, provider.signIns)
	assert.False(t, a.IsAuthenticated())
}

func TestAuth_SignOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(&blogflow.Session{User: alice})
	a := newTestAuth(provider, newGatedProfiles())
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))
	a.Wait()

	provider.signOutErr = errStore
	err := a.SignOut(context.Background())
	assert.ErrorIs(t, err, errStore)
	assert.True(t, a.IsAuthenticated(), "user is kept when the provider fails")

	provider.mu.Lock()
	provider.signOutErr = nil
	provider.mu.Unlock()

	require.NoError(t, a.SignOut(context.Background()))
	assert.False(t, a.IsAuthenticated())
	assert.Nil(t, a.Profile())
}

func TestAuth_UpdateProfile(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	a := newTestAuth(provider, profiles)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))

	_, err := a.UpdateProfile(context.Background(), blogflow.ProfileFields{DisplayName: "Alice"})
	assert.ErrorIs(t, err, blogflow.ErrNotAuthenticated)

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: alice})
	a.Wait()

	_, err = a.UpdateProfile(context.Background(), blogflow.ProfileFields{DisplayName: "A", Website: "not a url"})
	assert.ErrorIs(t, err, blogflow.ErrValidation)
	assert.Equal(t, "Alice Smith", a.Profile().DisplayName)

	fields := a.Profile().ProfileFields
	fields.DisplayName = "Alice S."
	fields.Bio = "Engineer and writer."
	fields.Website = "https://alice.dev"
	fields.Twitter = "@alice"

	updated, err := a.UpdateProfile(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, "Alice S.", updated.DisplayName)
	assert.Equal(t, "Alice S.", a.Profile().DisplayName)
	assert.Equal(t, blogflow.RoleReader, a.Profile().Role)
}

func TestAuth_UpdateProfileKeepsIdentityFields(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	a := newTestAuth(provider, profiles)
	defer a.Close()
	require.NoError(t, a.Start(context.Background()))

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: alice})
	a.Wait()

	updated, err := a.UpdateProfile(context.Background(), blogflow.ProfileFields{
		DisplayName: "Alice S.",
		Bio:         "Engineer and writer.",
		Location:    "Lisbon",
		Role:        "admin",
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice S.", updated.DisplayName)
	assert.Equal(t, "Engineer and writer.", updated.Bio)
	assert.Equal(t, "Lisbon", updated.Location)
	assert.Equal(t, blogflow.RoleReader, updated.Role)
	assert.Equal(t, alice.Email, updated.Email)
	assert.Equal(t, alice.AvatarURL, updated.AvatarURL)
	assert.Equal(t, "github", updated.ProviderID)
	assert.Equal(t, authNow, updated.LastLogin)

	stored, err := profiles.GetProfile(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.ProfileFields, stored.ProfileFields)
}

func TestAuth_CloseUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := newFakeProvider(nil)
	profiles := newGatedProfiles()
	profiles.hold(alice.ID)
	a := newTestAuth(provider, profiles)
	require.NoError(t, a.Start(context.Background()))

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: alice})
	assert.True(t, a.ProfileLoading())

	// Close cancels the refresh held at the gate.
	a.Close()
	a.Close()
	assert.Equal(t, 0, provider.Subscribers())

	provider.emit(blogflow.SessionSignedIn, &blogflow.Session{User: bob})
	assert.Equal(t, alice.ID, a.User().ID)
	assert.Nil(t, a.Profile())
}

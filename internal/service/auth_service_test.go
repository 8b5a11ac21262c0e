package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/queue"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/repository/memory"
	"github.com/iliyamo/account-service/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    *memory.Store
	issuer   *utils.Issuer
	clock    *clock
	events   *recordingPublisher
	svc      *AuthService
	resolver *RoleResolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	clk := &clock{now: time.Now()}
	issuer, err := utils.NewIssuer("access-secret", "refresh-secret", 7*24*time.Hour, 30*24*time.Hour)
	require.NoError(t, err)
	issuer.WithClock(clk.Now)
	events := &recordingPublisher{}
	resolver := NewRoleResolver(store.Roles(), logger.Nop())
	svc := NewAuthService(store.Users(), store.Roles(), store.Tokens(), resolver, issuer, events, logger.Nop(), 4)
	return &harness{store: store, issuer: issuer, clock: clk, events: events, svc: svc, resolver: resolver}
}

func (h *harness) register(t *testing.T, email string) model.User {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.svc.Register(ctx, RegisterInput{
		FirstName: "Alice", LastName: "Liddell", Email: email, Password: "Str0ngP@ss1",
	}))
	u, err := h.svc.VerifyUser(ctx, email, "Str0ngP@ss1")
	require.NoError(t, err)
	return u
}

func (h *harness) storedRefresh(t *testing.T, userID string) string {
	t.Helper()
	tok, err := h.store.Tokens().Get(context.Background(), userID, model.TokenRefresh)
	require.NoError(t, err)
	return tok.Value
}

func TestRegisterHashesPasswordAndAssignsCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Register(ctx, RegisterInput{
		FirstName: "Alice", LastName: "Liddell", Email: "  Alice@Example.com ", Password: "Str0ngP@ss1",
	}))

	u, err := h.store.Users().GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ngP@ss1", u.PasswordHash)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "Str0ngP@ss1"))
	assert.Contains(t, u.Avatar, "seed=Alice+Liddell")

	p, err := h.svc.ValidateUser(ctx, u.ID)
	require.NoError(t, err)
	names, err := h.svc.RoleNames(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleCustomer}, names)
	assert.Equal(t, []string{queue.EventUserRegistered}, h.events.types())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice@example.com")

	err := h.svc.Register(ctx, RegisterInput{FirstName: "Al", LastName: "Ice", Email: "ALICE@example.com", Password: "Str0ngP@ss1"})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestVerifyUserDoesNotRevealWhichPartFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice@example.com")

	_, errPassword := h.svc.VerifyUser(ctx, "alice@example.com", "wrong")
	_, errEmail := h.svc.VerifyUser(ctx, "nobody@example.com", "Str0ngP@ss1")
	assert.ErrorIs(t, errPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errEmail, ErrInvalidCredentials)
	assert.Equal(t, errPassword.Error(), errEmail.Error())
}

func TestLoginEmbedsResolvedRoles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	require.NoError(t, h.svc.GrantRole(ctx, u.ID, "admin"))

	pair, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	claims, err := h.issuer.Verify(pair.AccessToken, utils.AccessKey)
	require.NoError(t, err)
	links, err := h.store.Users().RoleLinks(ctx, u.ID)
	require.NoError(t, err)
	want, err := h.resolver.Resolve(ctx, model.RoleIDs(links))
	require.NoError(t, err)
	assert.ElementsMatch(t, want, claims.Roles)
	assert.ElementsMatch(t, []string{model.RoleAdmin, model.RoleCustomer}, claims.Roles)
	assert.Equal(t, "Alice Liddell", claims.FullName)
}

func TestLoginTwiceReusesRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")

	first, err := h.svc.Login(ctx, u)
	require.NoError(t, err)
	second, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	assert.Equal(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.RefreshToken, h.storedRefresh(t, u.ID))
	assert.Equal(t, []string{queue.EventUserRegistered, queue.EventSessionCreated, queue.EventSessionReused}, h.events.types())
}

func TestLoginAfterExpiryRotates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")

	first, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	h.clock.Advance(31 * 24 * time.Hour)
	second, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, second.RefreshToken, h.storedRefresh(t, u.ID))
	_, err = h.issuer.Verify(second.RefreshToken, utils.RefreshKey)
	assert.NoError(t, err)
}

func TestLoginReplacesUnverifiableStoredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	require.NoError(t, h.store.Tokens().WithLocked(ctx, u.ID, model.TokenRefresh, func(*model.Token) (string, error) {
		return "garbage", nil
	}))

	pair, err := h.svc.Login(ctx, u)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, h.storedRefresh(t, u.ID))
}

func TestRefreshWhileValidKeepsRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	login, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	pair, err := h.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, login.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, login.AccessToken, pair.AccessToken)

	claims, err := h.issuer.Verify(pair.AccessToken, utils.AccessKey)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestRefreshExpiredRotatesAndStores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	login, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	h.clock.Advance(31 * 24 * time.Hour)
	pair, err := h.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, h.storedRefresh(t, u.ID))

	// the replaced token is no longer accepted
	_, err = h.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	login, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	_, err = h.svc.Refresh(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// an access token is signed with the other key
	_, err = h.svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a well-signed refresh token that is not the stored one
	other, err := h.issuer.IssueRefresh(utils.Identity{ID: u.ID})
	require.NoError(t, err)
	_, err = h.svc.Refresh(ctx, other)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a token for a user that does not exist
	ghost, err := h.issuer.IssueRefresh(utils.Identity{ID: "ghost"})
	require.NoError(t, err)
	_, err = h.svc.Refresh(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutDeletesSessionAndBlocksRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	login, err := h.svc.Login(ctx, u)
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, u.ID))
	_, err = h.store.Tokens().Get(ctx, u.ID, model.TokenRefresh)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = h.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// logging out again is harmless, and the next login starts a new session
	require.NoError(t, h.svc.Logout(ctx, u.ID))
	again, err := h.svc.Login(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, again.RefreshToken, h.storedRefresh(t, u.ID))
}

func TestConcurrentLoginsShareOneSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")

	const n = 10
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair, err := h.svc.Login(ctx, u)
			if assert.NoError(t, err) {
				results[i] = pair.RefreshToken
			}
		}(i)
	}
	wg.Wait()

	stored := h.storedRefresh(t, u.ID)
	for _, r := range results {
		assert.Equal(t, stored, r)
	}
}

func TestPublishFailureDoesNotFailLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")
	h.events.err = errors.New("broker down")

	_, err := h.svc.Login(ctx, u)
	assert.NoError(t, err)
}

func TestGrantRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "alice@example.com")

	assert.ErrorIs(t, h.svc.GrantRole(ctx, u.ID, "ROOT"), ErrValidation)
	assert.ErrorIs(t, h.svc.GrantRole(ctx, "ghost", model.RoleManager), ErrNotFound)
	require.NoError(t, h.svc.GrantRole(ctx, u.ID, model.RoleManager))
	require.NoError(t, h.svc.GrantRole(ctx, u.ID, model.RoleManager))

	links, err := h.store.Users().RoleLinks(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestValidateUnknownUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ValidateUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

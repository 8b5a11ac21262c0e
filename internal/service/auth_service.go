package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/queue"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/utils"
)

// RegisterInput is a validated registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Principal is the authenticated caller: the stored user and the ids of the
// roles linked to it.
type Principal struct {
	User    model.User
	RoleIDs []string
}

// AuthService owns registration, credential checks and the refresh-token
// session of each user.
type AuthService struct {
	users      UserStore
	roleStore  RoleStore
	tokens     TokenStore
	roles      *RoleResolver
	issuer     *utils.Issuer
	events     EventPublisher
	log        logger.Logger
	bcryptCost int
}

func NewAuthService(users UserStore, roleStore RoleStore, tokens TokenStore, roles *RoleResolver,
	issuer *utils.Issuer, events EventPublisher, log logger.Logger, bcryptCost int) *AuthService {
	if users == nil || roleStore == nil || tokens == nil || roles == nil || issuer == nil {
		panic("nil dependency passed to NewAuthService")
	}
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &AuthService{
		users:      users,
		roleStore:  roleStore,
		tokens:     tokens,
		roles:      roles,
		issuer:     issuer,
		events:     events,
		log:        log,
		bcryptCost: bcryptCost,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register creates an account with the CUSTOMER role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	email := NormalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	customer, err := s.roleStore.GetByName(ctx, model.RoleCustomer)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: customer role not found", ErrNotFound)
		}
		return fmt.Errorf("lookup customer role: %w", err)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
	}
	u.Avatar = utils.InitialsAvatar(u.FullName())

	if err := s.users.Create(ctx, u, customer.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	ev := queue.NewEvent(queue.EventUserRegistered, u.ID)
	ev.Email = u.Email
	s.publish(ctx, ev)
	s.log.Info().Str("user_id", u.ID).Msg("user registered")
	return nil
}

// VerifyUser checks an email/password pair.  Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) VerifyUser(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ValidateUser loads the principal named by a verified access token.
func (s *AuthService) ValidateUser(ctx context.Context, userID string) (Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("lookup user: %w", err)
	}
	links, err := s.users.RoleLinks(ctx, u.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("load role links: %w", err)
	}
	return Principal{User: u, RoleIDs: model.RoleIDs(links)}, nil
}

// Login issues tokens for a verified user.  A still-valid stored refresh
// token is handed back unchanged; a missing one is created and an expired
// one replaced.
func (s *AuthService) Login(ctx context.Context, u model.User) (utils.TokenPair, error) {
	id, err := s.identity(ctx, u)
	if err != nil {
		return utils.TokenPair{}, err
	}
	pair, err := s.issuer.Issue(id)
	if err != nil {
		return utils.TokenPair{}, err
	}

	fresh := pair.RefreshToken
	var outcome string
	err = s.tokens.WithLocked(ctx, u.ID, model.TokenRefresh, func(cur *model.Token) (string, error) {
		pair.RefreshToken = fresh
		switch {
		case cur == nil:
			outcome = queue.EventSessionCreated
			return fresh, nil
		case s.sessionActive(cur.Value):
			outcome = queue.EventSessionReused
			pair.RefreshToken = cur.Value
			return "", nil
		default:
			outcome = queue.EventSessionRotated
			return fresh, nil
		}
	})
	if err != nil {
		return utils.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	s.publish(ctx, queue.NewEvent(outcome, u.ID))
	s.log.Debug().Str("user_id", u.ID).Str("session", outcome).Msg("login")
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token.  The presented
// token must be the one stored for its user.  While it is unexpired it is
// returned unchanged; once expired a new refresh token replaces it.
func (s *AuthService) Refresh(ctx context.Context, presented string) (utils.TokenPair, error) {
	claims, err := s.issuer.Verify(presented, utils.RefreshKey)
	expired := errors.Is(err, utils.ErrTokenExpired)
	if err != nil && !expired {
		return utils.TokenPair{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims == nil || claims.UserID == "" {
		return utils.TokenPair{}, ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.TokenPair{}, ErrUnauthorized
		}
		return utils.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	id, err := s.identity(ctx, u)
	if err != nil {
		return utils.TokenPair{}, err
	}
	access, err := s.issuer.IssueAccess(id)
	if err != nil {
		return utils.TokenPair{}, err
	}

	pair := utils.TokenPair{AccessToken: access}
	var outcome string
	err = s.tokens.WithLocked(ctx, u.ID, model.TokenRefresh, func(cur *model.Token) (string, error) {
		if cur == nil || cur.Value != presented {
			return "", ErrSessionNotFound
		}
		if !expired {
			outcome = queue.EventSessionReused
			pair.RefreshToken = cur.Value
			return "", nil
		}
		next, err := s.issuer.IssueRefresh(id)
		if err != nil {
			return "", err
		}
		outcome = queue.EventSessionRotated
		pair.RefreshToken = next
		return next, nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return utils.TokenPair{}, err
		}
		return utils.TokenPair{}, fmt.Errorf("refresh session: %w", err)
	}

	s.publish(ctx, queue.NewEvent(outcome, u.ID))
	s.log.Debug().Str("user_id", u.ID).Str("session", outcome).Msg("refresh")
	return pair, nil
}

// Logout ends the user's session.  Having no session is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.Delete(ctx, userID, model.TokenRefresh); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	s.publish(ctx, queue.NewEvent(queue.EventSessionEnded, userID))
	s.log.Debug().Str("user_id", userID).Msg("logout")
	return nil
}

// GrantRole links the named role to a user.
func (s *AuthService) GrantRole(ctx context.Context, userID, roleName string) error {
	roleName = strings.ToUpper(strings.TrimSpace(roleName))
	if !model.ValidRoleName(roleName) {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, roleName)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return err
	}
	role, err := s.roleStore.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: role %s not seeded", ErrNotFound, roleName)
		}
		return err
	}
	if err := s.users.AddRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	ev := queue.NewEvent(queue.EventRoleGranted, userID)
	ev.Role = roleName
	s.publish(ctx, ev)
	return nil
}

// RoleNames resolves the principal's role links.
func (s *AuthService) RoleNames(ctx context.Context, p Principal) ([]string, error) {
	return s.roles.Resolve(ctx, p.RoleIDs)
}

func (s *AuthService) identity(ctx context.Context, u model.User) (utils.Identity, error) {
	links, err := s.users.RoleLinks(ctx, u.ID)
	if err != nil {
		return utils.Identity{}, fmt.Errorf("load role links: %w", err)
	}
	names, err := s.roles.Resolve(ctx, model.RoleIDs(links))
	if err != nil {
		return utils.Identity{}, err
	}
	return utils.Identity{ID: u.ID, FullName: u.FullName(), Avatar: u.Avatar, Roles: names}, nil
}

// sessionActive reports whether a stored refresh token still verifies.  A
// token that no longer verifies at all, for example after a key change, is
// treated like an expired one and replaced.
func (s *AuthService) sessionActive(stored string) bool {
	_, err := s.issuer.Verify(stored, utils.RefreshKey)
	return err == nil
}

func (s *AuthService) publish(ctx context.Context, ev queue.AuthEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Type).Str("user_id", ev.UserID).Msg("publish auth event failed")
	}
}

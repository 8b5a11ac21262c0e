package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

func TestRolesSeeded(t *testing.T) {
	ctx := context.Background()
	roles, err := New().Roles().List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, []string{"ADMIN", "CUSTOMER", "MANAGER"}, []string{roles[0].Name, roles[1].Name, roles[2].Name})
}

func TestUsersDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	role, err := s.Roles().GetByName(ctx, model.RoleCustomer)
	require.NoError(t, err)

	require.NoError(t, s.Users().Create(ctx, model.User{ID: "u-1", Email: "a@example.com"}, role.ID))
	err = s.Users().Create(ctx, model.User{ID: "u-2", Email: "a@example.com"}, role.ID)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	links, err := s.Users().RoleLinks(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []model.UserRole{{UserID: "u-1", RoleID: role.ID}}, links)
}

func TestNamesByIDsSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	s := New()
	admin, _ := s.Roles().GetByName(ctx, model.RoleAdmin)

	names, err := s.Roles().NamesByIDs(ctx, []string{admin.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, names)
}

func TestTokensWithLocked(t *testing.T) {
	ctx := context.Background()
	tokens := New().Tokens()

	require.NoError(t, tokens.WithLocked(ctx, "u-1", model.TokenRefresh, func(cur *model.Token) (string, error) {
		assert.Nil(t, cur)
		return "first", nil
	}))
	require.NoError(t, tokens.WithLocked(ctx, "u-1", model.TokenRefresh, func(cur *model.Token) (string, error) {
		require.NotNil(t, cur)
		assert.Equal(t, "first", cur.Value)
		return "", nil
	}))
	tok, err := tokens.Get(ctx, "u-1", model.TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, "first", tok.Value)

	require.NoError(t, tokens.Delete(ctx, "u-1", model.TokenRefresh))
	_, err = tokens.Get(ctx, "u-1", model.TokenRefresh)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokensWithLockedSingleWinner(t *testing.T) {
	ctx := context.Background()
	tokens := New().Tokens()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tokens.WithLocked(ctx, "u-1", model.TokenRefresh, func(cur *model.Token) (string, error) {
				if cur != nil {
					return "", nil
				}
				mu.Lock()
				created++
				mu.Unlock()
				return "value", nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestProjectsMembership(t *testing.T) {
	ctx := context.Background()
	projects := New().Projects()

	p := model.Project{ID: "p-1", Name: "Apollo", URL: "apollo", Type: model.ProjectSoftware}
	require.NoError(t, projects.Create(ctx, p, model.Member{UserID: "u-1", ProjectID: "p-1", Role: model.MemberAdministrator}))
	assert.ErrorIs(t, projects.Create(ctx, model.Project{ID: "p-2", URL: "apollo"}, model.Member{UserID: "u-1", ProjectID: "p-2"}), repository.ErrDuplicate)

	q := model.Project{ID: "p-3", Name: "Gemini", URL: "gemini", Type: model.ProjectBusiness}
	require.NoError(t, projects.Create(ctx, q, model.Member{UserID: "u-2", ProjectID: "p-3", Role: model.MemberAdministrator}))
	require.NoError(t, projects.AddMember(ctx, model.Member{UserID: "u-1", ProjectID: "p-3", Role: model.MemberViewer}))
	assert.ErrorIs(t, projects.AddMember(ctx, model.Member{UserID: "u-1", ProjectID: "p-3"}), repository.ErrDuplicate)

	list, err := projects.ListForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

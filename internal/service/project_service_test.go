package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/model"
)

func TestProjectLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.register(t, "owner@example.com")
	guest := h.register(t, "guest@example.com")
	other := h.register(t, "other@example.com")
	svc := NewProjectService(h.store.Projects(), h.store.Users())

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: " Apollo ", URL: "apollo"})
	require.NoError(t, err)
	assert.Equal(t, "Apollo", p.Name)
	assert.Equal(t, model.ProjectSoftware, p.Type)

	_, err = svc.Create(ctx, owner.ID, CreateProjectInput{Name: "Copy", URL: "apollo"})
	assert.ErrorIs(t, err, ErrConflict)

	m, err := svc.AddMember(ctx, owner.ID, p.ID, guest.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.MemberMember, m.Role)

	_, err = svc.AddMember(ctx, owner.ID, p.ID, guest.ID, model.MemberViewer)
	assert.ErrorIs(t, err, ErrConflict)

	// a plain member cannot add others
	_, err = svc.AddMember(ctx, guest.ID, p.ID, other.ID, model.MemberViewer)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AddMember(ctx, owner.ID, "missing", other.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddMember(ctx, owner.ID, p.ID, "ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)

	// a user may belong to more than one project
	q, err := svc.Create(ctx, other.ID, CreateProjectInput{Name: "Gemini", URL: "gemini", Type: model.ProjectMarketing})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, other.ID, q.ID, guest.ID, model.MemberViewer)
	require.NoError(t, err)

	list, err := svc.ListForUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

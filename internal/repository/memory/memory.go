// Package memory implements the service stores in process memory.  It backs
// STORE=memory deployments and the test suites; data does not survive a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

type tokenKey struct {
	userID string
	typ    model.TokenType
}

type memberKey struct {
	projectID string
	userID    string
}

// Store is the shared state behind the per-entity views.
type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User
	byEmail  map[string]string
	roles    map[string]model.Role
	links    map[string]map[string]struct{}
	tokens   map[tokenKey]model.Token
	projects map[string]model.Project
	members  map[memberKey]model.Member

	// tokenMu serialises WithLocked callers like a row lock would.
	tokenMu sync.Mutex
}

// New returns an empty store with the reference roles seeded.
func New() *Store {
	s := &Store{
		users:    map[string]model.User{},
		byEmail:  map[string]string{},
		roles:    map[string]model.Role{},
		links:    map[string]map[string]struct{}{},
		tokens:   map[tokenKey]model.Token{},
		projects: map[string]model.Project{},
		members:  map[memberKey]model.Member{},
	}
	now := time.Now().UTC()
	for _, name := range model.RoleNames {
		id := uuid.NewString()
		s.roles[id] = model.Role{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	}
	return s
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Roles() *Roles       { return &Roles{s} }
func (s *Store) Tokens() *Tokens     { return &Tokens{s} }
func (s *Store) Projects() *Projects { return &Projects{s} }

// Users implements service.UserStore.
type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user model.User, roleID string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	s.links[user.ID] = map[string]struct{}{roleID: {}}
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return s.users[id], nil
}

func (u *Users) GetByID(_ context.Context, id string) (model.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *Users) RoleLinks(_ context.Context, userID string) ([]model.UserRole, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var links []model.UserRole
	for roleID := range s.links[userID] {
		links = append(links, model.UserRole{UserID: userID, RoleID: roleID})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].RoleID < links[j].RoleID })
	return links, nil
}

func (u *Users) AddRole(_ context.Context, userID, roleID string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[userID] == nil {
		s.links[userID] = map[string]struct{}{}
	}
	s.links[userID][roleID] = struct{}{}
	return nil
}

// Roles implements service.RoleStore.
type Roles struct{ s *Store }

func (r *Roles) NamesByIDs(_ context.Context, ids []string) ([]string, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, id := range ids {
		if role, ok := s.roles[id]; ok {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *Roles) GetByName(_ context.Context, name string) (model.Role, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return model.Role{}, repository.ErrNotFound
}

func (r *Roles) List(_ context.Context) ([]model.Role, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]model.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// Tokens implements service.TokenStore.
type Tokens struct{ s *Store }

func (t *Tokens) WithLocked(_ context.Context, userID string, typ model.TokenType, fn func(cur *model.Token) (string, error)) error {
	s := t.s
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	key := tokenKey{userID, typ}
	s.mu.RLock()
	tok, ok := s.tokens[key]
	s.mu.RUnlock()

	var cur *model.Token
	if ok {
		cp := tok
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil || next == "" {
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		tok.Value = next
		tok.UpdatedAt = now
	} else {
		tok = model.Token{ID: uuid.NewString(), Type: typ, Value: next, UserID: userID, CreatedAt: now, UpdatedAt: now}
	}
	s.tokens[key] = tok
	return nil
}

func (t *Tokens) Get(_ context.Context, userID string, typ model.TokenType) (model.Token, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[tokenKey{userID, typ}]
	if !ok {
		return model.Token{}, repository.ErrNotFound
	}
	return tok, nil
}

func (t *Tokens) Delete(_ context.Context, userID string, typ model.TokenType) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenKey{userID, typ})
	return nil
}

// Projects implements service.ProjectStore.
type Projects struct{ s *Store }

func (p *Projects) Create(_ context.Context, project model.Project, owner model.Member) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.URL == project.URL {
			return repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	project.CreatedAt, project.UpdatedAt = now, now
	owner.CreatedAt, owner.UpdatedAt = now, now
	s.projects[project.ID] = project
	s.members[memberKey{owner.ProjectID, owner.UserID}] = owner
	return nil
}

func (p *Projects) Get(_ context.Context, id string) (model.Project, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	if !ok {
		return model.Project{}, repository.ErrNotFound
	}
	return project, nil
}

func (p *Projects) ListForUser(_ context.Context, userID string) ([]model.Project, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := []model.Project{}
	for key := range s.members {
		if key.userID == userID {
			projects = append(projects, s.projects[key.projectID])
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects, nil
}

func (p *Projects) GetMember(_ context.Context, projectID, userID string) (model.Member, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{projectID, userID}]
	if !ok {
		return model.Member{}, repository.ErrNotFound
	}
	return m, nil
}

func (p *Projects) AddMember(_ context.Context, m model.Member) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{m.ProjectID, m.UserID}
	if _, ok := s.members[key]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	s.members[key] = m
	return nil
}

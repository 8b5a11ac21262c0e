package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/model"
)

type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

const projectColumns = "p.id, p.name, p.url, p.type, p.description, p.created_at, p.updated_at"

// Create inserts the project and its owner membership in one transaction.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project, owner model.Member) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO projects (id, name, url, type, description) VALUES (?,?,?,?,?)",
		p.ID, p.Name, p.URL, p.Type, p.Description); err != nil {
		if database.IsDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO members (user_id, project_id, role) VALUES (?,?,?)",
		owner.UserID, owner.ProjectID, owner.Role); err != nil {
		return fmt.Errorf("insert owner member: %w", err)
	}
	return tx.Commit()
}

// Get fetches a project by id.
func (r *ProjectRepo) Get(ctx context.Context, id string) (model.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects p WHERE p.id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, ErrNotFound
	}
	return p, err
}

// ListForUser returns the projects the user is a member of, newest first.
func (r *ProjectRepo) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects p JOIN members m ON m.project_id = p.id WHERE m.user_id=? ORDER BY p.created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetMember fetches one membership.
func (r *ProjectRepo) GetMember(ctx context.Context, projectID, userID string) (model.Member, error) {
	var m model.Member
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, project_id, role, created_at, updated_at FROM members WHERE project_id=? AND user_id=? LIMIT 1",
		projectID, userID).Scan(&m.UserID, &m.ProjectID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, ErrNotFound
	}
	return m, err
}

// AddMember inserts a membership.
func (r *ProjectRepo) AddMember(ctx context.Context, m model.Member) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO members (user_id, project_id, role) VALUES (?,?,?)", m.UserID, m.ProjectID, m.Role)
	if database.IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (model.Project, error) {
	var p model.Project
	var desc sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.URL, &p.Type, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Project{}, err
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	return p, nil
}

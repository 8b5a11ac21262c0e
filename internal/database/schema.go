package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/model"
)

// schema is applied in order; every statement is idempotent.  members is
// keyed on (user_id, project_id) so a user can join several projects.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		email       VARCHAR(255) NOT NULL,
		first_name  VARCHAR(255) NOT NULL,
		last_name   VARCHAR(255) NOT NULL,
		password    TEXT         NOT NULL,
		avatar      TEXT         NOT NULL,
		created_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS roles (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		name        VARCHAR(32) NOT NULL,
		created_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_roles_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id CHAR(36) NOT NULL,
		role_id CHAR(36) NOT NULL,
		PRIMARY KEY (user_id, role_id),
		CONSTRAINT fk_user_roles_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_user_roles_role FOREIGN KEY (role_id) REFERENCES roles (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id          CHAR(36)    NOT NULL PRIMARY KEY,
		type        ENUM('REFRESH_TOKEN','FORGOT_PASSWORD_TOKEN','VERIFY_ACCOUNT_TOKEN') NOT NULL,
		value       TEXT        NOT NULL,
		user_id     CHAR(36)    NOT NULL,
		created_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_tokens_user_type (user_id, type),
		CONSTRAINT fk_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS projects (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		url         VARCHAR(512) NOT NULL,
		type        ENUM('Software','Marketing','Business') NOT NULL DEFAULT 'Software',
		description TEXT         NULL,
		created_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_projects_url (url)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS members (
		user_id     CHAR(36)    NOT NULL,
		project_id  CHAR(36)    NOT NULL,
		role        ENUM('Administrator','Member','Viewer') NOT NULL DEFAULT 'Member',
		created_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		PRIMARY KEY (user_id, project_id),
		CONSTRAINT fk_members_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_members_project FOREIGN KEY (project_id) REFERENCES projects (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables that do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// SeedRoles inserts the reference roles.  Existing names are left alone.
func SeedRoles(ctx context.Context, db *sql.DB) error {
	for _, name := range model.RoleNames {
		if _, err := db.ExecContext(ctx,
			"INSERT IGNORE INTO roles (id, name) VALUES (?, ?)",
			uuid.NewString(), name); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

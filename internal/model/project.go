package model

import "time"

// Project types (projects.type).
const (
	ProjectSoftware  = "Software"
	ProjectMarketing = "Marketing"
	ProjectBusiness  = "Business"
)

// Member roles (members.role).
const (
	MemberAdministrator = "Administrator"
	MemberMember        = "Member"
	MemberViewer        = "Viewer"
)

// Project is a row in the `projects` table.  Description is optional.
type Project struct {
	ID          string
	Name        string
	URL         string
	Type        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member links a user to a project.  (UserID, ProjectID) is the key; a user
// may belong to several projects.
type Member struct {
	UserID    string
	ProjectID string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

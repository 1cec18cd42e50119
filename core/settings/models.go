package settings

import (
	"time"
)

// Settings holds the site-wide switches. A single row exists.
type Settings struct {
	ID                int       `json:"-" db:"id"`
	SiteTitle         string    `json:"siteTitle" db:"site_title"`
	SiteDescription   string    `json:"siteDescription" db:"site_description"`
	MaintenanceMode   bool      `json:"maintenanceMode" db:"maintenance_mode"`
	AllowRegistration bool      `json:"allowRegistration" db:"allow_registration"`
	EnableGithubAuth  bool      `json:"enableGithubAuth" db:"enable_github_auth"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// Defaults returns the settings used when none have been saved yet.
func Defaults() Settings {
	return Settings{
		ID:                1,
		SiteTitle:         "Atom Q",
		SiteDescription:   "Take quizzes and test your knowledge",
		MaintenanceMode:   false,
		AllowRegistration: true,
		EnableGithubAuth:  false,
		UpdatedAt:         time.Now().UTC(),
	}
}

// UpdateSettings defines what may be changed. Nil fields are left untouched.
type UpdateSettings struct {
	SiteTitle         *string `json:"siteTitle" validate:"omitempty,min=1,max=100"`
	SiteDescription   *string `json:"siteDescription" validate:"omitempty,max=500"`
	MaintenanceMode   *bool   `json:"maintenanceMode"`
	AllowRegistration *bool   `json:"allowRegistration"`
	EnableGithubAuth  *bool   `json:"enableGithubAuth"`
}

func (us UpdateSettings) apply(s Settings) Settings {
	if us.SiteTitle != nil {
		s.SiteTitle = *us.SiteTitle
	}
	if us.SiteDescription != nil {
		s.SiteDescription = *us.SiteDescription
	}
	if us.MaintenanceMode != nil {
		s.MaintenanceMode = *us.MaintenanceMode
	}
	if us.AllowRegistration != nil {
		s.AllowRegistration = *us.AllowRegistration
	}
	if us.EnableGithubAuth != nil {
		s.EnableGithubAuth = *us.EnableGithubAuth
	}
	s.UpdatedAt = time.Now().UTC()
	return s
}

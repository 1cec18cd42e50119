package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/core/settings"
)

const settingsID = 1

type settingsRepository struct {
	repo
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(exec core.DBExecutor) *settingsRepository {
	return &settingsRepository{repo{exec: exec}}
}

func (r settingsRepository) GetSettings(ctx context.Context, exec ...core.DBExecutor) (settings.Settings, error) {
	var s settings.Settings
	err := get(ctx, r.getExec(exec), &s,
		`SELECT id, site_title, site_description, maintenance_mode, allow_registration, enable_github_auth, updated_at
		FROM settings WHERE id = ?`, settingsID)
	if err != nil {
		return settings.Settings{}, trapNoRowsErr(err, settings.ErrNotFound, "selecting settings")
	}
	return s, nil
}

// SaveSettings upserts the single settings row.
func (r settingsRepository) SaveSettings(ctx context.Context, s settings.Settings, exec ...core.DBExecutor) (settings.Settings, error) {
	s.ID = settingsID
	_, err := execute(ctx, r.getExec(exec),
		`INSERT INTO settings (id, site_title, site_description, maintenance_mode, allow_registration, enable_github_auth, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			site_title = excluded.site_title,
			site_description = excluded.site_description,
			maintenance_mode = excluded.maintenance_mode,
			allow_registration = excluded.allow_registration,
			enable_github_auth = excluded.enable_github_auth,
			updated_at = excluded.updated_at`,
		s.ID, s.SiteTitle, s.SiteDescription, s.MaintenanceMode, s.AllowRegistration, s.EnableGithubAuth, s.UpdatedAt.UTC(),
	)
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "saving settings")
	}
	return s, nil
}

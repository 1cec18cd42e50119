package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core"
	"github.com/atomcode/atomq/testutil"
)

type repoMock struct {
	saved *Settings
	reads int
}

func (r *repoMock) GetSettings(context.Context, ...core.DBExecutor) (Settings, error) {
	r.reads++
	if r.saved == nil {
		return Settings{}, ErrNotFound
	}
	return *r.saved, nil
}

func (r *repoMock) SaveSettings(_ context.Context, s Settings, _ ...core.DBExecutor) (Settings, error) {
	r.saved = &s
	return s, nil
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	conf := testutil.Config()
	conf.Auth.SettingsCacheTTL = time.Minute

	repo := &repoMock{}
	svc := NewService(repo, conf)
	now := time.Now()
	svc.now = func() time.Time { return now }

	s, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults().SiteTitle, s.SiteTitle)
	require.NotNil(t, repo.saved, "defaults are stored on first read")

	_, _ = svc.Get(ctx)
	assert.Equal(t, 1, repo.reads, "served from cache")

	now = now.Add(time.Minute)
	_, _ = svc.Get(ctx)
	assert.Equal(t, 2, repo.reads, "cache expired")

	// writes made elsewhere are only seen once the cache expires
	repo.saved.MaintenanceMode = true
	assert.False(t, svc.MaintenanceMode(ctx))
	svc.Invalidate()
	assert.True(t, svc.MaintenanceMode(ctx))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	validate, _ := testutil.Validator()
	repo := &repoMock{}
	svc := NewService(repo, testutil.Config())

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	title := "Quiz Night"
	off := false
	s, err := svc.Update(ctx, validate, UpdateSettings{SiteTitle: &title, AllowRegistration: &off})
	require.NoError(t, err)
	assert.Equal(t, title, s.SiteTitle)
	assert.False(t, s.AllowRegistration)
	assert.Equal(t, Defaults().SiteDescription, s.SiteDescription)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, title, got.SiteTitle, "update invalidates the cache")

	empty := ""
	_, err = svc.Update(ctx, validate, UpdateSettings{SiteTitle: &empty})
	assert.Error(t, err)
}

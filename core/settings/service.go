package settings

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/atomcode/atomq/core"
)

var ErrNotFound = errors.New("settings not found")

type (
	Repository interface {
		GetSettings(ctx context.Context, exec ...core.DBExecutor) (Settings, error)
		SaveSettings(ctx context.Context, s Settings, exec ...core.DBExecutor) (Settings, error)
	}

	// Service reads settings through a TTL cache.
	Service struct {
		repo Repository
		ttl  time.Duration
		now  func() time.Time

		mu       sync.Mutex
		cached   *Settings
		cachedAt time.Time
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, ttl: conf.Auth.SettingsCacheTTL, now: time.Now}
}

// Get returns the current settings, creating the defaults row when missing.
func (svc *Service) Get(ctx context.Context) (Settings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.cached != nil && svc.now().Sub(svc.cachedAt) < svc.ttl {
		return *svc.cached, nil
	}

	s, err := svc.repo.GetSettings(ctx)
	if errors.Cause(err) == ErrNotFound {
		s, err = svc.repo.SaveSettings(ctx, Defaults())
	}
	if err != nil {
		return Settings{}, errors.Wrap(err, "loading settings")
	}
	svc.cached = &s
	svc.cachedAt = svc.now()
	return s, nil
}

func (svc *Service) Update(ctx context.Context, validate *validator.Validate, us UpdateSettings) (Settings, error) {
	if err := validate.Struct(us); err != nil {
		return Settings{}, err
	}
	curr, err := svc.Get(ctx)
	if err != nil {
		return Settings{}, err
	}

	s, err := svc.repo.SaveSettings(ctx, us.apply(curr))
	if err != nil {
		return Settings{}, errors.Wrap(err, "saving settings")
	}
	svc.Invalidate()
	return s, nil
}

// MaintenanceMode reports the cached maintenance flag. Lookup failures count as "off".
func (svc *Service) MaintenanceMode(ctx context.Context) bool {
	s, err := svc.Get(ctx)
	if err != nil {
		return false
	}
	return s.MaintenanceMode
}

func (svc *Service) Invalidate() {
	svc.mu.Lock()
	svc.cached = nil
	svc.mu.Unlock()
}

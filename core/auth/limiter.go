package auth

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// Attempts is the login attempt record kept per email.
type Attempts struct {
	Count       int       `json:"count"`
	LastAttempt time.Time `json:"lastAttempt"`
	LockedUntil time.Time `json:"lockedUntil,omitempty"`
}

func (a Attempts) lockedAt(now time.Time) bool {
	return !a.LockedUntil.IsZero() && now.Before(a.LockedUntil)
}

// AttemptStore persists Attempts. Update must apply fn atomically for a given key.
type AttemptStore interface {
	Get(ctx context.Context, key string) (Attempts, bool, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn func(curr Attempts, found bool) Attempts) (Attempts, error)
	Delete(ctx context.Context, key string) error
}

// LockedError is returned while an email is locked out.
type LockedError struct {
	Until     time.Time
	remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("Too many login attempts. Account locked for %d minutes.", e.RemainingMinutes())
}

// RemainingMinutes rounds the remaining lockout up to whole minutes.
func (e *LockedError) RemainingMinutes() int {
	return int(math.Ceil(e.remaining.Minutes()))
}

type LimiterOptions struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Limiter counts failed logins per email: MaxAttempts failures, each within Window of the
// previous one, lock the email for Lockout.
type Limiter struct {
	store AttemptStore
	opts  LimiterOptions
	now   func() time.Time
}

func NewLimiter(store AttemptStore, opts LimiterOptions) *Limiter {
	return &Limiter{store: store, opts: opts, now: time.Now}
}

func limiterKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) ttl() time.Duration {
	if l.opts.Lockout > l.opts.Window {
		return l.opts.Lockout
	}
	return l.opts.Window
}

func (l *Limiter) lockedError(a Attempts, now time.Time) *LockedError {
	return &LockedError{Until: a.LockedUntil, remaining: a.LockedUntil.Sub(now)}
}

// Check returns a *LockedError when email is currently locked out.
func (l *Limiter) Check(ctx context.Context, email string) error {
	a, found, err := l.store.Get(ctx, limiterKey(email))
	if err != nil {
		return err
	}
	now := l.now()
	if found && a.lockedAt(now) {
		return l.lockedError(a, now)
	}
	return nil
}

// Fail records a failed attempt. It returns a *LockedError when this failure triggers the lockout.
func (l *Limiter) Fail(ctx context.Context, email string) error {
	now := l.now()
	a, err := l.store.Update(ctx, limiterKey(email), l.ttl(), func(curr Attempts, found bool) Attempts {
		if found && curr.lockedAt(now) {
			return curr
		}
		if !found || now.Sub(curr.LastAttempt) > l.opts.Window {
			curr = Attempts{}
		}
		curr.Count++
		curr.LastAttempt = now
		curr.LockedUntil = time.Time{}
		if curr.Count >= l.opts.MaxAttempts {
			curr.LockedUntil = now.Add(l.opts.Lockout)
		}
		return curr
	})
	if err != nil {
		return err
	}
	if a.lockedAt(now) {
		return l.lockedError(a, now)
	}
	return nil
}

// Reset forgets every attempt recorded for email.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	return l.store.Delete(ctx, limiterKey(email))
}

// MemoryStore keeps attempts in process memory. State is lost on restart and is not shared
// between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	attempts  Attempts
	expiresAt time.Time
}

var _ AttemptStore = (*MemoryStore)(nil)

const memorySweepThreshold = 1024

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Attempts, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.get(key)
	return a, ok, nil
}

func (s *MemoryStore) get(key string) (Attempts, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Attempts{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return Attempts{}, false
	}
	return e.attempts, true
}

func (s *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn func(Attempts, bool) Attempts) (Attempts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > memorySweepThreshold {
		s.sweep()
	}
	curr, found := s.get(key)
	next := fn(curr, found)
	s.entries[key] = memoryEntry{attempts: next, expiresAt: s.now().Add(ttl)}
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sweep() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

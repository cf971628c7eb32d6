// Package auth is the local session shim: a mock login that synthesizes a
// user, persists it and restores it on the next start.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/storage"
)

// ErrLoginInProgress is returned when Login is called while another login
// has not finished
var ErrLoginInProgress = errors.New("auth: login already in progress")

// State is the phase of the session
type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Service owns the current user and keeps the persisted session in step
type Service struct {
	store    storage.Store
	provider Provider
	logger   *logger.Logger

	mu    sync.RWMutex
	state State
	user  *models.User
}

// NewService creates a logged-out service. Call Restore to pick up a
// persisted session.
func NewService(store storage.Store, provider Provider, log *logger.Logger) *Service {
	if provider == nil {
		provider = NewMockProvider()
	}
	if log == nil {
		log = logger.ForComponent("auth")
	}
	return &Service{
		store:    store,
		provider: provider,
		logger:   log,
	}
}

// Login validates creds, asks the provider for an identity and persists it.
// A validation failure returns *ValidationError and leaves the previous
// session untouched. A failure to persist is logged; the session still
// holds in memory.
func (s *Service) Login(ctx context.Context, creds Credentials) (*models.User, error) {
	s.mu.Lock()
	if s.state == StateLoggingIn {
		s.mu.Unlock()
		return nil, ErrLoginInProgress
	}
	s.state = StateLoggingIn
	s.mu.Unlock()

	log := logger.Ctx(ctx, s.logger)

	if err := creds.Validate(); err != nil {
		s.settle()
		log.Debug("Login rejected by validation", map[string]interface{}{
			"sign_up": creds.SignUp,
			"reason":  err.Error(),
		})
		return nil, err
	}

	user, err := s.provider.Authenticate(ctx, creds)
	if err != nil {
		s.settle()
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.state = StateLoggedIn
	s.mu.Unlock()

	if err := storage.SaveJSON(ctx, s.store, storage.KeyUser, user); err != nil {
		log.Error("Failed to persist session", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}

	log.Info("User logged in", map[string]interface{}{
		"user_id":  user.ID,
		"provider": s.provider.Name(),
		"sign_up":  creds.SignUp,
	})

	u := *user
	return &u, nil
}

// settle leaves LoggingIn for whichever state the current user implies
func (s *Service) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.state = StateLoggedIn
	} else {
		s.state = StateLoggedOut
	}
}

// Logout clears the session and removes the persisted record. Calling it
// while logged out is harmless.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	had := s.user != nil
	s.user = nil
	s.state = StateLoggedOut
	s.mu.Unlock()

	if err := s.store.Delete(ctx, storage.KeyUser); err != nil {
		s.logger.Error("Failed to remove persisted session", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to remove session: %w", err)
	}

	if had {
		logger.Ctx(ctx, s.logger).Info("User logged out", nil)
	}
	return nil
}

// Restore loads the persisted session. An unreadable record counts as no
// session and is deleted; nothing is reported to the caller.
func (s *Service) Restore(ctx context.Context) {
	var user models.User
	err := storage.LoadJSON(ctx, s.store, storage.KeyUser, &user)

	var parseErr *storage.ParseError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return
	case errors.As(err, &parseErr), err == nil && !user.Valid():
		reason := "record is missing id or email"
		if err != nil {
			reason = err.Error()
		}
		s.logger.Warn("Discarding unreadable session", map[string]interface{}{
			"error": reason,
		})
		if delErr := s.store.Delete(ctx, storage.KeyUser); delErr != nil {
			s.logger.Warn("Failed to remove unreadable session", map[string]interface{}{
				"error": delErr.Error(),
			})
		}
		return
	case err != nil:
		s.logger.Warn("Failed to read session", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.user = &user
	s.state = StateLoggedIn
	s.mu.Unlock()

	s.logger.Debug("Session restored", map[string]interface{}{
		"user_id": user.ID,
	})
}

// State returns the current phase
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether a user is present
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns a copy of the current user, or nil
func (s *Service) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// FirstName is the greeting name of the current user, or ""
func (s *Service) FirstName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.FirstName()
}

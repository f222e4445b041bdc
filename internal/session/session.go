// Package session holds the identity of the logged-in user.
//
// A Store is the single owner of the current user. Bootstrap, Login and
// Logout are the only operations that change it; everything else reads.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"

	"taskhub/internal/logging"
	"taskhub/internal/service"
)

// Store tracks the current user for one process.
type Store struct {
	svc service.Service
	log logrus.FieldLogger

	mu   sync.RWMutex
	user *service.User
}

// New creates an empty Store backed by svc.
func New(svc service.Service, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{svc: svc, log: logger}
}

// User returns the current user, if any.
func (s *Store) User() (service.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return service.User{}, false
	}
	return *s.user, true
}

// LoggedIn reports whether a user is present.
func (s *Store) LoggedIn() bool {
	_, ok := s.User()
	return ok
}

func (s *Store) set(u *service.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Bootstrap probes the backend for the current identity. Any failure
// leaves the store without a user; it is logged, never returned.
func (s *Store) Bootstrap(ctx context.Context) (service.User, bool) {
	user, err := s.svc.Me(ctx)
	if err != nil {
		s.log.WithError(err).Debug("no active session")
		s.set(nil)
		return service.User{}, false
	}
	s.set(&user)
	return user, true
}

// Login validates the credentials locally, submits them and then fetches
// the identity. On any failure the store is left without a user.
func (s *Store) Login(ctx context.Context, email, password string) (service.User, error) {
	email = strings.TrimSpace(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return service.User{}, &service.ValidationError{Field: "email", Reason: "not a valid address"}
	}
	if password == "" {
		return service.User{}, &service.ValidationError{Field: "password", Reason: "required"}
	}

	if err := s.svc.Login(ctx, email, password); err != nil {
		s.set(nil)
		return service.User{}, err
	}
	user, err := s.svc.Me(ctx)
	if err != nil {
		s.set(nil)
		return service.User{}, err
	}
	s.set(&user)
	s.log.WithField("user", user.Email).Debug("logged in")
	return user, nil
}

// Logout ends the session. The user is cleared only when the backend
// confirms; on failure the store is unchanged and the error is returned.
// Logging out without a server session is not an error.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.svc.Logout(ctx); err != nil {
		if !errors.Is(err, service.ErrUnauthenticated) {
			return err
		}
	}
	s.set(nil)
	return nil
}

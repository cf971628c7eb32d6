package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drallgood/bookfinder/internal/models"
)

// Credentials is what the login or sign-up form submits
type Credentials struct {
	Email           string
	Password        string
	Name            string
	ConfirmPassword string
	SignUp          bool
}

// Validate applies the form rules. Sign up additionally requires a name,
// a matching confirmation and a minimum password length.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return &ValidationError{Field: "email", Message: MsgMissingFields}
	}
	if !c.SignUp {
		return nil
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: MsgNameRequired}
	}
	if c.Password != c.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: MsgPasswordMismatch}
	}
	if len(c.Password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: MsgPasswordTooShort}
	}
	return nil
}

// Provider turns validated credentials into a user identity
type Provider interface {
	// Name returns the provider name
	Name() string

	// Authenticate returns the identity for creds
	Authenticate(ctx context.Context, creds Credentials) (*models.User, error)
}

// DefaultName is used when the form carries no name
const DefaultName = "Alex Johnson"

// DefaultLoginDelay simulates a round trip to an identity service
const DefaultLoginDelay = time.Second

// MockProvider synthesizes an identity for any well-formed credentials.
//
// It verifies nothing. It exists so the rest of the application can be
// exercised without an identity service, and must be replaced by a real
// provider before any deployment that needs trust guarantees.
type MockProvider struct {
	Delay       time.Duration
	DefaultName string
	// Now and NewID are overridable for tests
	Now   func() time.Time
	NewID func() string
}

// NewMockProvider returns a MockProvider with the standard delay and name
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Delay:       DefaultLoginDelay,
		DefaultName: DefaultName,
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Authenticate waits for the configured delay, then returns a fresh user.
// The password is not looked at.
func (p *MockProvider) Authenticate(ctx context.Context, creds Credentials) (*models.User, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	name := strings.TrimSpace(creds.Name)
	if name == "" {
		name = p.DefaultName
	}
	if name == "" {
		name = DefaultName
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	newID := uuid.NewString
	if p.NewID != nil {
		newID = p.NewID
	}

	return &models.User{
		ID:       newID(),
		Name:     name,
		Email:    strings.TrimSpace(creds.Email),
		JoinDate: now().UTC().Format(time.RFC3339),
	}, nil
}

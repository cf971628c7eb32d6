package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/storage"
)

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func testProvider() *MockProvider {
	return &MockProvider{
		DefaultName: DefaultName,
		Now:         func() time.Time { return fixedNow },
		NewID:       func() string { return "user-1" },
	}
}

func newTestService(store storage.Store) *Service {
	return NewService(store, testProvider(), logger.Nop())
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantMsg string
	}{
		{name: "login ok", creds: Credentials{Email: "a@b.c", Password: "x"}},
		{name: "missing email", creds: Credentials{Password: "secret"}, wantMsg: MsgMissingFields},
		{name: "blank email", creds: Credentials{Email: "  ", Password: "secret"}, wantMsg: MsgMissingFields},
		{name: "missing password", creds: Credentials{Email: "a@b.c"}, wantMsg: MsgMissingFields},
		{name: "login ignores short password", creds: Credentials{Email: "a@b.c", Password: "abc"}},
		{
			name:  "sign up ok",
			creds: Credentials{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret1", Name: "Ann Lee", SignUp: true},
		},
		{
			name:    "sign up needs name",
			creds:   Credentials{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret1", SignUp: true},
			wantMsg: MsgNameRequired,
		},
		{
			name:    "sign up mismatch",
			creds:   Credentials{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret2", Name: "Ann", SignUp: true},
			wantMsg: MsgPasswordMismatch,
		},
		{
			name:    "sign up too short",
			creds:   Credentials{Email: "a@b.c", Password: "abc", ConfirmPassword: "abc", Name: "Ann", SignUp: true},
			wantMsg: MsgPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantMsg, ve.Message)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestLogin_ThenLogout(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	s := newTestService(store)

	assert.Equal(t, StateLoggedOut, s.State())
	assert.False(t, s.IsAuthenticated())

	user, err := s.Login(ctx, Credentials{Email: "reader@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, DefaultName, user.Name)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.Equal(t, "2025-01-15T08:30:00Z", user.JoinDate)

	assert.Equal(t, StateLoggedIn, s.State())
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "Alex", s.FirstName())

	data, err := store.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pw", "password is never stored")
	var stored models.User
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, *user, stored)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, StateLoggedOut, s.State())
	assert.Nil(t, s.User())
	assert.Equal(t, "", s.FirstName())
	_, err = store.Get(ctx, storage.KeyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, s.Logout(ctx), "logout is idempotent")
}

func TestLogin_SignUpUsesName(t *testing.T) {
	s := newTestService(storage.NewMemory())

	user, err := s.Login(context.Background(), Credentials{
		Email:           "ann@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "  Ann Lee ",
		SignUp:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", user.Name)
	assert.Equal(t, "Ann", s.FirstName())
}

func TestLogin_ValidationFailure(t *testing.T) {
	store := storage.NewMemory()
	s := newTestService(store)

	_, err := s.Login(context.Background(), Credentials{Email: "a@b.c"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, StateLoggedOut, s.State())

	_, err = store.Get(context.Background(), storage.KeyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogin_ValidationFailureKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	s := newTestService(storage.NewMemory())

	_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	_, err = s.Login(ctx, Credentials{Email: "", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, StateLoggedIn, s.State())
	assert.Equal(t, "a@b.c", s.User().Email)
}

func TestLogin_Cancelled(t *testing.T) {
	p := testProvider()
	p.Delay = time.Hour
	s := NewService(storage.NewMemory(), p, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "pw"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsValidationError(err))
	assert.Equal(t, StateLoggedOut, s.State())
}

func TestLogin_InProgress(t *testing.T) {
	p := testProvider()
	p.Delay = 200 * time.Millisecond
	s := NewService(storage.NewMemory(), p, logger.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State() == StateLoggingIn }, time.Second, time.Millisecond)
	_, err := s.Login(context.Background(), Credentials{Email: "x@y.z", Password: "pw"})
	assert.ErrorIs(t, err, ErrLoginInProgress)

	require.NoError(t, <-done)
	assert.Equal(t, "a@b.c", s.User().Email)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		data       string
		wantUser   bool
		wantRecord bool
	}{
		{name: "absent"},
		{
			name:       "valid",
			data:       `{"id":"u1","name":"Sam Doe","email":"sam@example.com","joinDate":"2024-01-01T00:00:00Z"}`,
			wantUser:   true,
			wantRecord: true,
		},
		{name: "corrupt", data: `{"id":`},
		{name: "wrong type", data: `[1,2,3]`},
		{name: "missing fields", data: `{"name":"Nobody"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemory()
			if tt.data != "" {
				require.NoError(t, store.Put(ctx, storage.KeyUser, []byte(tt.data)))
			}

			s := newTestService(store)
			s.Restore(ctx)

			assert.Equal(t, tt.wantUser, s.IsAuthenticated())
			_, err := store.Get(ctx, storage.KeyUser)
			if tt.wantRecord {
				assert.NoError(t, err)
				assert.Equal(t, StateLoggedIn, s.State())
				assert.Equal(t, "Sam", s.FirstName())
			} else {
				assert.ErrorIs(t, err, storage.ErrNotFound, "unreadable sessions are removed")
				assert.Equal(t, StateLoggedOut, s.State())
			}
		})
	}
}

func TestMockProvider_Defaults(t *testing.T) {
	p := NewMockProvider()
	assert.Equal(t, DefaultLoginDelay, p.Delay)
	assert.Equal(t, "mock", p.Name())

	p.Delay = 0
	a, err := p.Authenticate(context.Background(), Credentials{Email: "a@b.c"})
	require.NoError(t, err)
	b, err := p.Authenticate(context.Background(), Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "every login gets a fresh id")
	_, err = time.Parse(time.RFC3339, a.JoinDate)
	assert.NoError(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "logged_out", StateLoggedOut.String())
	assert.Equal(t, "logging_in", StateLoggingIn.String())
	assert.Equal(t, "logged_in", StateLoggedIn.String())
	assert.Equal(t, "unknown", State(9).String())
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/opsdesk/opsdesk/pkg/errors"
)

func TestCreateUserHashesPassword(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Create(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "Alice@Example.Test",
		Password: "correct horse battery",
		IsStaff:  true,
	})
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery", user.Password)
	require.Equal(t, "alice@example.test", user.Email)
	require.True(t, user.IsActive)
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.createStaff(t, "alice")

	_, err := f.users.Create(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "other@example.test",
		Password: "correct horse battery",
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.createStaff(t, "alice")

	user, err := f.users.Authenticate(context.Background(), "alice", "correct horse battery")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)

	// Email works as the login too.
	_, err = f.users.Authenticate(context.Background(), "alice@example.test", "correct horse battery")
	require.NoError(t, err)

	_, err = f.users.Authenticate(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.users.Authenticate(context.Background(), "nobody", "correct horse battery")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	user := f.createStaff(t, "alice")

	_, err := f.users.SetActive(context.Background(), user.ID, false)
	require.NoError(t, err)

	_, err = f.users.Authenticate(context.Background(), "alice", "correct horse battery")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestListStaffExcludesInactiveAndNonStaff(t *testing.T) {
	f := newFixture(t)
	f.createStaff(t, "alice")
	inactive := f.createStaff(t, "bob")
	_, err := f.users.SetActive(context.Background(), inactive.ID, false)
	require.NoError(t, err)
	_, err = f.users.Create(context.Background(), CreateUserInput{
		Username: "visitor",
		Email:    "visitor@example.test",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	staff, err := f.users.ListStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 1)
	require.Equal(t, "alice", staff[0].Username)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.users.EnsureAdmin(context.Background(), "admin", "admin@example.test", "bootstrap-secret")
	require.NoError(t, err)
	require.True(t, first.IsStaff)

	second, err := f.users.EnsureAdmin(context.Background(), "admin", "other@example.test", "different")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

package service

import (
	"context"
	"testing"

	"hooka/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserSaveSkipsIncompleteProfiles(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &model.UserProfile{ID: "u1"}))
	require.NoError(t, svc.Save(ctx, &model.UserProfile{Name: "Ann"}))
	_, err := svc.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, svc.Save(ctx, &model.UserProfile{ID: "u1", Name: "Ann"}))
	u, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
}

func TestUserToggles(t *testing.T) {
	repo := newFakeUserRepo(model.UserProfile{ID: "u1", Name: "Ann"})
	svc := NewUserService(repo, zerolog.Nop())
	ctx := context.Background()

	paid, err := svc.TogglePaid(ctx, "u1", nil)
	require.NoError(t, err)
	assert.True(t, paid)
	paid, err = svc.TogglePaid(ctx, "u1", nil)
	require.NoError(t, err)
	assert.False(t, paid)

	on := true
	unlimited, err := svc.ToggleUnlimited(ctx, "u1", &on)
	require.NoError(t, err)
	assert.True(t, unlimited)

	_, err = svc.ToggleUnlimited(ctx, "ghost", nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserIncrementGeneration(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), zerolog.Nop())
	for want := 1; want <= 3; want++ {
		n, err := svc.IncrementGeneration(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

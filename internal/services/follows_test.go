package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idees/internal/testutil"
)

func TestFollows(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	fan := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain generics")
	svc := NewFollows(conn, nop)
	ctx := context.Background()

	st, err := svc.Status(ctx, nil, s.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowStatus{}, st)

	require.NoError(t, svc.Follow(ctx, fan, s.ID))
	require.NoError(t, svc.Follow(ctx, fan, s.ID))

	st, err = svc.Status(ctx, fan, s.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowStatus{IsFollowing: true, FollowerCount: 1}, st)

	st, err = svc.Status(ctx, author, s.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowStatus{IsFollowing: false, FollowerCount: 1}, st)

	users, err := svc.Followers(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, fan.ID, users[0].ID)

	require.NoError(t, svc.Unfollow(ctx, fan, s.ID))
	require.NoError(t, svc.Unfollow(ctx, fan, s.ID))
	st, err = svc.Status(ctx, fan, s.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowStatus{}, st)

	assert.ErrorIs(t, svc.Follow(ctx, fan, "missing"), ErrSuggestionNotFound)
	assert.ErrorIs(t, svc.Follow(ctx, nil, s.ID), ErrUnauthenticated)
}

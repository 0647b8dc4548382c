package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"idees/internal/metrics"
	"idees/internal/models"
	"idees/internal/testutil"
)

func voteRows(t *testing.T, conn *gorm.DB, voterID, suggestionID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Vote{}).
		Where("voter_id = ? AND suggestion_id = ?", voterID, suggestionID).Count(&n).Error)
	return n
}

func TestToggleAlternates(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain generics")
	pages := &recordingPages{}
	rec := &recordingVotes{}
	votes := NewVotes(conn, nop, pages, rec)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		res := votes.Toggle(ctx, s.ID, "anon_1_abc", nil)
		require.True(t, res.Success)
		require.Empty(t, res.Error)
		wantVoted := i%2 == 0
		assert.Equal(t, wantVoted, res.HasVoted, "toggle %d", i+1)

		want := int64(0)
		if wantVoted {
			want = 1
		}
		assert.Equal(t, want, voteRows(t, conn, "anon_1_abc", s.ID))
	}

	assert.Equal(t, 3, rec.results[metrics.VoteAdded])
	assert.Equal(t, 3, rec.results[metrics.VoteRemoved])
	assert.Contains(t, pages.invalidated(), "/")
	assert.Contains(t, pages.invalidated(), "/suggestions/"+s.ID)
}

func TestToggleStoresUserID(t *testing.T) {
	conn := testutil.NewDB(t)
	u := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, u.ID, "Explain channels")
	votes := NewVotes(conn, nop, nil, nil)

	res := votes.Toggle(context.Background(), s.ID, u.ID, &u.ID)
	require.True(t, res.HasVoted)

	var v models.Vote
	require.NoError(t, conn.Take(&v, "suggestion_id = ?", s.ID).Error)
	require.NotNil(t, v.UserID)
	assert.Equal(t, u.ID, *v.UserID)
	assert.Equal(t, u.ID, v.VoterID)
}

func TestToggleUnknownSuggestion(t *testing.T) {
	conn := testutil.NewDB(t)
	rec := &recordingVotes{}
	votes := NewVotes(conn, nop, nil, rec)

	res := votes.Toggle(context.Background(), "missing", "anon_1_abc", nil)
	assert.False(t, res.Success)
	assert.False(t, res.HasVoted)
	assert.Equal(t, "suggestion not found", res.Error)

	res = votes.Toggle(context.Background(), "", "anon_1_abc", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "suggestion not found", res.Error)
}

func TestToggleStorageFailure(t *testing.T) {
	conn := testutil.NewDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	votes := NewVotes(conn, nop, nil, nil)
	res := votes.Toggle(context.Background(), "s1", "anon_1_abc", nil)
	assert.Equal(t, VoteResult{Success: false, HasVoted: false, Error: "Failed to update vote"}, res)
}

func TestToggleConcurrentSameVoter(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain mutexes")
	votes := NewVotes(conn, nop, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := votes.Toggle(context.Background(), s.ID, "anon_9_race", nil)
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, voteRows(t, conn, "anon_9_race", s.ID), int64(1))
}

func TestDuplicateInsertCountsAsVoted(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain indexes")

	err := conn.Create(&models.Vote{SuggestionID: s.ID, VoterID: "anon_2_dup"}).Error
	require.NoError(t, err)
	err = conn.Create(&models.Vote{SuggestionID: s.ID, VoterID: "anon_2_dup"}).Error
	require.Error(t, err)
	assert.True(t, isDuplicate(err))
}

// raceOnce returns a callback that runs interleave on a fresh session the
// first time a statement touches the votes table.
func raceOnce(conn *gorm.DB, interleave func(*gorm.DB)) func(*gorm.DB) {
	fired := false
	return func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "votes" {
			return
		}
		fired = true
		interleave(conn.Session(&gorm.Session{NewDB: true}))
	}
}

func TestToggleLosesInsertRace(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain unique indexes")
	pages := &recordingPages{}
	rec := &recordingVotes{}
	votes := NewVotes(conn.Session(&gorm.Session{SkipDefaultTransaction: true}), nop, pages, rec)

	// a concurrent toggle by the same voter commits between the lookup and
	// the insert
	err := conn.Callback().Create().Before("gorm:create").Register("test:insert_race", raceOnce(conn, func(other *gorm.DB) {
		require.NoError(t, other.Create(&models.Vote{SuggestionID: s.ID, VoterID: "anon_3_race"}).Error)
	}))
	require.NoError(t, err)

	res := votes.Toggle(context.Background(), s.ID, "anon_3_race", nil)
	assert.Equal(t, VoteResult{Success: true, HasVoted: true}, res)
	assert.Equal(t, int64(1), voteRows(t, conn, "anon_3_race", s.ID))
	assert.Equal(t, 1, rec.results[metrics.VoteAdded])
	assert.Contains(t, pages.invalidated(), "/suggestions/"+s.ID)
}

func TestToggleLosesDeleteRace(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain deletes")
	require.NoError(t, conn.Create(&models.Vote{SuggestionID: s.ID, VoterID: "anon_4_race"}).Error)
	rec := &recordingVotes{}
	votes := NewVotes(conn.Session(&gorm.Session{SkipDefaultTransaction: true}), nop, nil, rec)

	// the row disappears between the lookup and the delete, which then
	// removes nothing
	err := conn.Callback().Delete().Before("gorm:delete").Register("test:delete_race", raceOnce(conn, func(other *gorm.DB) {
		require.NoError(t, other.Where("voter_id = ? AND suggestion_id = ?", "anon_4_race", s.ID).Delete(&models.Vote{}).Error)
	}))
	require.NoError(t, err)

	res := votes.Toggle(context.Background(), s.ID, "anon_4_race", nil)
	assert.Equal(t, VoteResult{Success: true, HasVoted: false}, res)
	assert.Equal(t, int64(0), voteRows(t, conn, "anon_4_race", s.ID))
	assert.Equal(t, 1, rec.results[metrics.VoteRemoved])
}

// Anonymous visitor V1 votes, the suggestion shows one vote; V1 votes
// again and it is back to zero.
func TestAnonymousVisitorScenario(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, author.ID, "Explain context")
	votes := NewVotes(conn, nop, nil, nil)
	ctx := context.Background()

	assert.Equal(t, VoteResult{Success: true, HasVoted: true}, votes.Toggle(ctx, s.ID, "anon_1_v1", nil))
	n, err := votes.Count(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, votes.VotedSet(ctx, "anon_1_v1", []string{s.ID})[s.ID])

	assert.Equal(t, VoteResult{Success: true, HasVoted: false}, votes.Toggle(ctx, s.ID, "anon_1_v1", nil))
	n, err = votes.Count(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// A signed-in user and a different visitor vote independently.
func TestUserAndVisitorScenario(t *testing.T) {
	conn := testutil.NewDB(t)
	u1 := testutil.CreateUser(t, conn)
	s := testutil.CreateSuggestion(t, conn, u1.ID, "Explain select")
	votes := NewVotes(conn, nop, nil, nil)
	ctx := context.Background()

	require.True(t, votes.Toggle(ctx, s.ID, u1.ID, &u1.ID).HasVoted)
	require.True(t, votes.Toggle(ctx, s.ID, "anon_5_v2", nil).HasVoted)

	n, err := votes.Count(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.False(t, votes.Toggle(ctx, s.ID, u1.ID, &u1.ID).HasVoted)
	n, err = votes.Count(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, votes.VotedSet(ctx, u1.ID, []string{s.ID})[s.ID])
	assert.True(t, votes.VotedSet(ctx, "anon_5_v2", []string{s.ID})[s.ID])
}

func TestCountsAndVotedSet(t *testing.T) {
	conn := testutil.NewDB(t)
	u := testutil.CreateUser(t, conn)
	a := testutil.CreateSuggestion(t, conn, u.ID, "Suggestion A")
	b := testutil.CreateSuggestion(t, conn, u.ID, "Suggestion B")
	c := testutil.CreateSuggestion(t, conn, u.ID, "Suggestion C")
	votes := NewVotes(conn, nop, nil, nil)
	ctx := context.Background()

	votes.Toggle(ctx, a.ID, "v1", nil)
	votes.Toggle(ctx, a.ID, "v2", nil)
	votes.Toggle(ctx, b.ID, "v1", nil)

	counts, err := votes.Counts(ctx, []string{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[a.ID])
	assert.Equal(t, int64(1), counts[b.ID])
	assert.Equal(t, int64(0), counts[c.ID])

	set := votes.VotedSet(ctx, "v1", []string{a.ID, b.ID, c.ID})
	assert.Equal(t, map[string]bool{a.ID: true, b.ID: true}, set)

	assert.Empty(t, votes.VotedSet(ctx, "", []string{a.ID}))
	assert.Empty(t, votes.VotedSet(ctx, "v1", nil))
}

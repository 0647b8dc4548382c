package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idees/internal/models"
	"idees/internal/testutil"
)

func TestCreateSuggestion(t *testing.T) {
	conn := testutil.NewDB(t)
	u := testutil.CreateUser(t, conn)
	tag := testutil.CreateTag(t, conn, "Go")
	pages := &recordingPages{}
	svc := NewSuggestions(conn, nop, pages)
	ctx := context.Background()

	sug, err := svc.Create(ctx, u, SuggestionInput{
		Title:       "  <b>Explain</b> generics  ",
		Description: "With examples",
		TagIDs:      []string{tag.ID, tag.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Explain generics", sug.Title)
	assert.Equal(t, models.StatusOpen, sug.Status)
	assert.Contains(t, pages.invalidated(), "/")

	got, err := svc.Get(ctx, sug.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "go", got.Tags[0].Slug)
	assert.Equal(t, u.Username, got.Author.Username)
	assert.Contains(t, got.DescriptionHTML, "With examples")
}

func TestCreateSuggestionValidation(t *testing.T) {
	conn := testutil.NewDB(t)
	u := testutil.CreateUser(t, conn)
	svc := NewSuggestions(conn, nop, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, u, SuggestionInput{Title: "abc", Description: strings.Repeat("x", DescriptionMax+1), TagIDs: []string{"nope"}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "description")
	assert.Contains(t, ve.Fields, "tags")

	_, err = svc.Create(ctx, u, SuggestionInput{Title: strings.Repeat("é", TitleMax)})
	assert.NoError(t, err)
	_, err = svc.Create(ctx, u, SuggestionInput{Title: strings.Repeat("é", TitleMax+1)})
	assert.ErrorAs(t, err, &ve)
}

func TestCreateSuggestionAccess(t *testing.T) {
	conn := testutil.NewDB(t)
	banned := testutil.CreateUser(t, conn, testutil.Banned())
	svc := NewSuggestions(conn, nop, nil)

	_, err := svc.Create(context.Background(), nil, SuggestionInput{Title: "Valid title"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Create(context.Background(), banned, SuggestionInput{Title: "Valid title"})
	assert.ErrorIs(t, err, ErrBanned)
}

func TestUpdateSuggestion(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	other := testutil.CreateUser(t, conn)
	admin := testutil.CreateUser(t, conn, testutil.Admin())
	tag := testutil.CreateTag(t, conn, "Databases")
	s := testutil.CreateSuggestion(t, conn, author.ID, "Original title")
	svc := NewSuggestions(conn, nop, nil)
	ctx := context.Background()

	title := "Updated title"
	err := svc.Update(ctx, other, s.ID, SuggestionUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	tags := []string{tag.ID}
	icon := "🐘"
	require.NoError(t, svc.Update(ctx, author, s.ID, SuggestionUpdate{Title: &title, Icon: &icon, TagIDs: &tags}))

	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", got.Title)
	require.NotNil(t, got.Icon)
	assert.Equal(t, "🐘", *got.Icon)
	require.Len(t, got.Tags, 1)

	empty := []string{}
	require.NoError(t, svc.Update(ctx, admin, s.ID, SuggestionUpdate{TagIDs: &empty}))
	got, err = svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	short := "no"
	var ve *ValidationError
	assert.ErrorAs(t, svc.Update(ctx, author, s.ID, SuggestionUpdate{Title: &short}), &ve)
	assert.ErrorIs(t, svc.Update(ctx, author, "missing", SuggestionUpdate{Title: &title}), ErrSuggestionNotFound)
}

func TestDeleteSuggestionCascades(t *testing.T) {
	conn := testutil.NewDB(t)
	author := testutil.CreateUser(t, conn)
	other := testutil.CreateUser(t, conn)
	tag := testutil.CreateTag(t, conn, "Tooling")
	svc := NewSuggestions(conn, nop, nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, author, SuggestionInput{Title: "Delete me please", TagIDs: []string{tag.ID}})
	require.NoError(t, err)
	NewVotes(conn, nop, nil, nil).Toggle(ctx, s.ID, "anon_1_x", nil)

	assert.ErrorIs(t, svc.Delete(ctx, other, s.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, author, s.ID))

	var votes, joins int64
	conn.Model(&models.Vote{}).Count(&votes)
	conn.Table("suggestion_tags").Count(&joins)
	assert.Zero(t, votes)
	assert.Zero(t, joins)

	_, err = svc.Get(ctx, s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListOptionsTruncatesSearchByRune(t *testing.T) {
	o := ListOptions{Search: "  " + strings.Repeat("é", 150) + strings.Repeat("日", 100) + "  "}
	o.normalize()
	assert.True(t, utf8.ValidString(o.Search))
	assert.Equal(t, maxSearch, utf8.RuneCountInString(o.Search))
	assert.Equal(t, strings.Repeat("é", 150)+strings.Repeat("日", 50), o.Search)

	o = ListOptions{Search: "short"}
	o.normalize()
	assert.Equal(t, "short", o.Search)
}

func TestListSuggestions(t *testing.T) {
	conn := testutil.NewDB(t)
	u := testutil.CreateUser(t, conn)
	tag := testutil.CreateTag(t, conn, "Concurrency")
	svc := NewSuggestions(conn, nop, nil)
	votes := NewVotes(conn, nop, nil, nil)
	ctx := context.Background()

	a := testutil.CreateSuggestion(t, conn, u.ID, "Alpha about channels")
	time.Sleep(5 * time.Millisecond)
	b := testutil.CreateSuggestion(t, conn, u.ID, "Beta about 100% coverage")
	time.Sleep(5 * time.Millisecond)
	c := testutil.CreateSuggestion(t, conn, u.ID, "Gamma about goroutines")
	require.NoError(t, conn.Model(c).Association("Tags").Append(tag))
	require.NoError(t, conn.Model(b).Update("status", models.StatusDone).Error)

	votes.Toggle(ctx, b.ID, "v1", nil)
	votes.Toggle(ctx, b.ID, "v2", nil)
	votes.Toggle(ctx, a.ID, "v1", nil)

	page, err := svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, ids(page.Items))
	assert.Equal(t, int64(2), page.Items[0].VoteCount)

	page, err = svc.List(ctx, ListOptions{Sort: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(page.Items))

	page, err = svc.List(ctx, ListOptions{Status: "open"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ids(page.Items))

	page, err = svc.List(ctx, ListOptions{Search: "GOROUTINES"})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids(page.Items))

	page, err = svc.List(ctx, ListOptions{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(page.Items))

	page, err = svc.List(ctx, ListOptions{TagID: tag.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids(page.Items))
	require.Len(t, page.Items[0].Tags, 1)

	page, err = svc.List(ctx, ListOptions{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, []string{c.ID}, ids(page.Items))

	page, err = svc.List(ctx, ListOptions{TagID: "none"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}

func ids(items []SuggestionView) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

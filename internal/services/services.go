// Package services holds the application actions. Each action validates its
// caller, touches storage through gorm and invalidates cached pages it has
// made stale.
package services

import (
	"idees/internal/cache"
	"idees/internal/models"
)

// Invalidator drops cached public payloads, by path or all at once.
type Invalidator interface {
	Invalidate(paths ...string)
	Purge()
}

// VoteRecorder counts vote toggle outcomes.
type VoteRecorder interface {
	VoteToggled(result string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(...string) {}
func (nopInvalidator) Purge()               {}

type nopRecorder struct{}

func (nopRecorder) VoteToggled(string) {}

// Author is the public face of a user attached to suggestions and comments.
type Author struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

func authorOf(u models.User) Author {
	return Author{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

func requireUser(u *models.User) error {
	if u == nil {
		return ErrUnauthenticated
	}
	return nil
}

// requirePoster allows signed-in users that are not banned.
func requirePoster(u *models.User) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if u.IsBanned {
		return ErrBanned
	}
	return nil
}

func requireAdmin(u *models.User) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if !u.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func suggestionPaths(id string) []string {
	return []string{cache.ListPath, cache.SuggestionPath(id)}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idees/internal/testutil"
)

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewAuth(testutil.NewDB(t), nop, nil)
	ctx := context.Background()

	u, err := svc.SignUp(ctx, SignUpInput{
		Email:    " Ada@Example.com ",
		Password: "correct horse",
		Confirm:  "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "ada", u.Username)
	assert.NotEqual(t, "correct horse", u.Password)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "12345678", Confirm: "12345678"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := svc.SignIn(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.SignIn(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	svc := NewAuth(testutil.NewDB(t), nop, nil)

	tests := []struct {
		name  string
		in    SignUpInput
		field string
	}{
		{"missing fields", SignUpInput{Email: "a@example.com"}, "_form"},
		{"bad email", SignUpInput{Email: "not-an-email", Password: "12345678", Confirm: "12345678"}, "email"},
		{"mismatch", SignUpInput{Email: "a@example.com", Password: "12345678", Confirm: "87654321"}, "confirm_password"},
		{"short password", SignUpInput{Email: "a@example.com", Password: "short", Confirm: "short"}, "password"},
		{"long password", SignUpInput{Email: "a@example.com", Password: strings.Repeat("p", 73), Confirm: strings.Repeat("p", 73)}, "password"},
		{"short username", SignUpInput{Email: "a@example.com", Username: "x", Password: "12345678", Confirm: "12345678"}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestSignInRequiresFields(t *testing.T) {
	svc := NewAuth(testutil.NewDB(t), nop, nil)
	_, err := svc.SignIn(context.Background(), "", "")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestUpdateProfile(t *testing.T) {
	conn := testutil.NewDB(t)
	pages := &recordingPages{}
	svc := NewAuth(conn, nop, pages)
	u := testutil.CreateUser(t, conn)
	ctx := context.Background()

	name := "  <b>Grace</b> "
	avatar := "https://example.com/a.png"
	got, err := svc.UpdateProfile(ctx, u, ProfileUpdate{Username: &name, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Username)
	require.NotNil(t, got.AvatarURL)
	assert.Equal(t, avatar, *got.AvatarURL)
	assert.Equal(t, 1, pages.purged)

	bad := "javascript:alert(1)"
	_, err = svc.UpdateProfile(ctx, u, ProfileUpdate{AvatarURL: &bad})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	assert.Equal(t, 1, pages.purged)

	_, err = svc.UpdateProfile(ctx, nil, ProfileUpdate{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSignUpDerivesUsernameWithinBounds(t *testing.T) {
	svc := NewAuth(testutil.NewDB(t), nop, nil)
	ctx := context.Background()

	tests := []struct {
		email string
		want  string
	}{
		{"m@example.com", "user_m"},
		{"jo@example.com", "jo"},
		{strings.Repeat("a", 60) + "@example.com", strings.Repeat("a", UsernameMax)},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			u, err := svc.SignUp(ctx, SignUpInput{Email: tt.email, Password: "12345678", Confirm: "12345678"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Username)
		})
	}
}

func TestChangePassword(t *testing.T) {
	svc := NewAuth(testutil.NewDB(t), nop, nil)
	ctx := context.Background()
	u, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "correct horse", Confirm: "correct horse"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    PasswordChange
		field string
	}{
		{"missing fields", PasswordChange{Current: "correct horse"}, "_form"},
		{"mismatch", PasswordChange{Current: "correct horse", New: "battery staple", Confirm: "battery stapler"}, "confirm_password"},
		{"short", PasswordChange{Current: "correct horse", New: "short", Confirm: "short"}, "new_password"},
		{"wrong current", PasswordChange{Current: "incorrect horse", New: "battery staple", Confirm: "battery staple"}, "current_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangePassword(ctx, u, tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}

	assert.ErrorIs(t, svc.ChangePassword(ctx, nil, PasswordChange{}), ErrUnauthenticated)

	require.NoError(t, svc.ChangePassword(ctx, u, PasswordChange{Current: "correct horse", New: "battery staple", Confirm: "battery staple"}))
	_, err = svc.SignIn(ctx, "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "ada@example.com", "battery staple")
	assert.NoError(t, err)
}

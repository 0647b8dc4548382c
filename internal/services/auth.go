package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/utils"
)

const (
	PasswordMin = 8
	// bcrypt ignores everything past 72 bytes
	PasswordMax = 72
	UsernameMin = 2
	UsernameMax = 50
)

type SignUpInput struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Confirm  string `json:"confirm_password" form:"confirm_password"`
}

type ProfileUpdate struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

type PasswordChange struct {
	Current string `json:"current_password" form:"current_password"`
	New     string `json:"new_password" form:"new_password"`
	Confirm string `json:"confirm_password" form:"confirm_password"`
}

type Auth struct {
	db    *gorm.DB
	log   logger.Logger
	pages Invalidator
}

// NewAuth builds the account service. Cached pages embed author names and
// avatars, so profile changes purge them through pages.
func NewAuth(db *gorm.DB, log logger.Logger, pages Invalidator) *Auth {
	if pages == nil {
		pages = nopInvalidator{}
	}
	return &Auth{db: db, log: log, pages: pages}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(name string) (string, error) {
	name = utils.PlainText(name)
	var ve ValidationError
	n := utf8.RuneCountInString(name)
	if n < UsernameMin || n > UsernameMax {
		ve.Add("username", "Username must be between 2 and 50 characters")
	}
	return name, ve.Err()
}

// usernameFromEmail derives a display name from the local part of an
// address, padded or cut so it always fits the username bounds.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := []rune(utils.PlainText(local))
	if len(name) < UsernameMin {
		name = append([]rune("user_"), name...)
	}
	if len(name) > UsernameMax {
		name = name[:UsernameMax]
	}
	return string(name)
}

func validatePassword(ve *ValidationError, field, password string) {
	if len(password) < PasswordMin {
		ve.Add(field, "Password must be at least 8 characters")
	} else if len(password) > PasswordMax {
		ve.Add(field, "Password must be at most 72 bytes")
	}
}

// SignUp creates an account. The username defaults to the local part of
// the email address.
func (s *Auth) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	var ve ValidationError

	if email == "" || in.Password == "" || in.Confirm == "" {
		ve.Add("_form", "All fields are required")
		return nil, ve.Err()
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		ve.Add("email", "Invalid email address")
	}
	if in.Password != in.Confirm {
		ve.Add("confirm_password", "Passwords do not match")
	}
	validatePassword(&ve, "password", in.Password)

	username := in.Username
	if strings.TrimSpace(username) == "" {
		username = usernameFromEmail(email)
	}
	username, err := validateUsername(username)
	if err != nil {
		var uv *ValidationError
		errors.As(err, &uv)
		for k, msgs := range uv.Fields {
			for _, m := range msgs {
				ve.Add(k, m)
			}
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}
	user := models.User{Email: email, Username: username, Password: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, internal("sign up", err)
	}
	s.log.Info("user signed up", logger.String("user_id", user.ID))
	return &user, nil
}

// SignIn checks credentials. Banned users may sign in; they just cannot post.
func (s *Auth) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		var ve ValidationError
		ve.Add("_form", "Email and password are required")
		return nil, ve.Err()
	}
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internal("sign in", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// UserByID loads the session user. A missing user is reported as
// ErrUserNotFound so stale sessions can be cleared.
func (s *Auth) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load user", err, ErrUserNotFound)
	}
	return &user, nil
}

func (s *Auth) UpdateProfile(ctx context.Context, user *models.User, in ProfileUpdate) (*models.User, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Username != nil {
		name, err := validateUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		updates["username"] = name
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar != "" && utils.SanitizeURL(avatar) == "" {
			var ve ValidationError
			ve.Add("avatar_url", "Invalid URL")
			return nil, ve.Err()
		}
		updates["avatar_url"] = strPtr(utils.SanitizeURL(avatar))
	}
	if len(updates) == 0 {
		return user, nil
	}
	q := s.db.WithContext(ctx)
	if err := q.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, internal("update profile", err)
	}
	s.pages.Purge()
	return s.UserByID(ctx, user.ID)
}

// ChangePassword replaces the password of user after checking the current
// one against the stored hash.
func (s *Auth) ChangePassword(ctx context.Context, user *models.User, in PasswordChange) error {
	if err := requireUser(user); err != nil {
		return err
	}
	var ve ValidationError
	if in.Current == "" || in.New == "" || in.Confirm == "" {
		ve.Add("_form", "All fields are required")
		return ve.Err()
	}
	if in.New != in.Confirm {
		ve.Add("confirm_password", "Passwords do not match")
	}
	validatePassword(&ve, "new_password", in.New)
	if err := ve.Err(); err != nil {
		return err
	}

	q := s.db.WithContext(ctx)
	var stored models.User
	if err := q.Select("id", "password").Take(&stored, "id = ?", user.ID).Error; err != nil {
		return notFoundOr("change password", err, ErrUserNotFound)
	}
	if !utils.CheckPasswordHash(in.Current, stored.Password) {
		ve.Add("current_password", "Current password is incorrect")
		return ve.Err()
	}
	hash, err := utils.HashPassword(in.New)
	if err != nil {
		return internal("hash password", err)
	}
	if err := q.Model(&models.User{}).Where("id = ?", user.ID).Update("password", hash).Error; err != nil {
		return internal("change password", err)
	}
	s.log.Info("password changed", logger.String("user_id", user.ID))
	return nil
}

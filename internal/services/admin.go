package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/utils"
)

type Stats struct {
	TotalSuggestions int64 `json:"totalSuggestions"`
	OpenSuggestions  int64 `json:"openSuggestions"`
	DoneSuggestions  int64 `json:"doneSuggestions"`
	TotalVotes       int64 `json:"totalVotes"`
	TotalUsers       int64 `json:"totalUsers"`
	TotalComments    int64 `json:"totalComments"`
}

type UserUpdate struct {
	Username *string `json:"username"`
	IsAdmin  *bool   `json:"is_admin"`
	IsBanned *bool   `json:"is_banned"`
}

type Admin struct {
	db    *gorm.DB
	log   logger.Logger
	pages Invalidator
	links MetadataFetcher
	now   func() time.Time
}

func NewAdmin(db *gorm.DB, log logger.Logger, pages Invalidator, links MetadataFetcher) *Admin {
	if pages == nil {
		pages = nopInvalidator{}
	}
	return &Admin{db: db, log: log, pages: pages, links: links, now: time.Now}
}

func (s *Admin) invalidate(suggestionID string) {
	s.pages.Invalidate(suggestionPaths(suggestionID)...)
}

// cleanURLs trims, drops blanks and rejects anything but http(s).
func cleanURLs(raw []string) ([]string, error) {
	var ve ValidationError
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		u := utils.SanitizeURL(r)
		if u == "" {
			ve.Add("links", "Invalid URL: "+r)
			continue
		}
		out = append(out, u)
	}
	return out, ve.Err()
}

// buildLinks fetches metadata for every URL concurrently.
func (s *Admin) buildLinks(ctx context.Context, actor *models.User, suggestionID string, urls []string) []models.SuggestionLink {
	links := make([]models.SuggestionLink, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			meta := s.links.Fetch(ctx, u)
			links[i] = models.SuggestionLink{
				SuggestionID: suggestionID,
				Platform:     s.links.Platform(u),
				URL:          u,
				ThumbnailURL: strPtr(meta.ThumbnailURL),
				Title:        strPtr(meta.Title),
				CreatedBy:    actor.ID,
			}
		}(i, u)
	}
	wg.Wait()
	return links
}

func (s *Admin) suggestion(q *gorm.DB, id string) (*models.Suggestion, error) {
	var sug models.Suggestion
	if err := q.Take(&sug, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load suggestion", err, ErrSuggestionNotFound)
	}
	return &sug, nil
}

// MarkDone completes a suggestion, attaches the links that fulfilled it
// and notifies the author and followers.
func (s *Admin) MarkDone(ctx context.Context, actor *models.User, suggestionID string, rawLinks []string, comment string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	urls, err := cleanURLs(rawLinks)
	if err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	sug, err := s.suggestion(q, suggestionID)
	if err != nil {
		return err
	}

	links := s.buildLinks(ctx, actor, suggestionID, urls)
	now := s.now()
	doneBy := actor.ID

	err = q.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(sug).Updates(map[string]any{
			"status":       models.StatusDone,
			"done_at":      &now,
			"done_by":      &doneBy,
			"done_comment": strPtr(utils.PlainText(comment)),
		}).Error
		if err != nil {
			return err
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return notifyDone(tx, sug)
	})
	if err != nil {
		return internal("mark done", err)
	}
	s.log.Info("suggestion marked done",
		logger.String("suggestion_id", suggestionID),
		logger.String("by", actor.ID),
		logger.Int("links", len(links)))
	s.invalidate(suggestionID)
	return nil
}

// Reopen removes every link and the completion fields.
func (s *Admin) Reopen(ctx context.Context, actor *models.User, suggestionID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	sug, err := s.suggestion(q, suggestionID)
	if err != nil {
		return err
	}

	err = q.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("suggestion_id = ?", suggestionID).Delete(&models.SuggestionLink{}).Error; err != nil {
			return err
		}
		err := tx.Model(sug).Updates(map[string]any{
			"status":       models.StatusOpen,
			"done_at":      nil,
			"done_by":      nil,
			"done_comment": nil,
		}).Error
		if err != nil {
			return err
		}
		return notifyReopened(tx, sug)
	})
	if err != nil {
		return internal("reopen suggestion", err)
	}
	s.invalidate(suggestionID)
	return nil
}

func (s *Admin) AddLink(ctx context.Context, actor *models.User, suggestionID, rawURL string) (*models.SuggestionLink, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	urls, err := cleanURLs([]string{rawURL})
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		var ve ValidationError
		ve.Add("url", "URL is required")
		return nil, ve.Err()
	}
	q := s.db.WithContext(ctx)
	if _, err := s.suggestion(q, suggestionID); err != nil {
		return nil, err
	}

	link := s.buildLinks(ctx, actor, suggestionID, urls)[0]
	if err := q.Create(&link).Error; err != nil {
		return nil, internal("add link", err)
	}
	s.invalidate(suggestionID)
	return &link, nil
}

func (s *Admin) DeleteLink(ctx context.Context, actor *models.User, linkID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	var link models.SuggestionLink
	if err := q.Take(&link, "id = ?", linkID).Error; err != nil {
		return notFoundOr("load link", err, ErrLinkNotFound)
	}
	if err := q.Delete(&link).Error; err != nil {
		return internal("delete link", err)
	}
	s.invalidate(link.SuggestionID)
	return nil
}

// UpdateDoneComment sets or, with an empty comment, clears the note.
func (s *Admin) UpdateDoneComment(ctx context.Context, actor *models.User, suggestionID, comment string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Suggestion{}).Where("id = ?", suggestionID).
		Update("done_comment", strPtr(utils.PlainText(comment)))
	if res.Error != nil {
		return internal("update done comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSuggestionNotFound
	}
	s.invalidate(suggestionID)
	return nil
}

// BackfillLinkMetadata fills missing thumbnails and titles on existing
// links. Returns the number of links updated.
func (s *Admin) BackfillLinkMetadata(ctx context.Context, actor *models.User) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	q := s.db.WithContext(ctx)
	var links []models.SuggestionLink
	if err := q.Where("thumbnail_url IS NULL OR title IS NULL").Find(&links).Error; err != nil {
		return 0, internal("backfill links", err)
	}

	updated := 0
	for _, l := range links {
		if ctx.Err() != nil {
			break
		}
		meta := s.links.Fetch(ctx, l.URL)
		changes := map[string]any{}
		if l.ThumbnailURL == nil && meta.ThumbnailURL != "" {
			changes["thumbnail_url"] = meta.ThumbnailURL
		}
		if l.Title == nil && meta.Title != "" {
			changes["title"] = meta.Title
		}
		if len(changes) == 0 {
			continue
		}
		if err := q.Model(&models.SuggestionLink{}).Where("id = ?", l.ID).Updates(changes).Error; err != nil {
			s.log.Error("backfill link", logger.String("link_id", l.ID), logger.Err(err))
			continue
		}
		updated++
	}
	if updated > 0 {
		s.pages.Purge()
	}
	return updated, nil
}

func (s *Admin) Stats(ctx context.Context) (Stats, error) {
	q := s.db.WithContext(ctx)
	var st Stats
	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&st.TotalSuggestions, &models.Suggestion{}, nil},
		{&st.OpenSuggestions, &models.Suggestion{}, []any{"status = ?", models.StatusOpen}},
		{&st.DoneSuggestions, &models.Suggestion{}, []any{"status = ?", models.StatusDone}},
		{&st.TotalVotes, &models.Vote{}, nil},
		{&st.TotalUsers, &models.User{}, nil},
		{&st.TotalComments, &models.Comment{}, nil},
	}
	for _, c := range counts {
		tx := q.Model(c.model)
		if c.where != nil {
			tx = tx.Where(c.where[0], c.where[1:]...)
		}
		if err := tx.Count(c.dst).Error; err != nil {
			return Stats{}, internal("admin stats", err)
		}
	}
	return st, nil
}

func (s *Admin) Users(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, internal("list users", err)
	}
	return users, nil
}

func (s *Admin) user(q *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := q.Take(&u, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load user", err, ErrUserNotFound)
	}
	return &u, nil
}

// notSelf guards the account actions an admin may not apply to themselves.
func notSelf(actor *models.User, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == userID {
		return ErrSelfAction
	}
	return nil
}

func (s *Admin) toggle(ctx context.Context, actor *models.User, userID, column string) error {
	if err := notSelf(actor, userID); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	u, err := s.user(q, userID)
	if err != nil {
		return err
	}
	value := !u.IsAdmin
	if column == "is_banned" {
		value = !u.IsBanned
	}
	if err := q.Model(u).Update(column, value).Error; err != nil {
		return internal("toggle "+column, err)
	}
	return nil
}

func (s *Admin) ToggleAdmin(ctx context.Context, actor *models.User, userID string) error {
	return s.toggle(ctx, actor, userID, "is_admin")
}

func (s *Admin) ToggleBan(ctx context.Context, actor *models.User, userID string) error {
	return s.toggle(ctx, actor, userID, "is_banned")
}

func (s *Admin) UpdateUser(ctx context.Context, actor *models.User, userID string, in UserUpdate) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == userID && (in.IsAdmin != nil || in.IsBanned != nil) {
		return ErrSelfAction
	}
	q := s.db.WithContext(ctx)
	u, err := s.user(q, userID)
	if err != nil {
		return err
	}

	updates := map[string]any{}
	if in.Username != nil {
		name, err := validateUsername(*in.Username)
		if err != nil {
			return err
		}
		updates["username"] = name
	}
	if in.IsAdmin != nil {
		updates["is_admin"] = *in.IsAdmin
	}
	if in.IsBanned != nil {
		updates["is_banned"] = *in.IsBanned
	}
	if len(updates) == 0 {
		return nil
	}
	if err := q.Model(u).Updates(updates).Error; err != nil {
		return internal("update user", err)
	}
	s.pages.Purge()
	return nil
}

// DeleteUser removes the account and, through cascades, its content.
func (s *Admin) DeleteUser(ctx context.Context, actor *models.User, userID string) error {
	if err := notSelf(actor, userID); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	u, err := s.user(q, userID)
	if err != nil {
		return err
	}
	err = q.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("voter_id = ?", u.ID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(u).Error
	})
	if err != nil {
		return internal("delete user", err)
	}
	s.log.Info("user deleted", logger.String("user_id", userID), logger.String("by", actor.ID))
	s.pages.Purge()
	return nil
}

// GrantAdmin promotes the account registered with email. Used to bootstrap
// the first administrator from the command line.
func (s *Admin) GrantAdmin(ctx context.Context, email string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		Update("is_admin", true)
	if res.Error != nil {
		return internal("grant admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AllComments lists every comment, newest first, with its suggestion title.
func (s *Admin) AllComments(ctx context.Context, actor *models.User) ([]CommentView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx)
	var rows []models.Comment
	if err := q.Preload("User").Preload("Suggestion").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, internal("list all comments", err)
	}
	out := make([]CommentView, 0, len(rows))
	for _, c := range rows {
		out = append(out, CommentView{Comment: c, Author: authorOf(c.User), SuggestionTitle: c.Suggestion.Title})
	}
	return out, nil
}

func (s *Admin) DeleteComment(ctx context.Context, actor *models.User, commentID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", commentID)
	if res.Error != nil {
		return internal("delete comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"idees/internal/logger"
	"idees/internal/models"
	"idees/internal/utils"
)

const (
	TitleMin       = 5
	TitleMax       = 200
	DescriptionMax = 2000

	defaultPageSize = 10
	maxPageSize     = 50
	maxSearch       = 200 // runes
)

const (
	StatusAll  = "all"
	SortVotes  = "votes"
	SortNewest = "newest"
)

// SuggestionView is a suggestion with its derived fields. HasVoted depends
// on the viewer and is filled in per request, never cached.
type SuggestionView struct {
	models.Suggestion
	VoteCount       int64  `json:"vote_count"`
	HasVoted        bool   `json:"has_voted"`
	Author          Author `json:"author"`
	DescriptionHTML string `json:"description_html,omitempty"`
}

type ListOptions struct {
	Status string // open, done or all
	Sort   string // votes or newest
	Page   int
	Limit  int
	Search string
	TagID  string
}

func (o *ListOptions) normalize() {
	switch o.Status {
	case string(models.StatusOpen), string(models.StatusDone):
	default:
		o.Status = StatusAll
	}
	if o.Sort != SortNewest {
		o.Sort = SortVotes
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = defaultPageSize
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	o.Search = strings.TrimSpace(o.Search)
	if utf8.RuneCountInString(o.Search) > maxSearch {
		o.Search = string([]rune(o.Search)[:maxSearch])
	}
}

type Page struct {
	Items      []SuggestionView `json:"items"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

type SuggestionInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TagIDs      []string `json:"tags"`
}

// SuggestionUpdate changes only the fields that are set.
type SuggestionUpdate struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	TagIDs      *[]string `json:"tags"`
}

type Suggestions struct {
	db    *gorm.DB
	log   logger.Logger
	pages Invalidator
}

func NewSuggestions(db *gorm.DB, log logger.Logger, pages Invalidator) *Suggestions {
	if pages == nil {
		pages = nopInvalidator{}
	}
	return &Suggestions{db: db, log: log, pages: pages}
}

func validateTitle(ve *ValidationError, title string) {
	n := utf8.RuneCountInString(title)
	switch {
	case n < TitleMin:
		ve.Add("title", fmt.Sprintf("Title must be at least %d characters", TitleMin))
	case n > TitleMax:
		ve.Add("title", fmt.Sprintf("Title must be at most %d characters", TitleMax))
	}
}

func validateDescription(ve *ValidationError, desc string) {
	if utf8.RuneCountInString(desc) > DescriptionMax {
		ve.Add("description", fmt.Sprintf("Description must be at most %d characters", DescriptionMax))
	}
}

// loadTags returns the tags with the given ids, or a validation error when
// any of them does not exist.
func loadTags(q *gorm.DB, ids []string, ve *ValidationError) ([]models.Tag, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	if err := q.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, internal("load tags", err)
	}
	if len(tags) != len(ids) {
		ve.Add("tags", "Unknown tag")
	}
	return tags, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Suggestions) Create(ctx context.Context, user *models.User, in SuggestionInput) (*models.Suggestion, error) {
	if err := requirePoster(user); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx)

	title := utils.PlainText(in.Title)
	desc := utils.PlainText(in.Description)

	var ve ValidationError
	validateTitle(&ve, title)
	validateDescription(&ve, desc)
	tags, err := loadTags(q, in.TagIDs, &ve)
	if err != nil {
		return nil, err
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	sug := models.Suggestion{
		UserID:      user.ID,
		Title:       title,
		Description: desc,
		Status:      models.StatusOpen,
		Tags:        tags,
	}
	if err := q.Create(&sug).Error; err != nil {
		return nil, internal("create suggestion", err)
	}
	s.pages.Invalidate(suggestionPaths(sug.ID)...)
	return &sug, nil
}

func (s *Suggestions) find(q *gorm.DB, id string) (*models.Suggestion, error) {
	var sug models.Suggestion
	if err := q.Take(&sug, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("load suggestion", err, ErrSuggestionNotFound)
	}
	return &sug, nil
}

func canModify(user *models.User, ownerID string) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if user.ID != ownerID && !user.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Suggestions) Update(ctx context.Context, user *models.User, id string, in SuggestionUpdate) error {
	if err := requireUser(user); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	sug, err := s.find(q, id)
	if err != nil {
		return err
	}
	if err := canModify(user, sug.UserID); err != nil {
		return err
	}

	var ve ValidationError
	updates := map[string]any{}
	if in.Title != nil {
		title := utils.PlainText(*in.Title)
		validateTitle(&ve, title)
		updates["title"] = title
	}
	if in.Description != nil {
		desc := utils.PlainText(*in.Description)
		validateDescription(&ve, desc)
		updates["description"] = desc
	}
	if in.Icon != nil {
		updates["icon"] = strPtr(utils.PlainText(*in.Icon))
	}
	var tags []models.Tag
	if in.TagIDs != nil {
		if tags, err = loadTags(q, *in.TagIDs, &ve); err != nil {
			return err
		}
	}
	if err := ve.Err(); err != nil {
		return err
	}

	err = q.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(sug).Updates(updates).Error; err != nil {
				return err
			}
		}
		switch {
		case in.TagIDs == nil:
			return nil
		case len(tags) == 0:
			return tx.Model(sug).Association("Tags").Clear()
		default:
			return tx.Model(sug).Association("Tags").Replace(tags)
		}
	})
	if err != nil {
		return internal("update suggestion", err)
	}
	s.pages.Invalidate(suggestionPaths(id)...)
	return nil
}

func (s *Suggestions) Delete(ctx context.Context, user *models.User, id string) error {
	if err := requireUser(user); err != nil {
		return err
	}
	q := s.db.WithContext(ctx)
	sug, err := s.find(q, id)
	if err != nil {
		return err
	}
	if err := canModify(user, sug.UserID); err != nil {
		return err
	}

	err = q.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(sug).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(sug).Error
	})
	if err != nil {
		return internal("delete suggestion", err)
	}
	s.pages.Invalidate(suggestionPaths(id)...)
	return nil
}

// List returns one page of suggestions. HasVoted is left false.
func (s *Suggestions) List(ctx context.Context, opts ListOptions) (*Page, error) {
	opts.normalize()
	q := s.db.WithContext(ctx)

	base := q.Model(&models.Suggestion{})
	if opts.Status != StatusAll {
		base = base.Where("status = ?", opts.Status)
	}
	if opts.Search != "" {
		like := "%" + escapeLike(strings.ToLower(opts.Search)) + "%"
		base = base.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, like, like)
	}
	if opts.TagID != "" {
		base = base.Where("id IN (?)", q.Table("suggestion_tags").Select("suggestion_id").Where("tag_id = ?", opts.TagID))
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, internal("list suggestions", err)
	}

	page := &Page{
		Items:      []SuggestionView{},
		Page:       opts.Page,
		PerPage:    opts.Limit,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(opts.Limit))),
	}
	if total == 0 {
		return page, nil
	}

	list := base.Session(&gorm.Session{}).
		Preload("User").Preload("Tags").Preload("Links").
		Offset((opts.Page - 1) * opts.Limit).Limit(opts.Limit)
	if opts.Sort == SortNewest {
		list = list.Order("created_at DESC")
	} else {
		list = list.Order("(SELECT COUNT(*) FROM votes WHERE votes.suggestion_id = suggestions.id) DESC").
			Order("created_at DESC")
	}

	var rows []models.Suggestion
	if err := list.Find(&rows).Error; err != nil {
		return nil, internal("list suggestions", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	counts, err := countVotes(q, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		page.Items = append(page.Items, SuggestionView{
			Suggestion: r,
			VoteCount:  counts[r.ID],
			Author:     authorOf(r.User),
		})
	}
	return page, nil
}

// Get loads one suggestion with rendered description. HasVoted is left false.
func (s *Suggestions) Get(ctx context.Context, id string) (*SuggestionView, error) {
	q := s.db.WithContext(ctx)
	var sug models.Suggestion
	err := q.Preload("User").Preload("Tags").Preload("Links").Take(&sug, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSuggestionNotFound
		}
		return nil, internal("get suggestion", err)
	}
	var n int64
	if err := q.Model(&models.Vote{}).Where("suggestion_id = ?", id).Count(&n).Error; err != nil {
		return nil, internal("get suggestion", err)
	}
	return &SuggestionView{
		Suggestion:      sug,
		VoteCount:       n,
		Author:          authorOf(sug.User),
		DescriptionHTML: utils.RenderMarkdown(sug.Description),
	}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

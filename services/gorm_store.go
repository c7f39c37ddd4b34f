package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of gorm and MySQL.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.DB
	}
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// txOptions pins READ COMMITTED so reads after LockManuscript see rows
// committed by the transaction that held the lock before.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

func (s *GormStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, now: s.now})
	}, txOptions)
}

func translateGormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrRecordNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("id = ? AND deleted_at IS NULL", id).First(&user).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &user, nil
}

func (s *GormStore) loadManuscript(db *gorm.DB, id string) (*models.Manuscript, error) {
	var m models.Manuscript
	err := db.
		Preload("Revisions", func(q *gorm.DB) *gorm.DB { return q.Order("round ASC") }).
		Preload("Payments", func(q *gorm.DB) *gorm.DB { return q.Order("timestamp ASC") }).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &m, nil
}

func (s *GormStore) GetManuscript(ctx context.Context, id string) (*models.Manuscript, error) {
	return s.loadManuscript(s.conn(ctx), id)
}

func (s *GormStore) LockManuscript(ctx context.Context, id string) (*models.Manuscript, error) {
	db := s.conn(ctx)
	var m models.Manuscript
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translateGormErr(err)
	}
	if err := db.Where("manuscript_id = ?", id).Order("timestamp ASC").Find(&m.Payments).Error; err != nil {
		return nil, err
	}
	if err := db.Where("manuscript_id = ?", id).Order("round ASC").Find(&m.Revisions).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) CreateManuscript(ctx context.Context, m *models.Manuscript) error {
	return translateGormErr(s.conn(ctx).Create(m).Error)
}

func (s *GormStore) SaveManuscript(ctx context.Context, m *models.Manuscript) error {
	m.UpdatedAt = s.now()
	err := s.conn(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(m).Error
	return translateGormErr(err)
}

func (s *GormStore) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.conn(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &a, nil
}

func (s *GormStore) FindAssignments(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	q := s.conn(ctx).Model(&models.Assignment{})
	if filter.ManuscriptID != "" {
		q = q.Where("manuscript_id = ?", filter.ManuscriptID)
	}
	if filter.ReviewerID != "" {
		q = q.Where("reviewer_id = ?", filter.ReviewerID)
	}
	if filter.Round > 0 {
		q = q.Where("round = ?", filter.Round)
	}
	if filter.BeforeRound > 0 {
		q = q.Where("round < ?", filter.BeforeRound)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}

	var items []models.Assignment
	if err := q.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	a.RefreshOpenKey()
	return translateGormErr(s.conn(ctx).Create(a).Error)
}

func (s *GormStore) TransitionAssignment(ctx context.Context, a *models.Assignment, from models.AssignmentStatus) error {
	a.RefreshOpenKey()
	a.UpdatedAt = s.now()

	res := s.conn(ctx).Model(&models.Assignment{}).
		Where("id = ? AND status = ?", a.ID, from).
		Updates(map[string]interface{}{
			"status":         a.Status,
			"open_key":       a.OpenKey,
			"review_id":      a.ReviewID,
			"decline_reason": a.DeclineReason,
			"responded_at":   a.RespondedAt,
			"completed_at":   a.CompletedAt,
			"updated_at":     a.UpdatedAt,
		})
	if res.Error != nil {
		return translateGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (s *GormStore) FindReview(ctx context.Context, manuscriptID, reviewerID string, round int) (*models.Review, error) {
	var r models.Review
	err := s.conn(ctx).
		Where("manuscript_id = ? AND reviewer_id = ? AND round = ?", manuscriptID, reviewerID, round).
		First(&r).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &r, nil
}

func (s *GormStore) FindReviews(ctx context.Context, filter ReviewFilter) ([]models.Review, error) {
	q := s.conn(ctx).Model(&models.Review{})
	if filter.ManuscriptID != "" {
		q = q.Where("manuscript_id = ?", filter.ManuscriptID)
	}
	if filter.ReviewerID != "" {
		q = q.Where("reviewer_id = ?", filter.ReviewerID)
	}
	if filter.Round > 0 {
		q = q.Where("round = ?", filter.Round)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var items []models.Review
	if err := q.Order("submitted_at ASC, created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SaveReview upserts on the (manuscript, reviewer, round) unique index.
func (s *GormStore) SaveReview(ctx context.Context, r *models.Review) error {
	r.UpdatedAt = s.now()
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "manuscript_id"}, {Name: "reviewer_id"}, {Name: "round"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"assignment_id",
			"score_originality", "score_methodology", "score_contribution", "score_clarity", "score_references",
			"overall_score", "recommendation", "comments", "confidential_comments",
			"status", "submitted_at", "updated_at",
		}),
	}).Create(r).Error
	return translateGormErr(err)
}

func (s *GormStore) AppendHistory(ctx context.Context, h *models.ManuscriptStatusHistory) error {
	return translateGormErr(s.conn(ctx).Create(h).Error)
}

func (s *GormStore) FindHistory(ctx context.Context, manuscriptID string) ([]models.ManuscriptStatusHistory, error) {
	var items []models.ManuscriptStatusHistory
	if err := s.conn(ctx).
		Where("manuscript_id = ?", manuscriptID).
		Order("created_at ASC, history_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

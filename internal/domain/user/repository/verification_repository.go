package repository

import (
	"context"
	"errors"
	"ustp_things/internal/domain/user/model"

	"gorm.io/gorm"
)

// ErrAlreadyReviewed 审核时记录已不是 pending
var ErrAlreadyReviewed = errors.New("verification already reviewed")

type VerificationRepository interface {
	Create(ctx context.Context, v *model.VerifiedAccount) error
	GetByID(ctx context.Context, id string) (*model.VerifiedAccount, error)
	// FindPendingByUser 没有待审核记录时返回 nil, nil
	FindPendingByUser(ctx context.Context, userID string) (*model.VerifiedAccount, error)
	List(ctx context.Context, status string, offset, limit int) ([]model.VerifiedAccount, int64, error)
	// Review 在同一事务里更新申请状态，通过时同时写用户认证等级
	Review(ctx context.Context, v *model.VerifiedAccount) error
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *model.VerifiedAccount) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *verificationRepository) GetByID(ctx context.Context, id string) (*model.VerifiedAccount, error) {
	var v model.VerifiedAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepository) FindPendingByUser(ctx context.Context, userID string) (*model.VerifiedAccount, error) {
	var list []model.VerifiedAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.VerificationPending).
		Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *verificationRepository) List(ctx context.Context, status string, offset, limit int) ([]model.VerifiedAccount, int64, error) {
	var list []model.VerifiedAccount
	var total int64

	db := r.db.WithContext(ctx).Model(&model.VerifiedAccount{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *verificationRepository) Review(ctx context.Context, v *model.VerifiedAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 条件更新，并发审核只有一个生效
		res := tx.Model(&model.VerifiedAccount{}).
			Where("id = ? AND status = ?", v.ID, model.VerificationPending).
			Updates(map[string]interface{}{
				"status":      v.Status,
				"reviewed_by": v.ReviewedBy,
				"reviewed_at": v.ReviewedAt,
				"note":        v.Note,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}

		if v.Status != model.VerificationApproved {
			return nil
		}
		return tx.Model(&model.User{}).
			Where("id = ?", v.UserID).
			Update("verification_tier", v.Tier).Error
	})
}

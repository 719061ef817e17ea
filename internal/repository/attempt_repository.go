package repository

import (
	"picshare_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.UnlockAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.UnlockAttempt, error) {
	var a model.UnlockAttempt
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Complete 记录一次挑战的结果，只写一次
func (r *AttemptRepository) Complete(id uint, success bool, score int, at time.Time) error {
	return r.DB.Model(&model.UnlockAttempt{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{"success": success, "score": score, "completed_at": at}).Error
}

func (r *AttemptRepository) CountByRecipient(recipientID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.UnlockAttempt{}).Where("recipient_id = ?", recipientID).Count(&count).Error
	return count, err
}

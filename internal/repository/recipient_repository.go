package repository

import (
	"errors"
	"picshare_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type RecipientRepository struct {
	DB *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{DB: db}
}

// FindOrCreate 每个（图片，身份）对至多一条记录。查询条件必须用
// 结构体传，FirstOrCreate 才会把键值带进新插入的行；并发撞唯一索引
// 时靠 TranslateError 识别后重查一次。
func (r *RecipientRepository) FindOrCreate(pictureID uint, identity string) (*model.PictureRecipient, error) {
	var rec model.PictureRecipient
	err := r.DB.Where(model.PictureRecipient{PictureID: pictureID, Identity: identity}).
		Attrs(model.PictureRecipient{Status: model.StatusLocked, ReceivedAt: time.Now()}).
		FirstOrCreate(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = r.DB.Where("picture_id = ? AND identity = ?", pictureID, identity).First(&rec).Error
		}
		if err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (r *RecipientRepository) Find(pictureID uint, identity string) (*model.PictureRecipient, error) {
	var rec model.PictureRecipient
	err := r.DB.Where("picture_id = ? AND identity = ?", pictureID, identity).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) FindByID(id uint) (*model.PictureRecipient, error) {
	var rec model.PictureRecipient
	if err := r.DB.First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkUnlocked locked → unlocked，带状态条件避免重复推进。
// 返回值指明本次调用是否真的完成了状态转换，没转换说明
// 已经被并发的另一次胜局推进过了。
func (r *RecipientRepository) MarkUnlocked(id uint, at time.Time) (bool, error) {
	res := r.DB.Model(&model.PictureRecipient{}).
		Where("id = ? AND status = ?", id, model.StatusLocked).
		Updates(map[string]interface{}{"status": model.StatusUnlocked, "unlocked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkViewed unlocked → viewed，幂等
func (r *RecipientRepository) MarkViewed(id uint, at time.Time) error {
	return r.DB.Model(&model.PictureRecipient{}).
		Where("id = ? AND status = ?", id, model.StatusUnlocked).
		Updates(map[string]interface{}{"status": model.StatusViewed, "opened_at": at}).Error
}

func (r *RecipientRepository) ListByPicture(pictureID uint) ([]model.PictureRecipient, error) {
	var recs []model.PictureRecipient
	err := r.DB.Preload("Attempts").Where("picture_id = ?", pictureID).Order("id").Find(&recs).Error
	return recs, err
}

func (r *RecipientRepository) CountUnlockedByPicture(pictureID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.PictureRecipient{}).
		Where("picture_id = ? AND status IN ?", pictureID, []model.RecipientStatus{model.StatusUnlocked, model.StatusViewed}).
		Count(&count).Error
	return count, err
}

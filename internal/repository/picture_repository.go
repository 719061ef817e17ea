package repository

import (
	"picshare_backend/internal/model"

	"gorm.io/gorm"
)

type PictureRepository struct {
	DB *gorm.DB
}

func NewPictureRepository(db *gorm.DB) *PictureRepository {
	return &PictureRepository{DB: db}
}

func (r *PictureRepository) Create(p *model.Picture) error {
	return r.DB.Create(p).Error
}

func (r *PictureRepository) Update(p *model.Picture) error {
	return r.DB.Save(p).Error
}

func (r *PictureRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Picture{}, id).Error
}

func (r *PictureRepository) FindByID(id uint) (*model.Picture, error) {
	var p model.Picture
	if err := r.DB.Preload("RequiredGame").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PictureRepository) FindByShareToken(token string) (*model.Picture, error) {
	var p model.Picture
	if err := r.DB.Preload("RequiredGame").Where("share_token = ?", token).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PictureRepository) ListByOwner(ownerID uint, page, limit int) ([]model.Picture, int64, error) {
	var pictures []model.Picture
	var total int64

	q := r.DB.Model(&model.Picture{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&pictures).Error
	return pictures, total, err
}

// IncrementUnlockIfQuotaAllows 条件自增解锁计数。配额检查和自增必须是
// 同一条 UPDATE，两个并发的成功校验不能同时越过配额。
// 返回 true 表示计数 +1 成功，false 表示配额已满。
func (r *PictureRepository) IncrementUnlockIfQuotaAllows(id uint) (bool, error) {
	res := r.DB.Model(&model.Picture{}).
		Where("id = ? AND (max_unlocks = 0 OR current_unlocks < max_unlocks)", id).
		UpdateColumn("current_unlocks", gorm.Expr("current_unlocks + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementUnlock 退还一次解锁计数。同一接收者的两次并发胜局里
// 输掉状态转换的那一次用它把多占的配额还回去。
func (r *PictureRepository) DecrementUnlock(id uint) error {
	return r.DB.Model(&model.Picture{}).
		Where("id = ? AND current_unlocks > 0", id).
		UpdateColumn("current_unlocks", gorm.Expr("current_unlocks - 1")).Error
}

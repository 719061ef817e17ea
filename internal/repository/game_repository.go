package repository

import (
	"picshare_backend/internal/model"

	"gorm.io/gorm"
)

type GameRepository struct {
	DB *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{DB: db}
}

func (r *GameRepository) FindByID(id uint) (*model.Game, error) {
	var g model.Game
	if err := r.DB.First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GameRepository) FindBySlug(slug string) (*model.Game, error) {
	var g model.Game
	if err := r.DB.Where("slug = ? AND enabled = ?", slug, true).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GameRepository) ListEnabled() ([]model.Game, error) {
	var games []model.Game
	err := r.DB.Where("enabled = ?", true).Order("id").Find(&games).Error
	return games, err
}

package service

import (
	"errors"
	"picshare_backend/internal/model"
	"picshare_backend/internal/repository"
	"picshare_backend/internal/util"

	"gorm.io/gorm"
)

type GameService struct {
	GameRepo *repository.GameRepository
}

func NewGameService(gameRepo *repository.GameRepository) *GameService {
	return &GameService{GameRepo: gameRepo}
}

func (s *GameService) ListGames() ([]model.Game, error) {
	return s.GameRepo.ListEnabled()
}

func (s *GameService) GetGame(slug string) (*model.Game, error) {
	game, err := s.GameRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrGameNotFound
		}
		return nil, err
	}
	return game, nil
}

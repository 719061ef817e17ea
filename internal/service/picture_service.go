package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"picshare_backend/internal/config"
	"picshare_backend/internal/model"
	"picshare_backend/internal/repository"
	"picshare_backend/internal/util"
	"picshare_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PictureService struct {
	PictureRepo   *repository.PictureRepository
	RecipientRepo *repository.RecipientRepository
	GameRepo      *repository.GameRepository
	Storage       *StorageService
	Redis         *redis.Client
	Cfg           *config.Config
}

func NewPictureService(
	pictureRepo *repository.PictureRepository,
	recipientRepo *repository.RecipientRepository,
	gameRepo *repository.GameRepository,
	storage *StorageService,
	rdb *redis.Client,
	cfg *config.Config,
) *PictureService {
	return &PictureService{
		PictureRepo:   pictureRepo,
		RecipientRepo: recipientRepo,
		GameRepo:      gameRepo,
		Storage:       storage,
		Redis:         rdb,
		Cfg:           cfg,
	}
}

type ShareRequest struct {
	GameSlug   string     `json:"gameSlug" binding:"required"`
	MaxUnlocks int        `json:"maxUnlocks"` // 0 表示不限
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// UploadPicture 上传图片：校验 MIME，生成缩略图，两份一起入存储
func (s *PictureService) UploadPicture(ownerID uint, title string, fh *multipart.FileHeader) (*model.Picture, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{util.MimeImage})
	if err != nil {
		return nil, err
	}

	// ValidateMimeType 已读掉头部，回到文件开头
	if _, err := src.Seek(0, 0); err != nil {
		return nil, err
	}

	ext := filepath.Ext(fh.Filename)
	baseName := fmt.Sprintf("pictures/%d/%s%s", ownerID, model.GenerateUUID(), ext)

	tmp, err := os.CreateTemp("", "picshare-upload-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(src); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	fileURL, err := s.Storage.UploadFile(context.Background(), baseName, tmp.Name(), mimeType)
	if err != nil {
		return nil, err
	}

	// 缩略图失败不阻塞上传
	thumbURL := ""
	thumbTmp := tmp.Name() + ".thumb.jpg"
	if err := util.GenerateImageThumbnail(tmp.Name(), thumbTmp, 320); err != nil {
		logger.Log.Warn("thumbnail generation failed", zap.String("file", fh.Filename), zap.Error(err))
	} else {
		defer os.Remove(thumbTmp)
		thumbName := baseName + ".thumb.jpg"
		if url, err := s.Storage.UploadFile(context.Background(), thumbName, thumbTmp, "image/jpeg"); err == nil {
			thumbURL = url
		}
	}

	picture := &model.Picture{
		OwnerID:  ownerID,
		Title:    title,
		FileURL:  fileURL,
		ThumbURL: thumbURL,
		MimeType: mimeType,
		SizeByte: fh.Size,
	}
	if err := s.PictureRepo.Create(picture); err != nil {
		return nil, err
	}

	return picture, nil
}

// SharePicture 生成分享链接：指定解锁游戏、配额和过期时间
func (s *PictureService) SharePicture(ownerID, pictureID uint, req ShareRequest) (*model.Picture, error) {
	picture, err := s.findOwned(ownerID, pictureID)
	if err != nil {
		return nil, err
	}

	game, err := s.GameRepo.FindBySlug(req.GameSlug)
	if err != nil {
		return nil, util.ErrGameNotFound
	}

	if req.MaxUnlocks < 0 {
		req.MaxUnlocks = 0
	}

	picture.ShareToken = model.GenerateUUID()
	picture.RequiredGameID = game.ID
	picture.MaxUnlocks = req.MaxUnlocks
	picture.ExpiresAt = req.ExpiresAt

	if err := s.PictureRepo.Update(picture); err != nil {
		return nil, err
	}

	return picture, nil
}

// RevokeShare 撤销分享链接，已解锁的接收者记录保留作审计
func (s *PictureService) RevokeShare(ownerID, pictureID uint) error {
	picture, err := s.findOwned(ownerID, pictureID)
	if err != nil {
		return err
	}

	s.Redis.Del(context.Background(), viewCountKey(picture.ID))

	picture.ShareToken = ""
	return s.PictureRepo.Update(picture)
}

func (s *PictureService) GetPicture(ownerID, pictureID uint) (*model.Picture, error) {
	return s.findOwned(ownerID, pictureID)
}

func (s *PictureService) ListPictures(ownerID uint, page, limit int) ([]model.Picture, int64, error) {
	return s.PictureRepo.ListByOwner(ownerID, page, limit)
}

// ShareAudit 分享明细：每个接收者的状态和全部挑战记录（含分数）
func (s *PictureService) ShareAudit(ownerID, pictureID uint) (*model.Picture, []model.PictureRecipient, int64, error) {
	picture, err := s.findOwned(ownerID, pictureID)
	if err != nil {
		return nil, nil, 0, err
	}

	recipients, err := s.RecipientRepo.ListByPicture(picture.ID)
	if err != nil {
		return nil, nil, 0, err
	}

	views := s.GetViewCount(picture.ID)
	return picture, recipients, views, nil
}

// TrackView 分享页访问计数，放Redis，丢了无所谓
func (s *PictureService) TrackView(pictureID uint) {
	if err := s.Redis.Incr(context.Background(), viewCountKey(pictureID)).Err(); err != nil {
		logger.Log.Warn("failed to track picture view", zap.Uint("pictureId", pictureID), zap.Error(err))
	}
}

func (s *PictureService) GetViewCount(pictureID uint) int64 {
	val, err := s.Redis.Get(context.Background(), viewCountKey(pictureID)).Int64()
	if err != nil {
		return 0
	}
	return val
}

func (s *PictureService) findOwned(ownerID, pictureID uint) (*model.Picture, error) {
	picture, err := s.PictureRepo.FindByID(pictureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPictureNotFound
		}
		return nil, err
	}
	if picture.OwnerID != ownerID {
		return nil, util.ErrPermissionDenied
	}
	return picture, nil
}

func viewCountKey(pictureID uint) string {
	return fmt.Sprintf("picture:views:%d", pictureID)
}

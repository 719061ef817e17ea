package service

import (
	"errors"
	"picshare_backend/internal/config"
	"picshare_backend/internal/model"
	"picshare_backend/internal/repository"
	"picshare_backend/internal/util"
	"picshare_backend/pkg/logger"
	"picshare_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UnlockService 是挑战会话与解锁校验的编排层：开局绑定会话，
// 校验完成证明，推进接收者的解锁状态机。
type UnlockService struct {
	PictureRepo   *repository.PictureRepository
	RecipientRepo *repository.RecipientRepository
	AttemptRepo   *repository.AttemptRepository
	GameRepo      *repository.GameRepository
	Registry      *SessionRegistry
	Cfg           *config.Config
}

func NewUnlockService(
	pictureRepo *repository.PictureRepository,
	recipientRepo *repository.RecipientRepository,
	attemptRepo *repository.AttemptRepository,
	gameRepo *repository.GameRepository,
	registry *SessionRegistry,
	cfg *config.Config,
) *UnlockService {
	return &UnlockService{
		PictureRepo:   pictureRepo,
		RecipientRepo: recipientRepo,
		AttemptRepo:   attemptRepo,
		GameRepo:      gameRepo,
		Registry:      registry,
		Cfg:           cfg,
	}
}

// PictureRef 解锁后返回给客户端的内容引用
type PictureRef struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	FileURL  string `json:"fileUrl"`
	ThumbURL string `json:"thumbUrl,omitempty"`
}

// ChallengeResult 开局结果：已解锁时直接带图，否则带会话和游戏参数
type ChallengeResult struct {
	SessionID string      `json:"sessionId,omitempty"`
	Game      *model.Game `json:"game,omitempty"`
	Unlocked  bool        `json:"unlocked"`
	Picture   *PictureRef `json:"picture,omitempty"`
}

// VerifyResult 校验结果
type VerifyResult struct {
	Success bool        `json:"success"`
	Picture *PictureRef `json:"picture,omitempty"`
}

// SharedView 分享页视图：锁定时是游戏入口，解锁后是图片
type SharedView struct {
	PictureID uint                  `json:"pictureId"`
	Status    model.RecipientStatus `json:"status"`
	Title     string                `json:"title"`
	Game      *model.Game           `json:"game,omitempty"`
	Picture   *PictureRef           `json:"picture,omitempty"`
}

func pictureRef(p *model.Picture) *PictureRef {
	return &PictureRef{
		ID:       p.ID,
		Title:    p.Title,
		FileURL:  p.FileURL,
		ThumbURL: p.ThumbURL,
	}
}

// StartChallengeForToken 解锁模式开局。校验图片可用性（过期/配额），
// 找到或创建接收者记录；已解锁的一对直接短路返回图片，不再发会话。
func (s *UnlockService) StartChallengeForToken(token, identity string) (*ChallengeResult, error) {
	if identity == "" {
		return nil, util.ErrIdentityRequired
	}

	picture, err := s.PictureRepo.FindByShareToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPictureNotFound
		}
		return nil, err
	}

	// 已解锁的接收者不受过期/配额影响，先查再做可用性检查
	if rec, err := s.RecipientRepo.Find(picture.ID, identity); err == nil && rec.Unlocked() {
		return &ChallengeResult{Unlocked: true, Picture: pictureRef(picture)}, nil
	}

	now := time.Now()
	if picture.Expired(now) {
		return nil, util.ErrPictureGone
	}
	if picture.QuotaExhausted() {
		return nil, util.ErrQuotaExceeded
	}

	game, err := s.GameRepo.FindByID(picture.RequiredGameID)
	if err != nil {
		return nil, util.ErrGameNotFound
	}

	recipient, err := s.RecipientRepo.FindOrCreate(picture.ID, identity)
	if err != nil {
		return nil, err
	}
	if recipient.Unlocked() {
		return &ChallengeResult{Unlocked: true, Picture: pictureRef(picture)}, nil
	}

	attempt := &model.UnlockAttempt{
		RecipientID: recipient.ID,
		GameID:      game.ID,
		StartedAt:   now,
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}

	session := s.Registry.Start(game.Slug, &picture.ID, &recipient.ID, &attempt.ID)
	monitoring.LiveSessions.Set(float64(s.Registry.Len()))

	return &ChallengeResult{
		SessionID: session.ID,
		Game:      game,
		Unlocked:  false,
	}, nil
}

// StartChallengeForGame 普通模式开局：只玩游戏，不关联任何图片
func (s *UnlockService) StartChallengeForGame(slug string) (*ChallengeResult, error) {
	game, err := s.GameRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrGameNotFound
		}
		return nil, err
	}

	session := s.Registry.Start(game.Slug, nil, nil, nil)
	monitoring.LiveSessions.Set(float64(s.Registry.Len()))

	return &ChallengeResult{
		SessionID: session.ID,
		Game:      game,
	}, nil
}

// VerifyCompletion 校验完成证明。会话单次消费加常数时间签名比较；
// 无效会话和签名不符对外都是同一个 ErrVerificationFailed，
// 不给探测者区分失败环节的余地。
func (s *UnlockService) VerifyCompletion(sessionID, signature string, score int) (*VerifyResult, error) {
	session, err := s.Registry.Consume(sessionID)
	monitoring.LiveSessions.Set(float64(s.Registry.Len()))
	if err != nil {
		// 没有会话可归因，不写任何记录
		monitoring.VerificationCounter.WithLabelValues("invalid_session").Inc()
		return nil, util.ErrVerificationFailed
	}

	now := time.Now()

	if !util.VerifyCompletionSignature(session.ID, session.GameSlug, s.Cfg.Unlock.Secret, signature) {
		s.completeAttempt(session, false, score, now)
		monitoring.VerificationCounter.WithLabelValues("bad_signature").Inc()
		return nil, util.ErrVerificationFailed
	}

	// 普通模式：没有解锁目标，返回通用成功
	if session.PictureID == nil || session.RecipientID == nil {
		monitoring.VerificationCounter.WithLabelValues("won").Inc()
		return &VerifyResult{Success: true}, nil
	}

	// 同一接收者可以并行持有多个会话（每次开局一个）。
	// 计数只在 locked → unlocked 的那一次转换上 +1，
	// 已解锁后赢下的后续局直接给图，不再动配额。
	recipient, err := s.RecipientRepo.FindByID(*session.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient.Unlocked() {
		s.completeAttempt(session, true, score, now)
		monitoring.VerificationCounter.WithLabelValues("won").Inc()
		picture, err := s.PictureRepo.FindByID(*session.PictureID)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Success: true, Picture: pictureRef(picture)}, nil
	}

	// 配额检查和计数自增在存储层同一条语句里完成，
	// 并发的两个有效签名最多放行配额内的数量
	allowed, err := s.PictureRepo.IncrementUnlockIfQuotaAllows(*session.PictureID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.completeAttempt(session, false, score, now)
		monitoring.VerificationCounter.WithLabelValues("quota_exceeded").Inc()
		return nil, util.ErrQuotaExceeded
	}

	transitioned, err := s.RecipientRepo.MarkUnlocked(*session.RecipientID, now)
	if err != nil {
		logger.Log.Error("failed to mark recipient unlocked",
			zap.Uint("recipientId", *session.RecipientID), zap.Error(err))
		return nil, err
	}
	if !transitioned {
		// 输给了同一接收者的并发胜局：转换已经记过一次数，退还这一次
		if err := s.PictureRepo.DecrementUnlock(*session.PictureID); err != nil {
			logger.Log.Error("failed to return unlock quota slot",
				zap.Uint("pictureId", *session.PictureID), zap.Error(err))
		}
	}

	s.completeAttempt(session, true, score, now)
	monitoring.VerificationCounter.WithLabelValues("won").Inc()
	if transitioned {
		monitoring.UnlockCounter.Inc()
	}

	picture, err := s.PictureRepo.FindByID(*session.PictureID)
	if err != nil {
		return nil, err
	}

	if transitioned {
		logger.Log.Info("picture unlocked",
			zap.Uint("pictureId", picture.ID),
			zap.Uint("recipientId", *session.RecipientID),
			zap.Int("score", score))
	}

	return &VerifyResult{Success: true, Picture: pictureRef(picture)}, nil
}

// completeAttempt 落审计记录。写失败只记日志，不影响已得出的校验结果
func (s *UnlockService) completeAttempt(session *GameSession, success bool, score int, at time.Time) {
	if session.AttemptID == nil {
		return
	}
	if err := s.AttemptRepo.Complete(*session.AttemptID, success, score, at); err != nil {
		logger.Log.Error("failed to record unlock attempt",
			zap.Uint("attemptId", *session.AttemptID), zap.Error(err))
	}
}

// ViewShared 分享页。已解锁的接收者总能看图（首次访问推进到 viewed），
// 锁定的接收者拿到游戏入口；过期只拦截尚未解锁的访问。
func (s *UnlockService) ViewShared(token, identity string) (*SharedView, error) {
	if identity == "" {
		return nil, util.ErrIdentityRequired
	}

	picture, err := s.PictureRepo.FindByShareToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPictureNotFound
		}
		return nil, err
	}

	now := time.Now()

	recipient, err := s.RecipientRepo.Find(picture.ID, identity)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// 新接收者：只有未过期、配额未满的分享才建记录
		if picture.Expired(now) {
			return nil, util.ErrPictureGone
		}
		if picture.QuotaExhausted() {
			return nil, util.ErrQuotaExceeded
		}
		recipient, err = s.RecipientRepo.FindOrCreate(picture.ID, identity)
		if err != nil {
			return nil, err
		}
	}

	if recipient.Unlocked() {
		if recipient.Status == model.StatusUnlocked {
			if err := s.RecipientRepo.MarkViewed(recipient.ID, now); err != nil {
				logger.Log.Error("failed to mark recipient viewed",
					zap.Uint("recipientId", recipient.ID), zap.Error(err))
			}
		}
		return &SharedView{
			PictureID: picture.ID,
			Status:    model.StatusViewed,
			Title:     picture.Title,
			Picture:   pictureRef(picture),
		}, nil
	}

	if picture.Expired(now) {
		return &SharedView{PictureID: picture.ID, Status: model.StatusExpired, Title: picture.Title}, nil
	}

	game, err := s.GameRepo.FindByID(picture.RequiredGameID)
	if err != nil {
		return nil, util.ErrGameNotFound
	}

	return &SharedView{
		PictureID: picture.ID,
		Status:    model.StatusLocked,
		Title:     picture.Title,
		Game:      game,
	}, nil
}

// SweepSessions 后台定时清理废弃会话
func (s *UnlockService) SweepSessions() {
	removed := s.Registry.Sweep(s.Cfg.Unlock.SessionTTL)
	monitoring.LiveSessions.Set(float64(s.Registry.Len()))
	if removed > 0 {
		logger.Log.Info("swept abandoned game sessions", zap.Int("removed", removed))
	}
}

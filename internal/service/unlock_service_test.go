package service

import (
	"fmt"
	"os"
	"picshare_backend/internal/config"
	"picshare_backend/internal/model"
	"picshare_backend/internal/repository"
	"picshare_backend/internal/util"
	"picshare_backend/pkg/logger"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "unit-test-unlock-secret"

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type unlockFixture struct {
	svc      *UnlockService
	db       *gorm.DB
	pictures *repository.PictureRepository
	recips   *repository.RecipientRepository
	attempts *repository.AttemptRepository
	games    *repository.GameRepository
	suika    *model.Game
}

func setupUnlock(t *testing.T) *unlockFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存库串行访问，并发正确性由被测代码保证
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Game{},
		&model.Picture{},
		&model.PictureRecipient{},
		&model.UnlockAttempt{},
	))

	suika := &model.Game{Slug: "suika", Name: "合成大西瓜", Enabled: true}
	require.NoError(t, db.Create(suika).Error)

	cfg := &config.Config{}
	cfg.Unlock.Secret = testSecret
	cfg.Unlock.SessionTTL = 30 * time.Minute

	pictures := repository.NewPictureRepository(db)
	recips := repository.NewRecipientRepository(db)
	attempts := repository.NewAttemptRepository(db)
	games := repository.NewGameRepository(db)

	return &unlockFixture{
		svc:      NewUnlockService(pictures, recips, attempts, games, NewSessionRegistry(), cfg),
		db:       db,
		pictures: pictures,
		recips:   recips,
		attempts: attempts,
		games:    games,
		suika:    suika,
	}
}

func (f *unlockFixture) createShared(t *testing.T, maxUnlocks int, expiresAt *time.Time) *model.Picture {
	t.Helper()
	p := &model.Picture{
		OwnerID:        1,
		Title:          "sunset",
		FileURL:        "/uploads/sunset.jpg",
		ShareToken:     model.GenerateUUID(),
		RequiredGameID: f.suika.ID,
		MaxUnlocks:     maxUnlocks,
		ExpiresAt:      expiresAt,
	}
	require.NoError(t, f.pictures.Create(p))
	return p
}

func (f *unlockFixture) winSignature(sessionID string) string {
	return util.SignCompletion(sessionID, f.suika.Slug, testSecret)
}

func TestStartChallengeForTokenIssuesSessionAndAttempt(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	res, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:viewer-1")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	require.False(t, res.Unlocked)
	require.Equal(t, "suika", res.Game.Slug)

	rec, err := f.recips.Find(p.ID, "anon:viewer-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusLocked, rec.Status)

	count, err := f.attempts.CountByRecipient(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStartChallengeRequiresIdentity(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	_, err := f.svc.StartChallengeForToken(p.ShareToken, "")
	assert.ErrorIs(t, err, util.ErrIdentityRequired)
}

func TestStartChallengeUnknownToken(t *testing.T) {
	f := setupUnlock(t)

	_, err := f.svc.StartChallengeForToken("no-such-token", "anon:v")
	assert.ErrorIs(t, err, util.ErrPictureNotFound)
}

func TestStartChallengeExpiredCreatesNoSession(t *testing.T) {
	f := setupUnlock(t)
	past := time.Now().Add(-time.Hour)
	p := f.createShared(t, 0, &past)

	_, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:v")
	assert.ErrorIs(t, err, util.ErrPictureGone)
	assert.Equal(t, 0, f.svc.Registry.Len())
}

func TestStartChallengeQuotaExhausted(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 1, nil)
	p.CurrentUnlocks = 1
	require.NoError(t, f.pictures.Update(p))

	_, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:v")
	assert.ErrorIs(t, err, util.ErrQuotaExceeded)
}

func TestStartChallengeSameIdentityReusesRecipient(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	_, err := f.svc.StartChallengeForToken(p.ShareToken, "user:42")
	require.NoError(t, err)
	_, err = f.svc.StartChallengeForToken(p.ShareToken, "user:42")
	require.NoError(t, err)

	var count int64
	f.db.Model(&model.PictureRecipient{}).Where("picture_id = ?", p.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	rec, err := f.recips.Find(p.ID, "user:42")
	require.NoError(t, err)
	attempts, err := f.attempts.CountByRecipient(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), attempts)
}

func TestVerifyCompletionUnlocksAndCounts(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:winner")
	require.NoError(t, err)

	res, err := f.svc.VerifyCompletion(start.SessionID, f.winSignature(start.SessionID), 1280)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Picture)
	assert.Equal(t, p.FileURL, res.Picture.FileURL)

	rec, err := f.recips.Find(p.ID, "anon:winner")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnlocked, rec.Status)
	assert.NotNil(t, rec.UnlockedAt)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUnlocks)

	var attempt model.UnlockAttempt
	require.NoError(t, f.db.Where("recipient_id = ?", rec.ID).First(&attempt).Error)
	assert.True(t, attempt.Success)
	assert.Equal(t, 1280, attempt.Score)
	assert.NotNil(t, attempt.CompletedAt)
}

func TestVerifyCompletionReplayFails(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:replayer")
	require.NoError(t, err)
	sig := f.winSignature(start.SessionID)

	_, err = f.svc.VerifyCompletion(start.SessionID, sig, 100)
	require.NoError(t, err)

	// 同一会话同一有效签名重放：必须失败，计数不再增加
	_, err = f.svc.VerifyCompletion(start.SessionID, sig, 100)
	assert.ErrorIs(t, err, util.ErrVerificationFailed)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUnlocks)
}

func TestVerifyCompletionBadSignature(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:cheater")
	require.NoError(t, err)

	_, err = f.svc.VerifyCompletion(start.SessionID, "deadbeef", 9999)
	assert.ErrorIs(t, err, util.ErrVerificationFailed)

	rec, err := f.recips.Find(p.ID, "anon:cheater")
	require.NoError(t, err)
	assert.Equal(t, model.StatusLocked, rec.Status)

	var attempt model.UnlockAttempt
	require.NoError(t, f.db.Where("recipient_id = ?", rec.ID).First(&attempt).Error)
	assert.False(t, attempt.Success)
	assert.Equal(t, 9999, attempt.Score)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentUnlocks)
}

func TestVerifyCompletionUnknownSession(t *testing.T) {
	f := setupUnlock(t)

	_, err := f.svc.VerifyCompletion("forged-session", "whatever", 0)
	assert.ErrorIs(t, err, util.ErrVerificationFailed)
}

func TestStartAfterUnlockShortCircuits(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "user:7")
	require.NoError(t, err)
	_, err = f.svc.VerifyCompletion(start.SessionID, f.winSignature(start.SessionID), 50)
	require.NoError(t, err)

	rec, err := f.recips.Find(p.ID, "user:7")
	require.NoError(t, err)
	attemptsBefore, _ := f.attempts.CountByRecipient(rec.ID)

	// 已解锁后再开局：直接给图，不发会话，不记新尝试
	res, err := f.svc.StartChallengeForToken(p.ShareToken, "user:7")
	require.NoError(t, err)
	assert.True(t, res.Unlocked)
	assert.Empty(t, res.SessionID)
	require.NotNil(t, res.Picture)

	assert.Equal(t, 0, f.svc.Registry.Len())
	attemptsAfter, _ := f.attempts.CountByRecipient(rec.ID)
	assert.Equal(t, attemptsBefore, attemptsAfter)
}

func TestQuotaOneConcurrentWinnersExactlyOneUnlock(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 1, nil)

	startA, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:a")
	require.NoError(t, err)
	startB, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:b")
	require.NoError(t, err)

	type outcome struct {
		res *VerifyResult
		err error
	}
	results := make([]outcome, 2)
	var wg sync.WaitGroup
	gate := make(chan struct{})

	for i, s := range []*ChallengeResult{startA, startB} {
		wg.Add(1)
		go func(i int, sessionID string) {
			defer wg.Done()
			<-gate
			res, err := f.svc.VerifyCompletion(sessionID, f.winSignature(sessionID), 10)
			results[i] = outcome{res, err}
		}(i, s.SessionID)
	}
	close(gate)
	wg.Wait()

	// 两个签名都有效，配额只放行一个
	successes := 0
	quotaFailures := 0
	for _, o := range results {
		if o.err == nil && o.res.Success {
			successes++
		}
		if o.err == util.ErrQuotaExceeded {
			quotaFailures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, quotaFailures)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUnlocks)

	unlocked, err := f.recips.CountUnlockedByPicture(p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unlocked)
}

func TestSameRecipientTwoSessionsIncrementsOnce(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	// 同一接收者锁定期间开两局，两局的会话都有效
	startA, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:twice")
	require.NoError(t, err)
	startB, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:twice")
	require.NoError(t, err)

	resA, err := f.svc.VerifyCompletion(startA.SessionID, f.winSignature(startA.SessionID), 10)
	require.NoError(t, err)
	assert.True(t, resA.Success)

	// 第二局照样算赢、照样给图，但计数只在第一次转换上 +1
	resB, err := f.svc.VerifyCompletion(startB.SessionID, f.winSignature(startB.SessionID), 20)
	require.NoError(t, err)
	assert.True(t, resB.Success)
	require.NotNil(t, resB.Picture)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUnlocks)

	rec, err := f.recips.Find(p.ID, "anon:twice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnlocked, rec.Status)
}

func TestSameRecipientConcurrentWinsIncrementOnce(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	startA, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:race")
	require.NoError(t, err)
	startB, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:race")
	require.NoError(t, err)

	var wg sync.WaitGroup
	gate := make(chan struct{})
	errs := make([]error, 2)
	for i, id := range []string{startA.SessionID, startB.SessionID} {
		wg.Add(1)
		go func(i int, sessionID string) {
			defer wg.Done()
			<-gate
			_, errs[i] = f.svc.VerifyCompletion(sessionID, f.winSignature(sessionID), 1)
		}(i, id)
	}
	close(gate)
	wg.Wait()

	// 两局都是合法胜利，谁先转换无所谓，计数最终是 1
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentUnlocks)
}

func TestDoubleWinDoesNotBurnQuotaForOthers(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 2, nil)

	startA1, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:a")
	require.NoError(t, err)
	startA2, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:a")
	require.NoError(t, err)
	startB, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:b")
	require.NoError(t, err)

	_, err = f.svc.VerifyCompletion(startA1.SessionID, f.winSignature(startA1.SessionID), 1)
	require.NoError(t, err)
	_, err = f.svc.VerifyCompletion(startA2.SessionID, f.winSignature(startA2.SessionID), 1)
	require.NoError(t, err)

	// A 赢了两局也只占一个配额名额，B 的名额必须还在
	resB, err := f.svc.VerifyCompletion(startB.SessionID, f.winSignature(startB.SessionID), 1)
	require.NoError(t, err)
	assert.True(t, resB.Success)

	updated, err := f.pictures.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentUnlocks)

	unlocked, err := f.recips.CountUnlockedByPicture(p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unlocked)
}

func TestViewSharedTransitionsToViewed(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	// 锁定状态：给游戏入口
	view, err := f.svc.ViewShared(p.ShareToken, "anon:viewer")
	require.NoError(t, err)
	assert.Equal(t, model.StatusLocked, view.Status)
	require.NotNil(t, view.Game)
	assert.Nil(t, view.Picture)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "anon:viewer")
	require.NoError(t, err)
	_, err = f.svc.VerifyCompletion(start.SessionID, f.winSignature(start.SessionID), 1)
	require.NoError(t, err)

	// 解锁后首次查看推进到 viewed
	view, err = f.svc.ViewShared(p.ShareToken, "anon:viewer")
	require.NoError(t, err)
	assert.Equal(t, model.StatusViewed, view.Status)
	require.NotNil(t, view.Picture)

	rec, err := f.recips.Find(p.ID, "anon:viewer")
	require.NoError(t, err)
	assert.Equal(t, model.StatusViewed, rec.Status)
	assert.NotNil(t, rec.OpenedAt)

	// 再看一次仍然给图，状态不再变化
	view, err = f.svc.ViewShared(p.ShareToken, "anon:viewer")
	require.NoError(t, err)
	assert.Equal(t, model.StatusViewed, view.Status)
	require.NotNil(t, view.Picture)
}

func TestUnlockedRecipientKeepsAccessAfterExpiry(t *testing.T) {
	f := setupUnlock(t)
	p := f.createShared(t, 0, nil)

	start, err := f.svc.StartChallengeForToken(p.ShareToken, "user:9")
	require.NoError(t, err)
	_, err = f.svc.VerifyCompletion(start.SessionID, f.winSignature(start.SessionID), 5)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	p.ExpiresAt = &past
	require.NoError(t, f.pictures.Update(p))

	// 过期只拦新解锁，已解锁的照常访问
	res, err := f.svc.StartChallengeForToken(p.ShareToken, "user:9")
	require.NoError(t, err)
	assert.True(t, res.Unlocked)

	view, err := f.svc.ViewShared(p.ShareToken, "user:9")
	require.NoError(t, err)
	require.NotNil(t, view.Picture)

	// 新接收者吃闭门羹
	_, err = f.svc.StartChallengeForToken(p.ShareToken, "user:10")
	assert.ErrorIs(t, err, util.ErrPictureGone)
	_, err = f.svc.ViewShared(p.ShareToken, "user:10")
	assert.ErrorIs(t, err, util.ErrPictureGone)
}

func TestStandardModeChallenge(t *testing.T) {
	f := setupUnlock(t)

	start, err := f.svc.StartChallengeForGame("suika")
	require.NoError(t, err)
	require.NotEmpty(t, start.SessionID)

	res, err := f.svc.VerifyCompletion(start.SessionID, f.winSignature(start.SessionID), 777)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.Picture)
}

func TestStandardModeUnknownGame(t *testing.T) {
	f := setupUnlock(t)

	_, err := f.svc.StartChallengeForGame("tetris")
	assert.ErrorIs(t, err, util.ErrGameNotFound)
}

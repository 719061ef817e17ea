package service

import (
	"picshare_backend/internal/util"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GameSession 一次已开始的挑战与（可选的）解锁目标之间的一次性绑定。
// 纯内存，不落库；进程重启丢失全部会话只会让客户端重新开局。
type GameSession struct {
	ID          string
	GameSlug    string
	PictureID   *uint
	RecipientID *uint
	AttemptID   *uint
	CreatedAt   time.Time
}

// SessionRegistry 并发安全的会话表。Consume 是原子的取出并删除，
// 这是防重放的唯一机制：签名对固定会话是稳定的，单次消费才挡住重放。
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*GameSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*GameSession),
	}
}

// Start 签发新会话。uuid v4 由 crypto/rand 驱动，撞上存活 id 时重新生成。
func (r *SessionRegistry) Start(gameSlug string, pictureID, recipientID, attemptID *uint) *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = uuid.New().String()
	}

	s := &GameSession{
		ID:          id,
		GameSlug:    gameSlug,
		PictureID:   pictureID,
		RecipientID: recipientID,
		AttemptID:   attemptID,
		CreatedAt:   time.Now(),
	}
	r.sessions[id] = s
	return s
}

// Consume 取出并删除，同一把锁内完成。并发用同一 id 调用时
// 恰好一个调用者拿到记录，其余得到 ErrInvalidSession。
func (r *SessionRegistry) Consume(id string) (*GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return nil, util.ErrInvalidSession
	}
	delete(r.sessions, id)
	return s, nil
}

// Sweep 清理超过 maxAge 未完成的会话，返回清理数量。
// 只是内存卫生，重放安全不依赖它。
func (r *SessionRegistry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

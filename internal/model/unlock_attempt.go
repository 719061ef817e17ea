package model

import "time"

// UnlockAttempt 一次游戏挑战的审计记录，完成后不再修改
// swagger:model UnlockAttempt
type UnlockAttempt struct {
	BaseModel

	RecipientID uint       `gorm:"index;type:bigint unsigned" json:"recipientId"`
	GameID      uint       `gorm:"index;type:bigint unsigned" json:"gameId"`
	Score       int        `json:"score"`
	Success     bool       `gorm:"default:false" json:"success"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (UnlockAttempt) TableName() string {
	return "unlock_attempts"
}

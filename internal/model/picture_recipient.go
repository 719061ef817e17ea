package model

import "time"

type RecipientStatus string

const (
	StatusLocked   RecipientStatus = "locked"
	StatusUnlocked RecipientStatus = "unlocked"
	StatusViewed   RecipientStatus = "viewed"
	// StatusExpired 仅作为读取时的派生状态返回给前端，不落库
	StatusExpired RecipientStatus = "expired"
)

// PictureRecipient 每个（图片，接收者身份）对的解锁状态，一对至多一条。
// 身份为 "user:<id>" 或 "anon:<viewerId>"。
// swagger:model PictureRecipient
type PictureRecipient struct {
	BaseModel
	PictureID  uint            `gorm:"uniqueIndex:idx_picture_identity;type:bigint unsigned;not null" json:"pictureId"`
	Identity   string          `gorm:"uniqueIndex:idx_picture_identity;size:120;not null" json:"identity"`
	Status     RecipientStatus `gorm:"type:varchar(20);default:'locked'" json:"status"`
	ReceivedAt time.Time       `json:"receivedAt"`
	UnlockedAt *time.Time      `json:"unlockedAt,omitempty"`
	OpenedAt   *time.Time      `json:"openedAt,omitempty"`

	Attempts []UnlockAttempt `gorm:"foreignKey:RecipientID" json:"attempts,omitempty"`
}

func (PictureRecipient) TableName() string {
	return "picture_recipients"
}

// Unlocked 状态只前进，unlocked 与 viewed 都算已解锁
func (r *PictureRecipient) Unlocked() bool {
	return r.Status == StatusUnlocked || r.Status == StatusViewed
}

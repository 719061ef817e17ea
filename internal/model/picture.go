package model

import "time"

// swagger:model Picture
type Picture struct {
	BaseModel
	OwnerID  uint   `gorm:"index;type:bigint unsigned;not null" json:"ownerId"`
	Title    string `gorm:"size:200" json:"title"`
	FileURL  string `gorm:"size:500;not null" json:"fileUrl"`
	ThumbURL string `gorm:"size:500" json:"thumbUrl"`
	MimeType string `gorm:"size:100" json:"mimeType"`
	SizeByte int64  `json:"sizeByte"`

	// 分享与解锁策略
	ShareToken     string     `gorm:"size:36;uniqueIndex" json:"shareToken"`
	RequiredGameID uint       `gorm:"index;type:bigint unsigned" json:"requiredGameId"`
	RequiredGame   *Game      `gorm:"foreignKey:RequiredGameID" json:"requiredGame,omitempty"`
	MaxUnlocks     int        `gorm:"default:0" json:"maxUnlocks"` // 0 表示不限次数
	CurrentUnlocks int        `gorm:"default:0" json:"currentUnlocks"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`

	Recipients []PictureRecipient `gorm:"foreignKey:PictureID" json:"recipients,omitempty"`
}

func (Picture) TableName() string {
	return "pictures"
}

// Expired 过期按墙钟时间实时判定，不缓存
func (p *Picture) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// QuotaExhausted 配额为 0 表示不限
func (p *Picture) QuotaExhausted() bool {
	return p.MaxUnlocks > 0 && p.CurrentUnlocks >= p.MaxUnlocks
}

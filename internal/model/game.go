package model

// swagger:model Game
type Game struct {
	BaseModel
	Slug        string `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	// 嵌入式游戏引擎的启动参数（重力、速度等），前端原样透传
	EngineParams string `gorm:"type:json" json:"engineParams"`
	Enabled      bool   `gorm:"default:true" json:"enabled"`
}

func (Game) TableName() string {
	return "games"
}

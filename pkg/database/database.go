package database

import (
	"fmt"
	"log"
	"picshare_backend/internal/config"
	"picshare_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 唯一索引冲突要翻译成 gorm.ErrDuplicatedKey 才能被仓储层识别
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}

// Migrate 执行表结构迁移并写入默认小游戏目录
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Game{},
		&model.Picture{},
		&model.PictureRecipient{},
		&model.UnlockAttempt{},
	)
	if err != nil {
		return err
	}

	// 默认小游戏（目录为空时插入）
	var count int64
	db.Model(&model.Game{}).Count(&count)
	if count == 0 {
		defaultGames := []model.Game{
			{Slug: "suika", Name: "合成大西瓜", Description: "投放水果，合成更大的水果", EngineParams: `{"gravity":1.0,"dropCooldownMs":500}`, Enabled: true},
			{Slug: "flappy", Name: "小鸟穿柱", Description: "点击飞行，穿过柱子间隙", EngineParams: `{"pipeGap":140,"speed":2.4}`, Enabled: true},
			{Slug: "breakout", Name: "打砖块", Description: "弹板接球，清空全部砖块", EngineParams: `{"rows":5,"ballSpeed":3.0}`, Enabled: true},
			{Slug: "maze", Name: "重力迷宫", Description: "倾斜迷宫，滚球到达终点", EngineParams: `{"tiltMax":30}`, Enabled: true},
		}
		for _, g := range defaultGames {
			db.Create(&g)
		}
	}

	return nil
}

// 手动清理废弃的解锁尝试记录
//
// 开局后从未提交校验的尝试（completed_at 为空）只占审计表空间，
// 超过保留期后可以安全删除。定期清理可以挂 cron，此脚本用于手动触发。
//
// 用法: go run scripts/prune_attempts.go [保留天数，默认 30]

package main

import (
	"log"
	"os"
	"picshare_backend/internal/config"
	"picshare_backend/internal/model"
	"picshare_backend/pkg/database"
	"picshare_backend/pkg/logger"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	retentionDays := 30
	if len(os.Args) > 1 {
		if n, err := strconv.Atoi(os.Args[1]); err == nil && n > 0 {
			retentionDays = n
		}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := db.Where("completed_at IS NULL AND started_at < ?", cutoff).
		Delete(&model.UnlockAttempt{})
	if res.Error != nil {
		log.Fatalf("清理失败: %v", res.Error)
	}
	log.Printf("已删除 %d 条超过 %d 天的废弃尝试记录", res.RowsAffected, retentionDays)
}

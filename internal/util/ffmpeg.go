package util

import (
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// GenerateImageThumbnail 使用ffmpeg-go生成图片缩略图，宽度缩放到
// maxWidth，高度按比例（-1 保持宽高比）
func GenerateImageThumbnail(imagePath, thumbnailPath string, maxWidth int) error {
	dir := filepath.Dir(thumbnailPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建缩略图目录失败: %v", err)
	}

	return ffmpeg.Input(imagePath).
		Output(thumbnailPath, ffmpeg.KwArgs{
			"vf":  fmt.Sprintf("scale=%d:-1", maxWidth),
			"q:v": "2", // 图像质量 (1-31, 越小质量越高)
		}).
		OverWriteOutput().
		Run()
}

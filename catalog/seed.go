package catalog

import (
	"time"

	"github.com/cppla/myresource/models"
)

const (
	gib = 1024 * 1024 * 1024
	mib = 1024 * 1024
)

// 2.3 GiB is not a whole number of bytes; the fraction is dropped at runtime.
var photoshopSize = 2.3 * gib

// SeedResources returns the two demo records written into an empty catalog.
func SeedResources(now time.Time) []models.Resource {
	now = now.UTC().Truncate(time.Millisecond)
	return []models.Resource{
		{
			ID:          "1",
			Name:        "Photoshop 2023 安装包.zip",
			Category:    models.CategorySoftware,
			Size:        int64(photoshopSize),
			Date:        now,
			Tags:        []string{"设计", "软件", "工具"},
			Description: "Adobe Photoshop 2023 最新版本，包含激活工具",
			Downloads:   124,
			Type:        "ZIP压缩包",
		},
		{
			ID:          "2",
			Name:        "React框架入门教程.mp4",
			Category:    models.CategoryVideo,
			Size:        450 * mib,
			Date:        now.Add(-7 * 24 * time.Hour),
			Tags:        []string{"教程", "编程", "前端"},
			Description: "React框架从入门到精通完整视频教程",
			Downloads:   89,
			Type:        "MP4视频",
		},
	}
}

package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
)

// 接收者身份前缀：登录用户用 user:，匿名访客用 anon:
const (
	IdentityUserPrefix = "user:"
	IdentityAnonPrefix = "anon:"
)

var (
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
)

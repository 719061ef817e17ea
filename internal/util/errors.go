package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")
	ErrGameNotFound     = errors.New("game not found")
	ErrPictureNotFound  = errors.New("picture not found")
	ErrPictureGone      = errors.New("picture share expired")
	ErrQuotaExceeded    = errors.New("unlock quota exceeded")
	ErrIdentityRequired = errors.New("recipient identity required")

	// ErrInvalidSession 与 ErrSignatureMismatch 对外统一归并为
	// ErrVerificationFailed，避免暴露失败环节被用来探测
	ErrInvalidSession     = errors.New("invalid or consumed session")
	ErrSignatureMismatch  = errors.New("completion signature mismatch")
	ErrVerificationFailed = errors.New("verification failed")
)

package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// 完成证明的报文格式：sessionID|gameSlug|WIN。
// 分隔符 "|" 不会出现在 uuid 或游戏 slug 中。
// 该格式是客户端协议的一部分，改动必须升版本。
const (
	completionDelimiter = "|"
	completionWinTag    = "WIN"
)

// CompletionMessage 拼接完成证明的规范报文
func CompletionMessage(sessionID, gameSlug string) string {
	return strings.Join([]string{sessionID, gameSlug, completionWinTag}, completionDelimiter)
}

// SignCompletion 对规范报文计算 HMAC-SHA256，输出 hex
func SignCompletion(sessionID, gameSlug, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CompletionMessage(sessionID, gameSlug)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCompletionSignature 重算期望签名并做常数时间比较
func VerifyCompletionSignature(sessionID, gameSlug, secret, candidate string) bool {
	expected := SignCompletion(sessionID, gameSlug, secret)
	return hmac.Equal([]byte(expected), []byte(candidate))
}

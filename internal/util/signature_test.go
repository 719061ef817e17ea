package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignCompletionDeterministic(t *testing.T) {
	sig1 := SignCompletion("session-1", "suika", "secret")
	sig2 := SignCompletion("session-1", "suika", "secret")
	require.Equal(t, sig1, sig2)
	require.Len(t, sig1, 64) // hex(sha256)
}

func TestVerifyCompletionSignatureRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		sessionID string
		gameSlug  string
		secret    string
	}{
		{"uuid session", "2b1f9c1e-5a34-4a6c-9c2e-0d5f4a7b8c9d", "suika", "shared-secret"},
		{"short values", "s", "g", "k"},
		{"unicode secret", "session", "flappy", "密钥"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := SignCompletion(tc.sessionID, tc.gameSlug, tc.secret)
			assert.True(t, VerifyCompletionSignature(tc.sessionID, tc.gameSlug, tc.secret, sig))
		})
	}
}

func TestVerifyCompletionSignatureRejectsMutations(t *testing.T) {
	sig := SignCompletion("session-1", "suika", "secret")

	assert.False(t, VerifyCompletionSignature("session-2", "suika", "secret", sig), "different session")
	assert.False(t, VerifyCompletionSignature("session-1", "flappy", "secret", sig), "different game")
	assert.False(t, VerifyCompletionSignature("session-1", "suika", "other", sig), "different key")

	// 签名改一个字节
	mutated := []byte(sig)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}
	assert.False(t, VerifyCompletionSignature("session-1", "suika", "secret", string(mutated)))

	assert.False(t, VerifyCompletionSignature("session-1", "suika", "secret", ""))
	assert.False(t, VerifyCompletionSignature("session-1", "suika", "secret", sig+"00"))
}

func TestCompletionMessageFormat(t *testing.T) {
	// 报文格式是客户端协议，不能悄悄变
	require.Equal(t, "abc|suika|WIN", CompletionMessage("abc", "suika"))
}

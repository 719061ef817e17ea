package service

import (
	"picshare_backend/internal/util"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryStartAndConsume(t *testing.T) {
	reg := NewSessionRegistry()

	pictureID := uint(7)
	recipientID := uint(3)
	attemptID := uint(11)
	s := reg.Start("suika", &pictureID, &recipientID, &attemptID)
	require.NotEmpty(t, s.ID)
	require.Equal(t, 1, reg.Len())

	got, err := reg.Consume(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "suika", got.GameSlug)
	assert.Equal(t, pictureID, *got.PictureID)
	assert.Equal(t, recipientID, *got.RecipientID)
	assert.Equal(t, attemptID, *got.AttemptID)
	assert.Equal(t, 0, reg.Len())
}

func TestSessionRegistryConsumeIsSingleUse(t *testing.T) {
	reg := NewSessionRegistry()
	s := reg.Start("flappy", nil, nil, nil)

	_, err := reg.Consume(s.ID)
	require.NoError(t, err)

	// 二次消费必须失败，这是防重放的根基
	_, err = reg.Consume(s.ID)
	assert.ErrorIs(t, err, util.ErrInvalidSession)
}

func TestSessionRegistryConsumeUnknownID(t *testing.T) {
	reg := NewSessionRegistry()
	_, err := reg.Consume("no-such-session")
	assert.ErrorIs(t, err, util.ErrInvalidSession)
}

func TestSessionRegistryConcurrentConsumeExactlyOneWinner(t *testing.T) {
	reg := NewSessionRegistry()
	s := reg.Start("suika", nil, nil, nil)

	const goroutines = 64
	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := reg.Consume(s.ID); err == nil {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}

func TestSessionRegistrySessionIDsAreUnique(t *testing.T) {
	reg := NewSessionRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := reg.Start("suika", nil, nil, nil)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestSessionRegistrySweep(t *testing.T) {
	reg := NewSessionRegistry()

	old := reg.Start("suika", nil, nil, nil)
	old.CreatedAt = time.Now().Add(-time.Hour)
	fresh := reg.Start("flappy", nil, nil, nil)

	removed := reg.Sweep(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, err := reg.Consume(old.ID)
	assert.ErrorIs(t, err, util.ErrInvalidSession)
	_, err = reg.Consume(fresh.ID)
	assert.NoError(t, err)
}

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuppressedWithinHorizon(t *testing.T) {
	base := time.Now()
	clock := base
	r := NewReadStates(30 * time.Second)
	r.now = func() time.Time { return clock }

	r.MarkRead(5)

	// Server snapshot taken before the mark-read landed: last message
	// predates the local mark.
	assert.True(t, r.Suppressed(5, base.Add(-10*time.Second)))

	// Conversation never marked is never suppressed.
	assert.False(t, r.Suppressed(6, base))
}

func TestSuppressionLiftsForNewerMessage(t *testing.T) {
	base := time.Now()
	clock := base
	r := NewReadStates(30 * time.Second)
	r.now = func() time.Time { return clock }

	r.MarkRead(5)

	// A message arrived after the user read the thread; the server is
	// not stale, it is ahead.
	assert.False(t, r.Suppressed(5, base.Add(2*time.Second)))
}

func TestSuppressionExpiresAfterHorizon(t *testing.T) {
	base := time.Now()
	clock := base
	r := NewReadStates(30 * time.Second)
	r.now = func() time.Time { return clock }

	r.MarkRead(5)

	clock = base.Add(31 * time.Second)
	assert.False(t, r.Suppressed(5, base.Add(-10*time.Second)))

	// The expired entry was dropped; re-marking works as usual.
	r.MarkRead(5)
	assert.True(t, r.Suppressed(5, base.Add(-10*time.Second)))
}

func TestPurgeDropsExpiredEntriesOnly(t *testing.T) {
	base := time.Now()
	clock := base
	r := NewReadStates(30 * time.Second)
	r.now = func() time.Time { return clock }

	r.MarkRead(1)
	clock = base.Add(40 * time.Second)
	r.MarkRead(2)

	r.Purge()

	assert.False(t, r.Suppressed(1, base))
	assert.True(t, r.Suppressed(2, base))
}

func TestResetEmptiesCache(t *testing.T) {
	r := NewReadStates(30 * time.Second)
	r.MarkRead(1)
	r.Reset()
	assert.False(t, r.Suppressed(1, time.Now().Add(-time.Hour)))
}

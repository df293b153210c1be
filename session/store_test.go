package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisyphe-bot/llm"
)

func exchange(n int, at time.Time) (llm.Turn, llm.Turn) {
	user := llm.Turn{Role: llm.RoleUser, Text: "question", Time: at}
	assistant := llm.Turn{Role: llm.RoleAssistant, Text: "réponse", Time: at.Add(time.Second)}
	user.Text = user.Text + string(rune('0'+n))
	assistant.Text = assistant.Text + string(rune('0'+n))
	return user, assistant
}

func TestCommitNeverExceedsWindow(t *testing.T) {
	store := NewStore()
	now := time.Now()

	for i := 0; i < 5; i++ {
		u, a := exchange(i, now.Add(time.Duration(i)*time.Minute))
		store.Commit(7, u, a, 4, "gemini")
	}

	sess, ok := store.Get(7)
	require.True(t, ok)
	assert.Len(t, sess.Turns, 4)
	// 가장 오래된 turn 부터 버려진다
	assert.Equal(t, "question3", sess.Turns[0].Text)
	assert.Equal(t, "réponse4", sess.Turns[3].Text)
	assert.Equal(t, "gemini", sess.ProviderHint)
}

func TestSnapshotReturnsCopy(t *testing.T) {
	store := NewStore()
	now := time.Now()
	u, a := exchange(0, now)
	store.Commit(1, u, a, 10, "")

	snap := store.Snapshot(1, 10)
	require.Len(t, snap, 2)
	snap[0].Text = "mutated"

	sess, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "question0", sess.Turns[0].Text)
}

func TestSnapshotMissingSession(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.Snapshot(42, 10))
}

func TestSnapshotLimitsToRecentTurns(t *testing.T) {
	store := NewStore()
	now := time.Now()
	for i := 0; i < 4; i++ {
		u, a := exchange(i, now.Add(time.Duration(i)*time.Minute))
		store.Commit(1, u, a, 0, "")
	}

	snap := store.Snapshot(1, 4)
	require.Len(t, snap, 4)
	assert.Equal(t, "question2", snap[0].Text)
	assert.Equal(t, "réponse3", snap[3].Text)
}

func TestTouchDoesNotMutateHistory(t *testing.T) {
	store := NewStore()
	now := time.Now()
	u, a := exchange(0, now)
	store.Commit(1, u, a, 10, "")

	store.Touch(1, now.Add(time.Hour))

	sess, ok := store.Get(1)
	require.True(t, ok)
	assert.Len(t, sess.Turns, 2)
	assert.Equal(t, now.Add(time.Hour), sess.LastActivity)

	// 과거 시각으로는 되돌아가지 않는다
	store.Touch(1, now)
	sess, _ = store.Get(1)
	assert.Equal(t, now.Add(time.Hour), sess.LastActivity)
}

func TestResetRemovesSession(t *testing.T) {
	store := NewStore()
	u, a := exchange(0, time.Now())
	store.Commit(1, u, a, 10, "")

	store.Reset(1)

	_, ok := store.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestSweepExpiredRemovesIdleSessions(t *testing.T) {
	store := NewStore()
	now := time.Now()

	uOld, aOld := exchange(0, now.Add(-2*time.Hour))
	store.Commit(1, uOld, aOld, 10, "")
	uNew, aNew := exchange(1, now)
	store.Commit(2, uNew, aNew, 10, "")

	removed := store.SweepExpired(now, 30*time.Minute)

	assert.Equal(t, 1, removed)
	_, ok := store.Get(1)
	assert.False(t, ok, "idle session must be gone after sweep")
	_, ok = store.Get(2)
	assert.True(t, ok)
}

func TestSweepExpiredNoopWithoutIdle(t *testing.T) {
	store := NewStore()
	u, a := exchange(0, time.Now().Add(-time.Hour))
	store.Commit(1, u, a, 10, "")

	assert.Equal(t, 0, store.SweepExpired(time.Now(), 0))
	assert.Equal(t, 1, store.Len())
}

package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sisyphe-bot/config"
)

func newTestManager() *Manager {
	return NewManager([]config.AdminEntry{
		{UserID: 100, Nickname: "Marceline", Aliases: []string{"Marcy"}},
		{UserID: 200, Nickname: "Daniel"},
	})
}

func TestIsAdmin(t *testing.T) {
	m := newTestManager()
	assert.True(t, m.IsAdmin(100))
	assert.True(t, m.IsAdmin(200))
	assert.False(t, m.IsAdmin(300))
}

func TestNicknameFallsBackForGuests(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, "Marceline", m.Nickname(100, "whatever"))
	assert.Equal(t, "visiteur", m.Nickname(300, "visiteur"))
}

func TestDescribeIncludesAliases(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, "Marceline (aussi appelée Marcy)", m.Describe(100, "whatever"))
	assert.Equal(t, "Daniel", m.Describe(200, "whatever"))
	assert.Equal(t, "visiteur", m.Describe(300, "visiteur"))
}

func TestGet(t *testing.T) {
	m := newTestManager()
	a, ok := m.Get(100)
	assert.True(t, ok)
	assert.Equal(t, []string{"Marcy"}, a.Aliases)

	_, ok = m.Get(999)
	assert.False(t, ok)
}

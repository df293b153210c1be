// Package admin 은 특권 사용자(운영자) 목록과 호칭 규칙을 관리한다.
package admin

import (
	"strings"

	"sisyphe-bot/config"
)

// Admin is a single privileged user.
type Admin struct {
	UserID   int64
	Nickname string
	Aliases  []string
}

// Manager 는 설정에서 읽은 admin 레지스트리다. 생성 후 불변이다.
type Manager struct {
	admins map[int64]Admin
}

// NewManager 는 설정 항목으로 레지스트리를 만든다.
func NewManager(entries []config.AdminEntry) *Manager {
	admins := make(map[int64]Admin, len(entries))
	for _, e := range entries {
		admins[e.UserID] = Admin{
			UserID:   e.UserID,
			Nickname: e.Nickname,
			Aliases:  append([]string(nil), e.Aliases...),
		}
	}
	return &Manager{admins: admins}
}

// IsAdmin 은 해당 사용자가 admin 인지 확인한다.
func (m *Manager) IsAdmin(userID int64) bool {
	_, ok := m.admins[userID]
	return ok
}

// Get 은 admin 정보를 돌려준다.
func (m *Manager) Get(userID int64) (Admin, bool) {
	a, ok := m.admins[userID]
	return a, ok
}

// Nickname 은 admin 이면 등록된 호칭을, 아니면 fallback(플랫폼 이름)을 돌려준다.
func (m *Manager) Nickname(userID int64, fallback string) string {
	if a, ok := m.admins[userID]; ok {
		return a.Nickname
	}
	return fallback
}

// Describe 는 시스템 프롬프트에 넣을 호칭 설명을 만든다.
// 별칭이 있으면 "Marceline (aussi appelée Marcy, Altaīr)" 형태가 된다.
func (m *Manager) Describe(userID int64, fallback string) string {
	a, ok := m.admins[userID]
	if !ok {
		return fallback
	}
	if len(a.Aliases) == 0 {
		return a.Nickname
	}
	return a.Nickname + " (aussi appelée " + strings.Join(a.Aliases, ", ") + ")"
}

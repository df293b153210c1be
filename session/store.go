// Package session 은 채팅별 단기 대화 컨텍스트를 메모리에 보관한다.
// 프로세스 재시작 시 세션이 사라지는 것은 의도된 제약이다. 영속성이 필요하면
// 외부 키-값 저장소를 상위에서 붙인다.
package session

import (
	"sync"
	"time"

	"sisyphe-bot/llm"
)

// ChatSession 은 하나의 대화 스레드 상태다.
type ChatSession struct {
	ChatID       int64
	Turns        []llm.Turn
	LastActivity time.Time

	// ProviderHint 는 마지막으로 응답에 성공한 provider 이름이다. (선택적)
	ProviderHint string
}

// Store 는 chat id 를 키로 하는 동시성 안전 세션 저장소다.
// provider 호출 동안 락을 잡지 않도록 Snapshot/Commit 으로 나뉘어 있고,
// 같은 채팅에 동시 메시지가 오면 Commit 은 last-writer-wins 로 해소된다.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*ChatSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*ChatSession)}
}

// Get 은 세션의 복사본을 돌려준다. 없으면 두 번째 값이 false 다.
func (s *Store) Get(chatID int64) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return ChatSession{}, false
	}
	return s.copySession(sess), true
}

// Snapshot 은 provider 호출에 쓸 최근 maxTurns 개의 turn 복사본을 돌려준다.
// 세션이 없으면 nil 을 돌려준다. 락은 복사 동안만 잡는다.
func (s *Store) Snapshot(chatID int64, maxTurns int) []llm.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok || len(sess.Turns) == 0 {
		return nil
	}
	turns := sess.Turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]llm.Turn, len(turns))
	copy(out, turns)
	return out
}

// Commit 은 성공한 교환(user turn + assistant turn)을 세션에 반영한다.
// 세션이 없으면 만들고, maxTurns 를 넘는 오래된 turn 은 앞에서부터 버린다.
func (s *Store) Commit(chatID int64, userTurn, assistantTurn llm.Turn, maxTurns int, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &ChatSession{ChatID: chatID}
		s.sessions[chatID] = sess
	}
	sess.Turns = append(sess.Turns, userTurn, assistantTurn)
	if maxTurns > 0 && len(sess.Turns) > maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-maxTurns:]
	}
	sess.LastActivity = assistantTurn.Time
	if provider != "" {
		sess.ProviderHint = provider
	}
}

// Touch 는 turn 히스토리는 건드리지 않고 last-activity 만 갱신한다.
// 실패한 교환은 기억하지 않지만 세션이 조기 만료되는 것은 막는다.
func (s *Store) Touch(chatID int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &ChatSession{ChatID: chatID}
		s.sessions[chatID] = sess
	}
	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
}

// Reset 은 해당 채팅의 세션을 제거한다. (/reset 명령)
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// SweepExpired 는 idle 보다 오래 비활성인 세션을 제거하고 제거 수를 돌려준다.
func (s *Store) SweepExpired(now time.Time, idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for chatID, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > idle {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed
}

// Len 은 현재 보관 중인 세션 수를 돌려준다.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) copySession(sess *ChatSession) ChatSession {
	out := ChatSession{
		ChatID:       sess.ChatID,
		LastActivity: sess.LastActivity,
		ProviderHint: sess.ProviderHint,
	}
	out.Turns = make([]llm.Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return out
}

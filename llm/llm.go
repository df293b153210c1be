package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role 은 대화 turn 의 화자를 나타낸다.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn 은 대화의 한 메시지다.
type Turn struct {
	Role Role
	Text string
	Time time.Time
}

// Request 는 provider 에 독립적인 생성 요청이다.
// Turns 는 오래된 것부터 순서대로, 이미 context window 로 잘린 상태를 기대한다.
type Request struct {
	Turns        []Turn
	UserText     string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	TopP         float64
}

// Provider 는 하나의 LLM 백엔드를 감싼다.
// 구현은 고정된 집합(gemini, perplexity)이며 모두 같은 계약을 따른다.
type Provider interface {
	Name() string

	// Generate 는 응답 텍스트를 돌려주거나 아래 typed error 중 하나를 반환한다.
	Generate(ctx context.Context, req Request) (string, error)

	// Probe 는 전체 생성 호출 없이 자격증명/연결 상태만 확인한다.
	Probe(ctx context.Context) error
}

// ErrNoProviders 는 fallback 체인이 비어 있을 때 반환된다.
var ErrNoProviders = errors.New("llm: no providers configured")

// AuthError 는 자격증명 문제를 나타낸다. fallback 으로 가리지 않고 즉시 표면화한다.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth error: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitedError 는 쿼터 초과를 나타낸다. RetryAfter 는 힌트일 뿐 강제되지 않는다.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// UnavailableError 는 타임아웃을 포함한 일시적 장애를 나타낸다.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// MalformedError 는 provider 응답이 기대한 envelope 과 다를 때 반환된다.
// API drift 진단을 위해 Detail 에 원문 일부를 담는다.
type MalformedError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Detail)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Retryable 은 다음 provider 로 fallback 해도 되는 에러인지 판단한다.
// AuthError 는 절대 retryable 이 아니다.
func Retryable(err error) bool {
	var rl *RateLimitedError
	var ua *UnavailableError
	var mf *MalformedError
	return errors.As(err, &rl) || errors.As(err, &ua) || errors.As(err, &mf)
}

// IsRateLimited 는 쿼터 초과 여부를 판단한다. 라우터가 사과 문구를 고를 때 사용한다.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsAuthError 는 자격증명 문제 여부를 판단한다.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

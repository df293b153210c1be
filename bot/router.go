// Package bot 은 수신 메시지를 명령과 자유 대화로 분류해 응답을 만든다.
// 인바운드 메시지 하나당 응답은 정확히 하나다.
package bot

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sisyphe-bot/admin"
	"sisyphe-bot/article"
	"sisyphe-bot/internal/logger"
	"sisyphe-bot/internal/trace"
	"sisyphe-bot/config"
	"sisyphe-bot/llm"
	"sisyphe-bot/persona"
	"sisyphe-bot/session"
)

// sweepEvery 처리 건수마다 라우터가 만료 세션을 정리한다.
// 백그라운드 sweeper 가 죽어도 세션이 무한히 쌓이지 않게 하는 2차 방어선이다.
const sweepEvery = 50

// Inbound 는 플랫폼에서 파싱을 마친 수신 메시지다.
type Inbound struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Time     time.Time
}

// Reply 는 응답이다. PhotoURL 이 비어 있지 않으면 사진으로 보낸다.
type Reply struct {
	Text         string
	PhotoURL     string
	PhotoCaption string
}

// Generator 는 fallback 체인의 인터페이스다. 테스트에서 가짜로 대체한다.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (text string, provider string, err error)
}

// Researcher 는 Perplexity 의 검색/fiche/ebook 플로우다.
type Researcher interface {
	Search(ctx context.Context, query string) (string, error)
	CreateFiche(ctx context.Context, title string) (string, error)
	FindBookLinks(ctx context.Context, title string) ([]string, error)
}

// ImageSearcher 는 /img 명령의 이미지 검색 협력자다.
type ImageSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

type Router struct {
	chain  Generator
	store  *session.Store
	admins *admin.Manager

	// research 와 images 는 키가 없으면 nil 일 수 있다.
	research Researcher
	images   ImageSearcher

	window      int
	idleTimeout time.Duration
	gen         config.GenerationConfig

	handled atomic.Uint64

	// 테스트에서 네트워크 없이 /resume 을 검증하기 위한 간접 호출 지점
	fetchPage   func(ctx context.Context, url string) (string, error)
	extractText func(html string) string
}

func NewRouter(chain Generator, store *session.Store, admins *admin.Manager, research Researcher, images ImageSearcher, cfg config.AppConfig) *Router {
	return &Router{
		chain:       chain,
		store:       store,
		admins:      admins,
		research:    research,
		images:      images,
		window:      cfg.Session.ContextWindowSize,
		idleTimeout: cfg.SessionIdleTimeout(),
		gen:         cfg.Generation,
		fetchPage:   article.Fetch,
		extractText: article.ExtractText,
	}
}

// HandleMessage 는 메시지 하나를 처리해 응답 하나를 돌려준다. 절대 빈 응답을 주지 않는다.
func (r *Router) HandleMessage(ctx context.Context, in Inbound) Reply {
	exchangeID := uuid.NewString()
	logger.InfoWithFields("message received", logger.Fields{
		"exchange_id": exchangeID,
		"chat_id":     in.ChatID,
		"user_id":     in.UserID,
		"request_id":  trace.RequestIDFromContext(ctx),
	})

	if n := r.handled.Add(1); n%sweepEvery == 0 {
		if removed := r.store.SweepExpired(time.Now(), r.idleTimeout); removed > 0 {
			logger.InfoWithFields("expired sessions swept", logger.Fields{"removed": removed})
		}
	}

	var reply Reply
	if cmd, args, ok := parseCommand(in.Text); ok {
		reply = r.handleCommand(ctx, in, cmd, args, exchangeID)
	} else {
		reply = r.handleConversation(ctx, in, exchangeID)
	}

	if reply.Text == "" && reply.PhotoURL == "" {
		reply.Text = persona.ReplyEmpty
	}
	return reply
}

// handleConversation 은 세션 히스토리를 실어 provider 체인을 호출한다.
func (r *Router) handleConversation(ctx context.Context, in Inbound, exchangeID string) Reply {
	turns := r.store.Snapshot(in.ChatID, r.window)

	systemPrompt := persona.SystemPrompt
	if r.admins.IsAdmin(in.UserID) {
		// 별칭까지 알려줘야 대화 중 "Marcy" 같은 호칭도 같은 사람으로 이어진다.
		known := r.admins.Describe(in.UserID, in.Username)
		systemPrompt += "\n\nTu parles actuellement avec " + known + ", à qui tu peux faire confiance."
	}

	req := llm.Request{
		Turns:        turns,
		UserText:     in.Text,
		SystemPrompt: systemPrompt,
		Temperature:  r.gen.Temperature,
		MaxTokens:    r.gen.MaxTokens,
		TopP:         r.gen.TopP,
	}

	text, provider, err := r.chain.Generate(ctx, req)
	if err != nil {
		// 실패 시 히스토리는 건드리지 않되 세션 만료 시계는 갱신한다.
		r.store.Touch(in.ChatID, in.Time)
		logger.ErrorWithFields("all providers failed", logger.Fields{
			"exchange_id": exchangeID,
			"chat_id":     in.ChatID,
			"error":       err.Error(),
			"request_id":  trace.RequestIDFromContext(ctx),
			"span_id":     trace.CurrentSpanID(ctx),
		})
		if llm.IsRateLimited(err) {
			return Reply{Text: persona.ReplyBusy}
		}
		return Reply{Text: persona.ReplyError}
	}

	formatted := persona.Format(text)
	r.store.Commit(in.ChatID,
		llm.Turn{Role: llm.RoleUser, Text: in.Text, Time: in.Time},
		llm.Turn{Role: llm.RoleAssistant, Text: formatted, Time: time.Now()},
		r.window, provider)

	logger.InfoWithFields("reply generated", logger.Fields{
		"exchange_id": exchangeID,
		"chat_id":     in.ChatID,
		"provider":    provider,
		"request_id":  trace.RequestIDFromContext(ctx),
		"span_id":     trace.CurrentSpanID(ctx),
	})
	return Reply{Text: formatted}
}

// parseCommand 는 "/cmd@botname args" 형태를 분해한다.
func parseCommand(text string) (cmd, args string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(trimmed[1:], " ")
	if head == "" {
		return "", "", false
	}
	// 그룹 채팅에서는 /cmd@botname 형태로 들어온다.
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

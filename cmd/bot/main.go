package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"sisyphe-bot/admin"
	"sisyphe-bot/bot"
	"sisyphe-bot/internal/logger"
	"sisyphe-bot/config"
	"sisyphe-bot/imagesearch"
	"sisyphe-bot/llm"
	"sisyphe-bot/session"
	"sisyphe-bot/telegram"
)

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	token := config.TelegramToken()
	if token == "" {
		log.Fatal("TELEGRAM_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, perplexity, err := buildProviders(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	chain := llm.NewChain(cfg.ProviderTimeout(), providers...)

	store := session.NewStore()
	go runSweeper(ctx, store, cfg)

	var images bot.ImageSearcher
	if keys := config.GoogleCSEKeys(); len(keys) > 0 && config.GoogleCSEID() != "" {
		images = imagesearch.NewSearcher(keys, config.GoogleCSEID(), cfg.ImageSearch.AllowedDomains, cfg.ImageSearch.MaxResults)
	} else {
		logger.Log.Warn("image search disabled: GOOGLE_CSE_KEYS or GOOGLE_CSE_ID not set")
	}

	var research bot.Researcher
	if perplexity != nil {
		research = perplexity
	}

	admins := admin.NewManager(cfg.Admins)
	router := bot.NewRouter(chain, store, admins, research, images, cfg)

	// long-poll 대기보다 넉넉한 요청 타임아웃
	client := telegram.NewClient(token, 50*time.Second)
	poller := telegram.NewPoller(client, makeHandler(router, client), 30)

	logger.InfoWithFields("bot worker starting", logger.Fields{
		"primary":   cfg.Providers.Primary,
		"fallbacks": cfg.Providers.Fallbacks,
	})
	poller.Run(ctx)
}

// buildProviders 는 설정의 우선순위 순서대로 provider 를 구성한다.
// Perplexity 인스턴스는 /search, /fiche 플로우에도 쓰이므로 따로 돌려준다.
func buildProviders(ctx context.Context, cfg config.AppConfig) ([]llm.Provider, *llm.PerplexityProvider, error) {
	var perplexity *llm.PerplexityProvider

	order := append([]string{cfg.Providers.Primary}, cfg.Providers.Fallbacks...)
	var providers []llm.Provider
	for _, name := range order {
		switch name {
		case "gemini":
			p, err := llm.NewGemini(ctx, config.GeminiAPIKey(), cfg.Providers.GeminiModel)
			if err != nil {
				logger.WarnWithFields("gemini provider skipped", logger.Fields{"error": err.Error()})
				continue
			}
			providers = append(providers, p)
		case "perplexity":
			key := config.PerplexityAPIKey()
			if key == "" {
				logger.Log.Warn("perplexity provider skipped: PERPLEXITY_API_KEY not set")
				continue
			}
			perplexity = llm.NewPerplexity(key, cfg.Providers.PerplexityModel, cfg.Providers.PerplexityResearchModel, cfg.ProviderTimeout())
			providers = append(providers, perplexity)
		default:
			logger.WarnWithFields("unknown provider in config, skipped", logger.Fields{"provider": name})
		}
	}
	if len(providers) == 0 {
		return nil, nil, llm.ErrNoProviders
	}
	return providers, perplexity, nil
}

func makeHandler(router *bot.Router, client *telegram.Client) telegram.Handler {
	return func(ctx context.Context, msg *telegram.Message) {
		in := bot.Inbound{
			ChatID: msg.Chat.ID,
			Text:   msg.Text,
			Time:   time.Unix(msg.Date, 0),
		}
		if msg.From != nil {
			in.UserID = msg.From.ID
			in.Username = msg.From.FirstName
		}

		reply := router.HandleMessage(ctx, in)

		if reply.PhotoURL != "" {
			if err := client.SendPhoto(ctx, in.ChatID, reply.PhotoURL, reply.PhotoCaption); err != nil {
				logger.ErrorWithFields("photo send failed", logger.Fields{
					"chat_id": in.ChatID,
					"error":   err.Error(),
				})
				// 사진 전송 실패도 응답 없이 끝나면 안 된다.
				_ = client.SendMessage(ctx, in.ChatID, reply.PhotoURL)
			}
			return
		}
		if err := client.SendMessage(ctx, in.ChatID, reply.Text); err != nil {
			logger.ErrorWithFields("reply send failed", logger.Fields{
				"chat_id": in.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

func runSweeper(ctx context.Context, store *session.Store, cfg config.AppConfig) {
	ticker := time.NewTicker(cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.SweepExpired(time.Now(), cfg.SessionIdleTimeout()); removed > 0 {
				logger.InfoWithFields("expired sessions swept", logger.Fields{"removed": removed})
			}
		}
	}
}

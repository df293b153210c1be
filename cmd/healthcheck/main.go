package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sisyphe-bot/internal/logger"
	"sisyphe-bot/config"
	_ "sisyphe-bot/docs" // swag will generate this package
	"sisyphe-bot/health"
	"sisyphe-bot/llm"
)

// @title           Sisyphe Health API
// @version         1.0
// @description     Liveness and readiness endpoints for the Sisyphe bot
// @BasePath        /
func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := buildProber(ctx, cfg)
	rep := health.NewReporter(prober, cfg.ProviderTimeout())
	r := health.NewRouter(rep)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	health.StartKeepAlive(ctx, "http://127.0.0.1:"+port)

	logger.InfoWithFields("health service starting", logger.Fields{"port": port})
	if err := r.Run(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// buildProber 는 설정의 primary provider 하나만 probe 대상으로 만든다.
// 구성 실패는 not-ready 상태로만 나타나야 하므로 프로세스를 죽이지 않는다.
func buildProber(ctx context.Context, cfg config.AppConfig) health.Prober {
	switch cfg.Providers.Primary {
	case "gemini":
		p, err := llm.NewGemini(ctx, config.GeminiAPIKey(), cfg.Providers.GeminiModel)
		if err != nil {
			logger.WarnWithFields("readiness prober unavailable", logger.Fields{"error": err.Error()})
			return nil
		}
		return p
	case "perplexity":
		return llm.NewPerplexity(config.PerplexityAPIKey(), cfg.Providers.PerplexityModel, cfg.Providers.PerplexityResearchModel, cfg.ProviderTimeout())
	default:
		logger.WarnWithFields("unknown primary provider", logger.Fields{"provider": cfg.Providers.Primary})
		return nil
	}
}

package health

import (
	"context"
	"net/http"
	"time"

	"sisyphe-bot/internal/httpclient"
	"sisyphe-bot/internal/logger"
)

const (
	pingInterval    = 3 * time.Minute
	maxPingFailures = 5
)

// StartKeepAlive 는 무료 호스팅의 idle 회수를 막기 위해 자기 자신을 주기적으로 호출한다.
// 연속 실패가 maxPingFailures 에 도달하면 에러 로그 후 카운터를 리셋하고 계속 돈다.
func StartKeepAlive(ctx context.Context, baseURL string) {
	go func() {
		client := httpclient.New(httpclient.Config{Timeout: 10 * time.Second})
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
			if err != nil {
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				failures++
				logger.WarnWithFields("keep-alive ping failed", logger.Fields{
					"attempt": failures,
					"max":     maxPingFailures,
					"error":   err.Error(),
				})
				if failures >= maxPingFailures {
					logger.Log.Error("keep-alive ping reached maximum consecutive failures")
					failures = 0
				}
				continue
			}
			httpclient.DrainAndClose(resp)
			if resp.StatusCode == http.StatusOK {
				failures = 0
			} else {
				logger.WarnWithFields("keep-alive ping unexpected status", logger.Fields{
					"status": resp.StatusCode,
				})
			}
		}
	}()
	logger.Log.Info("keep-alive pinger started")
}

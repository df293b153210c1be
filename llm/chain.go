package llm

import (
	"context"
	"errors"
	"time"

	"sisyphe-bot/internal/logger"
	"sisyphe-bot/internal/trace"
)

// Chain 은 설정된 우선순위대로 provider 를 시도하는 fallback 호출기다.
// 동일한 입력과 설정에 대해 시도 순서는 항상 같다.
type Chain struct {
	providers []Provider

	// timeout 은 provider 한 번의 호출에 적용된다. 초과는 unavailable 로 분류된다.
	timeout time.Duration
}

// NewChain 은 주어진 순서의 provider 들로 체인을 만든다.
func NewChain(timeout time.Duration, providers ...Provider) *Chain {
	return &Chain{providers: providers, timeout: timeout}
}

// Primary 는 체인의 첫 provider 를 돌려준다. readiness probe 대상이다.
func (c *Chain) Primary() Provider {
	if len(c.providers) == 0 {
		return nil
	}
	return c.providers[0]
}

// Generate 는 provider 들을 순서대로 시도한다.
//   - 성공: 응답 텍스트와 응답한 provider 이름을 돌려준다.
//   - AuthError: 즉시 중단하고 표면화한다. fallback 으로 가리지 않는다.
//   - retryable 에러: 로그를 남기고 다음 provider 로 넘어간다. (어댑터 내 재시도는 없음)
//   - 전부 소진: 마지막 에러를 돌려준다.
func (c *Chain) Generate(ctx context.Context, req Request) (string, string, error) {
	if len(c.providers) == 0 {
		return "", "", ErrNoProviders
	}

	requestID := trace.RequestIDFromContext(ctx)
	var lastErr error

	for i, p := range c.providers {
		callCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		start := time.Now()
		text, err := p.Generate(callCtx, req)
		duration := time.Since(start)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if i > 0 {
				logger.InfoWithFields("llm fallback succeeded", logger.Fields{
					"provider":   p.Name(),
					"attempt":    i + 1,
					"duration":   duration.String(),
					"request_id": requestID,
				})
			}
			return text, p.Name(), nil
		}

		// 호출 타임아웃은 unavailable 로 정규화한 뒤 fallback 대상으로 취급한다.
		if errors.Is(err, context.DeadlineExceeded) && !Retryable(err) && !IsAuthError(err) {
			err = &UnavailableError{Provider: p.Name(), Err: err}
		}

		if IsAuthError(err) {
			logger.ErrorWithFields("llm auth error, aborting fallback", logger.Fields{
				"provider":   p.Name(),
				"attempt":    i + 1,
				"error":      err.Error(),
				"request_id": requestID,
			})
			return "", p.Name(), err
		}

		if !Retryable(err) {
			// 분류되지 않은 에러도 마스킹하지 않도록 unavailable 로 감싼 뒤 fallback 한다.
			err = &UnavailableError{Provider: p.Name(), Err: err}
		}

		logger.WarnWithFields("llm provider failed, trying next", logger.Fields{
			"provider":   p.Name(),
			"attempt":    i + 1,
			"duration":   duration.String(),
			"error":      err.Error(),
			"request_id": requestID,
		})
		lastErr = err
	}

	return "", "", lastErr
}

package telegram

import (
	"context"
	"time"

	"sisyphe-bot/internal/logger"
	"sisyphe-bot/internal/trace"
)

// Handler 는 하나의 수신 메시지를 처리한다. 업데이트마다 고루틴에서 호출된다.
type Handler func(ctx context.Context, msg *Message)

// Poller 는 getUpdates long-poll 루프를 돌며 메시지를 핸들러로 넘긴다.
type Poller struct {
	client      *Client
	handler     Handler
	pollTimeout int
	backoff     time.Duration
}

func NewPoller(client *Client, handler Handler, pollTimeoutSec int) *Poller {
	if pollTimeoutSec <= 0 {
		pollTimeoutSec = 30
	}
	return &Poller{
		client:      client,
		handler:     handler,
		pollTimeout: pollTimeoutSec,
		backoff:     3 * time.Second,
	}
}

// Run 은 ctx 가 취소될 때까지 폴링한다.
// 폴링 에러는 치명적이지 않다: 잠시 쉬고 같은 offset 으로 재시도한다.
func (p *Poller) Run(ctx context.Context) {
	var offset int64

	logger.Log.Info("telegram poller started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("telegram poller stopped")
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("telegram poller stopped")
				return
			}
			logger.WarnWithFields("telegram poll failed, backing off", logger.Fields{
				"offset": offset,
				"error":  err.Error(),
			})
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			msg := update.Message
			if msg == nil || msg.Text == "" {
				continue
			}
			// 업데이트마다 독립적인 요청 트레이스를 부여한다.
			handlerCtx := trace.WithRequestAndSpan(context.WithoutCancel(ctx), trace.GenerateID(), 0)
			go p.handler(handlerCtx, msg)
		}
	}
}

// Package health 는 호스팅 플랫폼이 쓰는 liveness/readiness 판정을 담당한다.
// 봇 워커와는 프로세스가 분리되어 있어 서로의 상태를 공유하지 않는다.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sisyphe-bot/internal/logger"
)

// Prober 는 readiness 판정에 쓰는 최소 인터페이스다. primary provider 가 구현한다.
type Prober interface {
	Name() string
	Probe(ctx context.Context) error
}

// Status 는 /status 엔드포인트가 내보내는 스냅샷이다.
type Status struct {
	ProcessID     string    `json:"process_id"`
	Live          bool      `json:"live"`
	Ready         bool      `json:"ready"`
	Provider      string    `json:"provider,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

type Reporter struct {
	processID    string
	startedAt    time.Time
	prober       Prober
	probeTimeout time.Duration

	mu          sync.RWMutex
	lastOK      bool
	lastChecked time.Time
}

func NewReporter(prober Prober, probeTimeout time.Duration) *Reporter {
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Reporter{
		processID:    uuid.NewString(),
		startedAt:    time.Now(),
		prober:       prober,
		probeTimeout: probeTimeout,
	}
}

// CheckLiveness 는 프로세스가 응답하는 한 참이다.
func (r *Reporter) CheckLiveness() bool { return true }

// CheckReadiness 는 primary provider probe 를 실행하고 결과를 기록한다.
// probe 실패는 프로세스를 죽이지 않는다. 503 과 로그로만 나타난다.
func (r *Reporter) CheckReadiness(ctx context.Context) bool {
	ok := false
	if r.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		err := r.prober.Probe(probeCtx)
		cancel()
		if err != nil {
			logger.WarnWithFields("readiness probe failed", logger.Fields{
				"provider": r.prober.Name(),
				"error":    err.Error(),
			})
		}
		ok = err == nil
	}

	r.mu.Lock()
	r.lastOK = ok
	r.lastChecked = time.Now()
	r.mu.Unlock()
	return ok
}

func (r *Reporter) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider := ""
	if r.prober != nil {
		provider = r.prober.Name()
	}
	return Status{
		ProcessID:     r.processID,
		Live:          true,
		Ready:         r.lastOK,
		Provider:      provider,
		LastCheckedAt: r.lastChecked,
		UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
	}
}

package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisyphe-bot/llm"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeProvider) Probe(ctx context.Context) error { return nil }

func TestChainPrimarySuccess(t *testing.T) {
	primary := &fakeProvider{name: "a", text: "bonjour"}
	fallback := &fakeProvider{name: "b", text: "unused"}
	chain := llm.NewChain(time.Second, primary, fallback)

	text, provider, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.NoError(t, err)
	assert.Equal(t, "bonjour", text)
	assert.Equal(t, "a", provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not be touched on primary success")
}

func TestChainFallsBackOnRateLimit(t *testing.T) {
	primary := &fakeProvider{name: "a", err: &llm.RateLimitedError{Provider: "a", RetryAfter: time.Minute}}
	fallback := &fakeProvider{name: "b", text: "réponse de secours"}
	chain := llm.NewChain(time.Second, primary, fallback)

	text, provider, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.NoError(t, err)
	assert.Equal(t, "réponse de secours", text)
	assert.Equal(t, "b", provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainAbortsOnAuthError(t *testing.T) {
	primary := &fakeProvider{name: "a", err: &llm.AuthError{Provider: "a", Err: errors.New("bad key")}}
	fallback := &fakeProvider{name: "b", text: "unused"}
	chain := llm.NewChain(time.Second, primary, fallback)

	_, provider, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.Error(t, err)
	assert.True(t, llm.IsAuthError(err), "auth error must surface, not be masked by fallback")
	assert.Equal(t, "a", provider)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainReturnsLastErrorWhenExhausted(t *testing.T) {
	primary := &fakeProvider{name: "a", err: &llm.UnavailableError{Provider: "a", Err: errors.New("down")}}
	fallback := &fakeProvider{name: "b", err: &llm.RateLimitedError{Provider: "b"}}
	chain := llm.NewChain(time.Second, primary, fallback)

	_, _, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.Error(t, err)
	assert.True(t, llm.IsRateLimited(err))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainWrapsUnclassifiedErrors(t *testing.T) {
	primary := &fakeProvider{name: "a", err: errors.New("boom")}
	fallback := &fakeProvider{name: "b", text: "ok"}
	chain := llm.NewChain(time.Second, primary, fallback)

	text, provider, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.NoError(t, err, "unclassified primary error should still allow fallback")
	assert.Equal(t, "ok", text)
	assert.Equal(t, "b", provider)
}

type hangingProvider struct {
	name  string
	calls int
}

func (h *hangingProvider) Name() string { return h.name }

func (h *hangingProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	h.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func (h *hangingProvider) Probe(ctx context.Context) error { return nil }

func TestChainTimeoutTriggersFallback(t *testing.T) {
	primary := &hangingProvider{name: "a"}
	fallback := &fakeProvider{name: "b", text: "réponse de secours"}
	chain := llm.NewChain(50*time.Millisecond, primary, fallback)

	text, provider, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	require.NoError(t, err, "a primary that never answers must not take the chain down with it")
	assert.Equal(t, "réponse de secours", text)
	assert.Equal(t, "b", provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainNoProviders(t *testing.T) {
	chain := llm.NewChain(time.Second)

	_, _, err := chain.Generate(context.Background(), llm.Request{UserText: "salut"})

	assert.ErrorIs(t, err, llm.ErrNoProviders)
	assert.Nil(t, chain.Primary())
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, llm.Retryable(&llm.RateLimitedError{Provider: "p"}))
	assert.True(t, llm.Retryable(&llm.UnavailableError{Provider: "p"}))
	assert.True(t, llm.Retryable(&llm.MalformedError{Provider: "p", Detail: "drift"}))
	assert.False(t, llm.Retryable(&llm.AuthError{Provider: "p"}))
	assert.False(t, llm.Retryable(errors.New("plain")))
}

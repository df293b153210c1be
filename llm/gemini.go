package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider 는 google.golang.org/genai 기반 provider 다.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey string, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Turns)+1)
	for _, t := range req.Turns {
		role := genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.UserText}},
	})

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", g.classify(err)
	}

	if result == nil || len(result.Candidates) == 0 ||
		result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &MalformedError{Provider: g.Name(), Detail: "no valid candidates in response"}
	}
	part := result.Candidates[0].Content.Parts[0]
	if part == nil || part.Text == "" {
		return "", &MalformedError{Provider: g.Name(), Detail: "first candidate part is not text"}
	}
	return part.Text, nil
}

// Probe 는 전체 생성 호출 대신 CountTokens 로 자격증명/연결만 확인한다.
func (g *GeminiProvider) Probe(ctx context.Context) error {
	_, err := g.client.Models.CountTokens(ctx, g.model, genai.Text("ping"), nil)
	if err != nil {
		return g.classify(err)
	}
	return nil
}

func (g *GeminiProvider) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UnavailableError{Provider: g.Name(), Err: err}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return &AuthError{Provider: g.Name(), Err: err}
		case apiErr.Code == 429:
			return &RateLimitedError{Provider: g.Name(), Err: err}
		case apiErr.Code == 400:
			return &MalformedError{Provider: g.Name(), Detail: apiErr.Message, Err: err}
		case apiErr.Code >= 500:
			return &UnavailableError{Provider: g.Name(), Err: err}
		}
	}

	// SDK 가 구조화된 에러를 주지 않는 경우의 안전망. (quota 초과 메시지 등)
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "429"):
		return &RateLimitedError{Provider: g.Name(), Err: err}
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return &AuthError{Provider: g.Name(), Err: err}
	}
	return &UnavailableError{Provider: g.Name(), Err: err}
}

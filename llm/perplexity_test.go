package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisyphe-bot/internal/httpclient"
)

func newTestPerplexity(t *testing.T, handler http.HandlerFunc) *PerplexityProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &PerplexityProvider{
		base:          httpclient.NewBaseClientWithClient(srv.Client(), srv.URL),
		apiKey:        "test-key",
		model:         "sonar",
		researchModel: "sonar-pro",
	}
}

func chatResponse(content string, citations []string) []byte {
	payload := map[string]any{
		"id":    "resp-1",
		"model": "sonar",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	if len(citations) > 0 {
		payload["citations"] = citations
	}
	buf, _ := json.Marshal(payload)
	return buf
}

func TestPerplexityGenerate(t *testing.T) {
	var captured pplxRequest
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write(chatResponse("Bonjour.", nil))
	})

	text, err := p.Generate(t.Context(), Request{
		Turns:        []Turn{{Role: RoleUser, Text: "salut"}, {Role: RoleAssistant, Text: "*tourne une page*"}},
		UserText:     "ça va ?",
		SystemPrompt: "persona",
		Temperature:  0.7,
		MaxTokens:    256,
		TopP:         0.9,
	})

	require.NoError(t, err)
	assert.Equal(t, "Bonjour.", text)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "ça va ?", captured.Messages[3].Content)
	assert.False(t, captured.Stream)
}

func TestPerplexityStatusClassification(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, IsAuthError(err))
			},
		},
		{
			name:    "rate limited with retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rl *RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 30*time.Second, rl.RetryAfter)
			},
		},
		{
			name:   "unprocessable is malformed",
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, err error) {
				var mf *MalformedError
				assert.ErrorAs(t, err, &mf)
			},
		},
		{
			name:   "server error is unavailable",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var ua *UnavailableError
				assert.ErrorAs(t, err, &ua)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			_, err := p.Generate(t.Context(), Request{UserText: "salut"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestPerplexityMalformedEnvelope(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json at all"))
		})
		_, err := p.Generate(t.Context(), Request{UserText: "salut"})
		var mf *MalformedError
		require.ErrorAs(t, err, &mf)
	})

	t.Run("empty choices", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})
		_, err := p.Generate(t.Context(), Request{UserText: "salut"})
		var mf *MalformedError
		require.ErrorAs(t, err, &mf)
	})
}

func TestPerplexityEmptyKeyIsAuthError(t *testing.T) {
	called := false
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	p.apiKey = ""

	_, err := p.Generate(t.Context(), Request{UserText: "salut"})

	assert.True(t, IsAuthError(err))
	assert.False(t, called, "no request should leave the process without credentials")
}

func TestPerplexityCreateFicheAppendsCitations(t *testing.T) {
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		var req pplxRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "sonar-pro", req.Model)
		_, _ = w.Write(chatResponse("Fiche de Berserk.", []string{"https://example.org/berserk"}))
	})

	fiche, err := p.CreateFiche(t.Context(), "Berserk")

	require.NoError(t, err)
	assert.Contains(t, fiche, "Fiche de Berserk.")
	assert.Contains(t, fiche, "✦ **LIENS & RÉFÉRENCES** ✦")
	assert.Contains(t, fiche, "🔗 https://example.org/berserk")
}

func TestPerplexityFindBookLinksKeepsDirectFileURLs(t *testing.T) {
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		var req pplxRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "sonar-pro", req.Model)
		_, _ = w.Write(chatResponse(
			"https://gallica.bnf.fr/candide.PDF\n"+
				"Voici un lien intéressant :\n"+
				"https://www.gutenberg.org/candide.epub\n"+
				"https://example.org/candide.html\n", nil))
	})

	links, err := p.FindBookLinks(t.Context(), "Candide")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://gallica.bnf.fr/candide.PDF",
		"https://www.gutenberg.org/candide.epub",
	}, links)
}

func TestPerplexityFindBookLinksRequiresTitle(t *testing.T) {
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.FindBookLinks(t.Context(), "  ")
	assert.Error(t, err)
}

func TestPerplexitySearchRequiresQuery(t *testing.T) {
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := p.Search(t.Context(), "   ")
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sisyphe-bot/internal/httpclient"
)

const perplexityBaseURL = "https://api.perplexity.ai"

// searchSystemPrompt 는 /search 명령에 쓰는 리서치 지침이다. (응답은 항상 프랑스어)
const searchSystemPrompt = `Tu es un assistant de recherche expert qui :
1. Répond de manière factuelle et directe
2. Se concentre sur les informations vérifiées et pertinentes
3. Structure la réponse de manière claire et concise
4. Cite ses sources quand c'est possible
5. Traduit toujours la réponse en français

Pour une recherche sur une personne :
- Commence par les informations essentielles (dates, nationalité, domaine)
- Mentionne les réalisations principales
- Ajoute un fait intéressant ou une citation notable

Format de réponse :
1. Présentation en 2-3 phrases
2. Points clés si nécessaire (max 3)
3. Sources en fin de réponse

Reste factuel et précis.`

// ficheSystemPrompt 는 /fiche 명령의 출력 형식을 고정한다.
const ficheSystemPrompt = `Tu es un expert en anime, manga, séries et webtoons.
Ta tâche est de créer une fiche détaillée et complète.

Recherche et collecte TOUTES les informations suivantes :
- Titre complet en français/anglais et titre original en japonais
- Type exact (anime, film, série TV, OVA, webtoon, etc.)
- Créateur(s), studio/production, année et période de diffusion
- Genres précis, nombre d'épisodes/chapitres/durée
- Synopsis complet et description de l'univers
- Personnages principaux (3-4 maximum) avec descriptions
- Thèmes majeurs (3-4 maximum), adaptations et œuvres dérivées

Retourne UNIQUEMENT les informations organisées dans ce format EXACT :

┌───────────────────────────────────────────────┐
│               ✦ [TITRE] ✦                    │
│              *[TITRE EN JAPONAIS]*            │
└───────────────────────────────────────────────┘

◈ **Type** : [Type]
◈ **Créateur** : [Créateur]
◈ **Studio** : [Studio]
◈ **Année** : [Année]
◈ **Genres** : [Genres]
◈ **Épisodes** : [Nombre d'épisodes]
◈ **Univers** : [Description de l'univers]

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
✦ **SYNOPSIS** ✦
▪ [Résumé du synopsis]

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
✦ **PERSONNAGES PRINCIPAUX** ✦
🔹 **[Nom du personnage]** – [Description]

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
✦ **THÈMES MAJEURS** ✦
◈ [Thème]

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
✦ **ADAPTATIONS & ŒUVRES ANNEXES** ✦
▪ [Manga/Anime/etc.]

IMPORTANT :
1. Utilise EXACTEMENT ce format avec tous les caractères spéciaux
2. Remplace les [crochets] par les vraies informations
3. Garde les sections vides si pas d'information
4. Conserve la mise en forme Markdown (**, *, etc.)
5. N'ajoute rien d'autre que ce format`

// ebookSystemPrompt 는 /ebook 명령용: 직접 다운로드 URL 만 받도록 강제한다.
const ebookSystemPrompt = `Tu es un expert en recherche de livres numériques qui :
- Utilise des sources fiables et légales (Project Gutenberg, Internet Archive, Gallica, Wikisource, OpenLibrary)
- Vérifie chaque lien pour s'assurer qu'il mène à un fichier
- Retourne uniquement des URLs directes vers des fichiers .pdf, .epub ou .mobi
- S'assure de trouver tous les formats disponibles
- Priorise Gallica et Wikisource pour les livres français

Format de réponse : une URL par ligne, pas de texte explicatif.`

// PerplexityProvider 는 chat-completions HTTP API 기반 provider 다.
// 일반 대화 외에 /search, /fiche, /ebook 명령용 프롬프트 플로우도 제공한다.
type PerplexityProvider struct {
	base          *httpclient.BaseClient
	apiKey        string
	model         string
	researchModel string
}

func NewPerplexity(apiKey, model, researchModel string, timeout time.Duration) *PerplexityProvider {
	client := httpclient.New(httpclient.Config{Timeout: timeout})
	return &PerplexityProvider{
		base:          httpclient.NewBaseClientWithClient(client, perplexityBaseURL),
		apiKey:        apiKey,
		model:         model,
		researchModel: researchModel,
	}
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

type pplxMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pplxRequest struct {
	Model       string        `json:"model"`
	Messages    []pplxMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type pplxResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (p *PerplexityProvider) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]pplxMessage, 0, len(req.Turns)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, pplxMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, t := range req.Turns {
		messages = append(messages, pplxMessage{Role: string(t.Role), Content: t.Text})
	}
	messages = append(messages, pplxMessage{Role: string(RoleUser), Content: req.UserText})

	resp, err := p.chat(ctx, p.model, messages, req.Temperature, req.MaxTokens, req.TopP)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// Search 는 리서치 프롬프트로 단발 검색을 수행한다. 세션 히스토리는 쓰지 않는다.
func (p *PerplexityProvider) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("perplexity: empty search query")
	}
	messages := []pplxMessage{
		{Role: string(RoleSystem), Content: searchSystemPrompt},
		{Role: string(RoleUser), Content: "Recherche détaillée sur : " + query},
	}
	resp, err := p.chat(ctx, p.model, messages, 0.7, 1024, 0.9)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CreateFiche 는 research 모델로 작품 fiche 를 만들고 citations 를 하단에 붙인다.
func (p *PerplexityProvider) CreateFiche(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("perplexity: empty fiche title")
	}
	messages := []pplxMessage{
		{Role: string(RoleSystem), Content: ficheSystemPrompt},
		{Role: string(RoleUser), Content: "Crée une fiche détaillée pour : " + title},
	}
	resp, err := p.chat(ctx, p.researchModel, messages, 0.2, 0, 0.9)
	if err != nil {
		return "", err
	}

	content := resp.Choices[0].Message.Content
	citations := resp.Citations
	if len(citations) == 0 {
		// 구버전 응답 호환: 본문에서 URL 을 추려 출처로 사용한다.
		for _, word := range strings.Fields(content) {
			if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
				citations = append(citations, word)
			}
		}
	}
	if len(citations) > 0 {
		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		b.WriteString("✦ **LIENS & RÉFÉRENCES** ✦\n")
		for _, source := range citations {
			b.WriteString("🔗 ")
			b.WriteString(source)
			b.WriteString("\n")
		}
		content = b.String()
	}
	return content, nil
}

// FindBookLinks 는 research 모델로 다운로드 가능한 전자책 URL 을 찾는다.
// 응답에서 .pdf/.epub/.mobi 로 끝나는 줄만 골라낸다.
func (p *PerplexityProvider) FindBookLinks(ctx context.Context, title string) ([]string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("perplexity: empty book title")
	}
	messages := []pplxMessage{
		{Role: string(RoleSystem), Content: ebookSystemPrompt},
		{Role: string(RoleUser), Content: "Trouve des liens de téléchargement directs (.pdf, .epub, .mobi) pour le livre : " + title},
	}
	resp, err := p.chat(ctx, p.researchModel, messages, 0.3, 0, 0.9)
	if err != nil {
		return nil, err
	}

	var links []string
	for _, line := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		u := strings.TrimSpace(line)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		lower := strings.ToLower(u)
		if strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".epub") || strings.HasSuffix(lower, ".mobi") {
			links = append(links, u)
		}
	}
	return links, nil
}

// Probe 는 자격증명 존재 여부와 엔드포인트 도달 가능성만 확인한다.
func (p *PerplexityProvider) Probe(ctx context.Context) error {
	if p.apiKey == "" {
		return &AuthError{Provider: p.Name(), Err: fmt.Errorf("api key is empty")}
	}
	req, err := p.base.NewRequest(ctx, http.MethodHead, "/", nil, nil)
	if err != nil {
		return &UnavailableError{Provider: p.Name(), Err: err}
	}
	resp, err := p.base.Do(req)
	if err != nil {
		return &UnavailableError{Provider: p.Name(), Err: err}
	}
	httpclient.DrainAndClose(resp)
	return nil
}

func (p *PerplexityProvider) chat(ctx context.Context, model string, messages []pplxMessage, temperature float64, maxTokens int, topP float64) (*pplxResponse, error) {
	if p.apiKey == "" {
		return nil, &AuthError{Provider: p.Name(), Err: fmt.Errorf("api key is empty")}
	}

	payload := pplxRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Stream:      false,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("perplexity: marshal request: %w", err)
	}

	req, err := p.base.NewRequest(ctx, http.MethodPost, "/chat/completions", nil, bytes.NewReader(buf))
	if err != nil {
		return nil, &UnavailableError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.base.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, readErr := httpclient.ReadBody(resp, 5*1024*1024)
	if readErr != nil {
		return nil, &UnavailableError{Provider: p.Name(), Err: readErr}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Provider: p.Name(), Err: fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{
			Provider:   p.Name(),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("status=429 body=%s", truncateBody(body)),
		}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &MalformedError{Provider: p.Name(), Detail: truncateBody(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, &UnavailableError{Provider: p.Name(), Err: fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(body))}
	}

	var out pplxResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &MalformedError{Provider: p.Name(), Detail: truncateBody(body), Err: err}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, &MalformedError{Provider: p.Name(), Detail: "no choices in response"}
	}
	return &out, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncateBody(body []byte) string {
	const maxLen = 512
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

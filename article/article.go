// Package article 은 /resume 명령을 위해 웹 페이지 본문을 가져와 텍스트로 추출한다.
package article

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/advancedlogic/GoOse/pkg/goose"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"sisyphe-bot/internal/httpclient"
	"sisyphe-bot/internal/logger"
)

// maxArticleRunes 는 LLM 프롬프트에 넣을 본문 길이 상한이다.
const maxArticleRunes = 12000

var fetchClient = httpclient.New(httpclient.Config{Timeout: 15 * time.Second})

// Fetch 는 URL 의 HTML 을 내려받는다.
func Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("article fetch: bad url: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; sisyphe-bot/1.0)")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("article fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpclient.DrainAndClose(resp)
		return "", fmt.Errorf("article fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := httpclient.ReadBody(resp, 5*1024*1024)
	if err != nil {
		return "", fmt.Errorf("article fetch: %w", err)
	}
	return string(body), nil
}

// ExtractText 는 readability → trafilatura → goose → raw 순서로 본문 추출을 시도한다.
// 어떤 파서가 성공했든 절대 빈 문자열을 돌려주지 않는다. (최후의 수단은 텍스트 노드 순회)
func ExtractText(htmlStr string) string {
	if text := extractWithReadability(htmlStr); text != "" {
		return clamp(text)
	}
	if text := extractWithTrafilatura(htmlStr); text != "" {
		logger.Log.Debug("article: readability empty, trafilatura succeeded")
		return clamp(text)
	}
	if text := extractWithGoose(htmlStr); text != "" {
		logger.Log.Debug("article: falling back to goose extraction")
		return clamp(text)
	}
	logger.Log.Debug("article: all extractors empty, using raw text walk")
	return clamp(extractRawText(htmlStr))
}

func extractWithReadability(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	article, err := readability.FromDocument(doc, nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func extractWithTrafilatura(htmlStr string) string {
	article, err := trafilatura.Extract(strings.NewReader(htmlStr), trafilatura.Options{})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.ContentText)
}

func extractWithGoose(htmlStr string) string {
	defer func() {
		// goose 는 일부 비정상 HTML 에서 panic 할 수 있다.
		_ = recover()
	}()
	g := goose.New()
	article, err := g.ExtractFromRawHTML(htmlStr, "")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.CleanedText)
}

// extractRawText 는 모든 텍스트 노드를 순회해 이어붙인다.
func extractRawText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

func clamp(text string) string {
	runes := []rune(text)
	if len(runes) <= maxArticleRunes {
		return text
	}
	return string(runes[:maxArticleRunes])
}

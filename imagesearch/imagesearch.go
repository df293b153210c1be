// Package imagesearch 는 /img 명령을 위한 Google Custom Search 이미지 검색이다.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"sisyphe-bot/internal/httpclient"
	"sisyphe-bot/internal/logger"
)

const searchBaseURL = "https://www.googleapis.com/customsearch/v1"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ErrNotConfigured 는 API 키나 엔진 ID 가 없을 때 돌려준다.
var ErrNotConfigured = errors.New("imagesearch: missing api keys or engine id")

// Searcher 는 키 목록을 순환하며 이미지 검색을 수행한다.
type Searcher struct {
	base           *httpclient.BaseClient
	keys           []string
	engineID       string
	allowedDomains []string
	maxResults     int
	keySeq         atomic.Uint64
}

func NewSearcher(keys []string, engineID string, allowedDomains []string, maxResults int) *Searcher {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 5
	}
	httpClient := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
	return &Searcher{
		base:           httpclient.NewBaseClientWithClient(httpClient, searchBaseURL),
		keys:           keys,
		engineID:       engineID,
		allowedDomains: allowedDomains,
		maxResults:     maxResults,
	}
}

// WithBaseURL 은 테스트에서 API 엔드포인트를 바꾸기 위한 것이다.
func (s *Searcher) WithBaseURL(baseURL string) *Searcher {
	s.base.BaseURL = baseURL
	return s
}

// nextKey 는 일일 쿼터 분산을 위해 호출마다 키를 순환시킨다.
func (s *Searcher) nextKey() string {
	n := s.keySeq.Add(1)
	return s.keys[int(n-1)%len(s.keys)]
}

type searchResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search 는 쿼리에 대한 이미지 URL 목록을 돌려준다.
// 허용 도메인 밖이거나 이미지 확장자가 아닌 링크는 걸러낸다.
func (s *Searcher) Search(ctx context.Context, query string) ([]string, error) {
	if len(s.keys) == 0 || s.engineID == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("key", s.nextKey())
	params.Set("cx", s.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(s.maxResults))
	params.Set("safe", "active")

	req, err := s.base.NewRequest(ctx, http.MethodGet, "", params, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagesearch request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp, 2*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("imagesearch: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("imagesearch: parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("imagesearch: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	var urls []string
	for _, item := range parsed.Items {
		if s.isValidImageURL(item.Link) {
			urls = append(urls, item.Link)
		}
		if len(urls) >= s.maxResults {
			break
		}
	}
	logger.DebugWithFields("imagesearch done", logger.Fields{
		"query":    query,
		"returned": len(parsed.Items),
		"kept":     len(urls),
	})
	return urls, nil
}

func (s *Searcher) isValidImageURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)

	allowed := len(s.allowedDomains) == 0
	for _, domain := range s.allowedDomains {
		if strings.Contains(host, domain) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

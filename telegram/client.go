// Package telegram 은 봇이 필요로 하는 최소한의 Telegram Bot API 클라이언트다.
// 공식 SDK 대신 getUpdates/sendMessage/sendPhoto 세 호출만 직접 감싼다.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sisyphe-bot/internal/httpclient"
	"sisyphe-bot/internal/logger"
)

// MessageLimit 는 Telegram 메시지 길이 제한에 여유를 둔 상한이다. (rune 기준)
const MessageLimit = 3900

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// apiResponse is the generic Telegram API response wrapper.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

// Client 는 하나의 봇 토큰에 바인딩된 API 클라이언트다.
type Client struct {
	base *httpclient.BaseClient
}

// NewClient 는 주어진 토큰으로 클라이언트를 만든다.
// requestTimeout 은 long-poll 대기 시간보다 길어야 한다.
func NewClient(token string, requestTimeout time.Duration) *Client {
	httpClient := httpclient.New(httpclient.Config{Timeout: requestTimeout})
	return &Client{
		base: httpclient.NewBaseClientWithClient(httpClient, "https://api.telegram.org/bot"+token),
	}
}

// NewClientWithBaseURL 은 테스트용으로 API base URL 을 바꿀 수 있다.
func NewClientWithBaseURL(baseURL string, requestTimeout time.Duration) *Client {
	httpClient := httpclient.New(httpclient.Config{Timeout: requestTimeout})
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// GetUpdates 는 offset 부터의 업데이트를 long-poll 로 가져온다.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("timeout", strconv.Itoa(timeoutSec))

	req, err := c.base.NewRequest(ctx, http.MethodGet, "/getUpdates", query, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp, 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}

	var wrapper apiResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: parse response: %w", err)
	}
	if !wrapper.OK {
		return nil, fmt.Errorf("telegram getUpdates rejected: %s", wrapper.Description)
	}

	var updates []Update
	if err := json.Unmarshal(wrapper.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: parse result: %w", err)
	}
	return updates, nil
}

type sendMessagePayload struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SendMessage 는 Markdown 모드로 답장을 보낸다. 길이 제한을 넘는 텍스트는 자른다.
// 실패 시 정확히 한 번 재시도하고, 그래도 실패하면 에러를 돌려준다.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := sendMessagePayload{
		ChatID:    chatID,
		Text:      Truncate(text, MessageLimit),
		ParseMode: "Markdown",
	}

	err := c.post(ctx, "/sendMessage", payload)
	if err == nil {
		return nil
	}
	logger.WarnWithFields("telegram sendMessage failed, retrying once", logger.Fields{
		"chat_id": chatID,
		"error":   err.Error(),
	})
	if retryErr := c.post(ctx, "/sendMessage", payload); retryErr != nil {
		return fmt.Errorf("telegram sendMessage failed after retry: %w", retryErr)
	}
	return nil
}

type sendPhotoPayload struct {
	ChatID  int64  `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption,omitempty"`
}

// SendPhoto 는 URL 로 지정한 사진을 보낸다. Telegram 이 직접 다운로드한다.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	payload := sendPhotoPayload{
		ChatID:  chatID,
		Photo:   photoURL,
		Caption: Truncate(caption, 1024),
	}
	if err := c.post(ctx, "/sendPhoto", payload); err != nil {
		return fmt.Errorf("telegram sendPhoto failed: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, relPath string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.base.NewRequest(ctx, http.MethodPost, relPath, nil, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp, 1024*1024)
	if err != nil {
		return err
	}
	var wrapper apiResponse
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !wrapper.OK {
		return fmt.Errorf("api rejected request: status=%d description=%s", resp.StatusCode, wrapper.Description)
	}
	return nil
}

// Truncate returns s truncated to max runes.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

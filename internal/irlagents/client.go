package irlagents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blues/cleanfund/internal/logger"
)

const tasksPath = "/api/v1/tasks"

// maxBodyBytes 读取响应体的上限
const maxBodyBytes = 1 << 20

// ErrMissingAPIKey 未配置 API key
var ErrMissingAPIKey = errors.New("irl agents api key is not configured")

// Task 外部任务 API 的任务条目
type Task struct {
	QuerierId int64   `json:"querierId"`
	Prompt    string  `json:"prompt"`
	Reward    float64 `json:"reward"`
	Token     string  `json:"token"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timeout   float64 `json:"timeout"`
}

// APIError 外部 API 返回非 2xx
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("irl agents api: status %d: %s", e.Status, e.Body)
}

// Permanent 4xx 表示请求本身被拒绝，重试无意义；408 和 429 除外
func (e *APIError) Permanent() bool {
	if e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests {
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// Client IRL Agents 任务 API 客户端
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient timeout 为 0 时不设超时
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// HasAPIKey 是否配置了 API key
func (c *Client) HasAPIKey() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

// CreateTasks 批量创建任务，返回外部 API 的原始 JSON 响应
func (c *Client) CreateTasks(ctx context.Context, tasks []Task) (json.RawMessage, error) {
	if !c.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}

	payload, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tasksPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create tasks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	truncated := len(body) > maxBodyBytes
	if truncated {
		body = body[:maxBodyBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	// 任务已创建，不能按失败处理；超长响应只返回说明，不返回截断的内容
	if truncated {
		logger.Warn("IRL Agents response exceeds %d bytes, body dropped", maxBodyBytes)
		return truncatedResponse(resp.ContentLength), nil
	}

	// 非 JSON 响应按字符串返回
	if !json.Valid(body) {
		quoted, _ := json.Marshal(string(body))
		return quoted, nil
	}
	return json.RawMessage(body), nil
}

// truncatedResponse 超长响应的替代内容
func truncatedResponse(contentLength int64) json.RawMessage {
	out, _ := json.Marshal(map[string]interface{}{
		"truncated":     true,
		"limitBytes":    maxBodyBytes,
		"contentLength": contentLength,
	})
	return out
}

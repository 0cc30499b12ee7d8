package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes 读取服务端响应体的上限
const maxResponseBytes = 1 << 20

// apiClient 调用 cleanfund 服务端
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError 服务端返回的错误
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// createCampaign POST /api/crowdfunding
func (c *apiClient) createCampaign(ctx context.Context, payload *createPayload) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.do(ctx, http.MethodPost, "/api/crowdfunding", payload, &out)
	return out, err
}

// campaign GET /api/crowdfunding/:task_id
func (c *apiClient) campaign(ctx context.Context, taskId string) (*campaignDetail, error) {
	var out campaignDetail
	if err := c.do(ctx, http.MethodGet, "/api/crowdfunding/"+url.PathEscape(taskId), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// dispatch POST /api/irl-agents/tasks
func (c *apiClient) dispatch(ctx context.Context, taskId string) error {
	return c.do(ctx, http.MethodPost, "/api/irl-agents/tasks", map[string]string{"task_id": taskId}, nil)
}

// campaignDetail 详情接口中 cfctl 关心的字段
type campaignDetail struct {
	Crowdfunding struct {
		TaskId          string  `json:"task_id"`
		ContractAddress *string `json:"contract_address"`
		DeployTxHash    *string `json:"deploy_tx_hash"`
		DispatchStatus  string  `json:"dispatch_status"`
	} `json:"crowdfunding"`
	Funding json.RawMessage `json:"funding,omitempty"`
}

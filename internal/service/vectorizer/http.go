package vectorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPConfig 特征抽取服务配置
type HTTPConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
}

// HTTPProvider 调用部署了预训练语言模型的特征抽取服务。
// 服务端负责子词到词元的汇聚，每个输入词元返回一个向量。
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

// embedRequest 特征抽取请求
type embedRequest struct {
	Model  string   `json:"model,omitempty"`
	Tokens []string `json:"tokens"`
}

// embedResponse 特征抽取响应
type embedResponse struct {
	Vectors [][]float64 `json:"vectors"`
	Error   string      `json:"error,omitempty"`
}

// NewHTTPProvider 创建 HTTP 向量提供方
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required for http provider")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EmbedTokens 对一个句子做一次前向计算；网络错误和 5xx 会按指数退避重试
func (p *HTTPProvider) EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Model: p.cfg.Model, Tokens: tokens})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var vectors [][]float64
	op := func() error {
		v, err := p.do(ctx, body)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, p.cfg.MaxRetries), ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *HTTPProvider) do(ctx context.Context, body []byte) ([][]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embed/tokens", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding service error: status %d: %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("embedding service rejected request: status %d: %s", resp.StatusCode, string(data)))
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if out.Error != "" {
		return nil, backoff.Permanent(fmt.Errorf("embedding service error: %s", out.Error))
	}
	return out.Vectors, nil
}

// Close 释放连接
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

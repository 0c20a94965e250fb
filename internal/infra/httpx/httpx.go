package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout 是单次 HTTP 尝试的总超时（请求 + 响应体）。
	DefaultTimeout = 60 * time.Second
	// DefaultRetries 是默认的尝试总数（不是“额外重试”数）。
	DefaultRetries = 2
	// DefaultBackoff 是首次失败后的等待基准，之后每次翻倍。
	DefaultBackoff = time.Second
)

// NewClient 构造外部服务调用用的 HTTP client。
//
// 重试不放在 Transport 层：两个服务客户端（OCR/标题）需要在“整次调用”
// 粒度上重试（含请求体重建），由 Retry 统一承担。
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
		},
		Timeout: timeout,
	}
}

// Retry 执行 fn 最多 attempts 次；第 n 次失败后等待 backoff<<n 再试（n 从 0 起）。
//
// 约定：
// - attempts < 1 按 1 处理
// - ctx 取消后不再等待/重试，返回最后一次错误
// - fn 返回 nil 即成功，立刻返回
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt+1 >= attempts {
			break
		}
		if err := sleepContext(ctx, backoff<<attempt); err != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return lastErr
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PostForm 发送 application/x-www-form-urlencoded POST 并读出完整响应体。
// 非 2xx 状态码视为错误（响应体截断后并入错误消息，便于定位）。
func PostForm(ctx context.Context, c *http.Client, rawURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d：%s", resp.StatusCode, Truncate(string(body), 200))
	}
	return body, nil
}

// Truncate 把超长文本截断到 max 个 rune（用于把服务端响应并入错误消息）。
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

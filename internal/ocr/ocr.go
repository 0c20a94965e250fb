// Package ocr 实现百度式 OCR 服务客户端：
// client-credentials 换取 access_token（带过期缓存），表单上传 base64 图片识别文字。
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/expliyh/VideoTitler/internal/domain"
	"github.com/expliyh/VideoTitler/internal/infra/httpx"
	"github.com/expliyh/VideoTitler/internal/infra/imgx"
)

// 识别模式。
const (
	ModeAccurate = "accurate"
	ModeGeneral  = "general"
)

const (
	defaultAuthURL = "https://aip.baidubce.com/oauth/2.0/token"
	defaultAPIBase = "https://aip.baidubce.com/rest/2.0/ocr/v1"

	// 超过该体积的图片先尝试缩小重编码再上传（4K PNG 容易触发上传超时）。
	maxUploadBytes = 2_000_000
	shrinkMaxSide  = 1600
	shrinkQuality  = 88

	// token 提前 60s 视为过期，避免边界上的竞态失败。
	tokenSafetyMargin = 60 * time.Second
)

// Client 是 OCR 服务客户端。token 缓存由 Client 自有（加锁保护），
// 同一批处理内的所有条目共享一个 Client。
type Client struct {
	APIKey    string
	SecretKey string

	// AuthURL/APIBase 可注入（测试用 httptest 服务替换）。
	AuthURL string
	APIBase string

	Retries int
	Backoff time.Duration
	HTTP    *http.Client

	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New 构造 Client 并填入默认值。
func New(apiKey, secretKey string) *Client {
	return &Client{
		APIKey:    strings.TrimSpace(apiKey),
		SecretKey: strings.TrimSpace(secretKey),
		AuthURL:   defaultAuthURL,
		APIBase:   defaultAPIBase,
		Retries:   httpx.DefaultRetries,
		Backoff:   httpx.DefaultBackoff,
		HTTP:      httpx.NewClient(httpx.DefaultTimeout),
		now:       time.Now,
	}
}

// Recognize 识别图片中的文字，返回按识别顺序换行拼接的非空文本行。
//
// mode：ModeAccurate（高精度）或 ModeGeneral（通用）；其他值是 InvalidArgument。
func (c *Client) Recognize(ctx context.Context, imageBytes []byte, mode string) (string, error) {
	var endpoint string
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case ModeAccurate:
		endpoint = c.APIBase + "/accurate_basic"
	case ModeGeneral:
		endpoint = c.APIBase + "/general_basic"
	default:
		return "", domain.E(domain.ErrKindInvalidArgument, "未知 OCR 模式："+mode, nil)
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	imageBytes = maybeShrink(imageBytes)

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(imageBytes))
	form.Set("language_type", "CHN_ENG")
	form.Set("detect_direction", "true")

	reqURL := endpoint + "?access_token=" + url.QueryEscape(token)

	var body []byte
	err = httpx.Retry(ctx, c.Retries, c.Backoff, func() error {
		var e error
		body, e = httpx.PostForm(ctx, c.HTTP, reqURL, form)
		return e
	})
	if err != nil {
		return "", domain.E(domain.ErrKindOcrFailed, "OCR 请求失败（网络超时/连接）", err)
	}

	var payload struct {
		ErrorCode   *int64 `json:"error_code"`
		ErrorMsg    string `json:"error_msg"`
		WordsResult []struct {
			Words string `json:"words"`
		} `json:"words_result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", domain.E(domain.ErrKindOcrFailed, "OCR 失败：返回不是 JSON", err)
	}
	if payload.ErrorCode != nil {
		// HTTP 200 但服务端报错：原样带出服务端响应。
		return "", domain.E(domain.ErrKindOcrFailed, "OCR 失败："+httpx.Truncate(string(body), 300), nil)
	}

	lines := make([]string, 0, len(payload.WordsResult))
	for _, w := range payload.WordsResult {
		if w.Words != "" {
			lines = append(lines, w.Words)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// accessToken 返回可用的 access_token：缓存有效期内直接复用，否则重新获取。
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}

	if c.APIKey == "" || c.SecretKey == "" {
		return "", domain.E(domain.ErrKindMissingCredential, "缺少 OCR 的 API Key / Secret Key", nil)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.APIKey)
	form.Set("client_secret", c.SecretKey)

	var body []byte
	err := httpx.Retry(ctx, c.Retries, c.Backoff, func() error {
		var e error
		body, e = httpx.PostForm(ctx, c.HTTP, c.AuthURL, form)
		return e
	})
	if err != nil {
		return "", domain.E(domain.ErrKindAuthFailed, "获取 access_token 失败（网络超时/连接）", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", domain.E(domain.ErrKindAuthFailed, "获取 access_token 失败：返回不是 JSON", err)
	}
	if payload.AccessToken == "" {
		return "", domain.E(domain.ErrKindAuthFailed, "获取 access_token 失败："+httpx.Truncate(string(body), 300), nil)
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl < 0 {
		ttl = 0
	}
	c.token = payload.AccessToken
	c.expiresAt = now.Add(ttl)
	return c.token, nil
}

// maybeShrink 对超大图片做缩小重编码；只在结果“严格更小”时替换。
// 任何失败都不致命：直接退回原始字节。
func maybeShrink(imageBytes []byte) []byte {
	if len(imageBytes) <= maxUploadBytes {
		return imageBytes
	}
	shrunk, err := imgx.ShrinkJPEG(imageBytes, shrinkMaxSide, shrinkQuality)
	if err != nil || len(shrunk) == 0 || len(shrunk) >= len(imageBytes) {
		return imageBytes
	}
	return shrunk
}

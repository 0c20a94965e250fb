// Package title 通过 OpenAI 兼容的 chat-completions 服务，把杂乱的 OCR 文本
// 提炼成一行干净的标题。
package title

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/expliyh/VideoTitler/internal/domain"
	"github.com/expliyh/VideoTitler/internal/infra/httpx"
)

const (
	// DefaultBaseURL/DefaultModel 对应 DeepSeek 的公开服务。
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"

	// Placeholder 是 user prompt 模板中 OCR 文本的占位符。
	Placeholder = "{ocr_text}"

	// 低温度 + 小输出上限：标题提炼要的是稳定的一行，不是发挥。
	temperature = 0.2
	maxTokens   = 80
)

// Client 是标题提炼客户端。prompt/model 来自批处理配置快照，一次运行内不变。
type Client struct {
	APIKey  string
	BaseURL string
	Model   string

	SystemPrompt       string
	UserPromptTemplate string

	Retries int
	Backoff time.Duration
}

// New 构造 Client 并填入服务默认值。
func New(apiKey, baseURL, model, systemPrompt, userPromptTemplate string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		APIKey:             strings.TrimSpace(apiKey),
		BaseURL:            baseURL,
		Model:              model,
		SystemPrompt:       systemPrompt,
		UserPromptTemplate: userPromptTemplate,
		Retries:            httpx.DefaultRetries,
		Backoff:            httpx.DefaultBackoff,
	}
}

// ExtractTitle 发起一次 chat-completion，并把回复后处理成单行标题。
//
// 前置条件：
// - API key 非空（MissingCredential）
// - OCR 文本 trim 后非空（EmptyInput）
// - 两个 prompt trim 后非空（InvalidConfig）
func (c *Client) ExtractTitle(ctx context.Context, ocrText string) (string, error) {
	if c.APIKey == "" {
		return "", domain.E(domain.ErrKindMissingCredential, "缺少标题服务 API Key", nil)
	}
	if strings.TrimSpace(ocrText) == "" {
		return "", domain.E(domain.ErrKindEmptyInput, "OCR 文本为空", nil)
	}
	systemPrompt := strings.TrimSpace(c.SystemPrompt)
	template := strings.TrimSpace(c.UserPromptTemplate)
	if systemPrompt == "" {
		return "", domain.E(domain.ErrKindInvalidConfig, "system prompt 为空", nil)
	}
	if template == "" {
		return "", domain.E(domain.ErrKindInvalidConfig, "user prompt 模板为空", nil)
	}

	conf := openai.DefaultConfig(c.APIKey)
	conf.BaseURL = c.BaseURL
	cli := openai.NewClientWithConfig(conf)

	req := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(template, ocrText)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp openai.ChatCompletionResponse
	err := httpx.Retry(ctx, c.Retries, c.Backoff, func() error {
		var e error
		resp, e = cli.CreateChatCompletion(ctx, req)
		return e
	})
	if err != nil {
		return "", domain.E(domain.ErrKindServiceError, "标题服务请求失败", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		raw, _ := json.Marshal(resp)
		return "", domain.E(domain.ErrKindMalformedResponse, "标题服务返回格式异常："+httpx.Truncate(string(raw), 300), nil)
	}

	return Postprocess(resp.Choices[0].Message.Content), nil
}

// buildUserPrompt 把 OCR 文本代入模板；模板缺少占位符时不报错，
// 退化为在模板末尾附加 OCR 文本。
func buildUserPrompt(template, ocrText string) string {
	if strings.Contains(template, Placeholder) {
		return strings.ReplaceAll(template, Placeholder, ocrText)
	}
	return strings.TrimRight(template, " \t\r\n") + "\n\nOCR 文本：\n" + ocrText
}

// Postprocess 把模型回复收敛为一行标题：
// 取第一行非空内容，剥掉首尾引号/空白，再剥掉形如“标题：”/“title:”的前缀标签。
func Postprocess(content string) string {
	line := firstNonEmptyLine(content)
	line = strings.Trim(line, "\"“”' \t")
	line = stripLabel(line)
	return strings.TrimSpace(line)
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// stripLabel 去掉行首的“标题”/“title”标签（大小写不敏感），
// 标签后必须跟至少一个冒号（中英文均可）或空白，否则原样保留。
func stripLabel(line string) string {
	rest := ""
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(line, "标题"):
		rest = line[len("标题"):]
	case strings.HasPrefix(lower, "title"):
		rest = line[len("title"):]
	default:
		return line
	}

	trimmed := strings.TrimLeft(rest, ":： \t")
	if trimmed == rest {
		// 没有分隔符：不是标签，而是标题本身的一部分。
		return line
	}
	return trimmed
}

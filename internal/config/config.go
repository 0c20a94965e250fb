// Package config 负责 config.json 的读写、环境变量覆盖与校验，
// 并在批处理启动时产出一次性的参数快照。
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/expliyh/VideoTitler/internal/domain"
	"github.com/expliyh/VideoTitler/internal/infra/fsx"
	"github.com/expliyh/VideoTitler/internal/ocr"
	"github.com/expliyh/VideoTitler/internal/title"
)

// DefaultFileName 是配置文件名（默认在 cwd 下）。
const DefaultFileName = "config.json"

// maxRecentDirs 是最近目录列表的上限。
const maxRecentDirs = 10

// AppConfig 对应 config.json 的结构。
type AppConfig struct {
	InputDir       string `json:"input_dir"`
	IncludeSubdirs bool   `json:"include_subdirs"`

	FrameNumber int `json:"frame_number_1based"`

	StartIndex   int  `json:"start_index"`
	IndexPadding int  `json:"index_padding"`
	DryRun       bool `json:"dry_run"`

	BaiduAPIKey    string `json:"baidu_api_key"`
	BaiduSecretKey string `json:"baidu_secret_key"`
	BaiduOcrMode   string `json:"baidu_ocr_mode"`

	DeepSeekAPIKey             string `json:"deepseek_api_key"`
	DeepSeekBaseURL            string `json:"deepseek_base_url"`
	DeepSeekModel              string `json:"deepseek_model"`
	DeepSeekSystemPrompt       string `json:"deepseek_system_prompt"`
	DeepSeekUserPromptTemplate string `json:"deepseek_user_prompt_template"`

	// SaveKeysLocally=false 时，Save 会把三个密钥字段抹空后再落盘。
	SaveKeysLocally bool     `json:"save_keys_locally"`
	RecentDirs      []string `json:"recent_dirs"`
}

// Default 返回内置默认配置。默认 dry-run：真实重命名必须显式开启
//（--apply，或配置里的 dry_run=false）。
func Default() AppConfig {
	return AppConfig{
		FrameNumber:     1,
		StartIndex:      1,
		IndexPadding:    3,
		DryRun:          true,
		BaiduOcrMode:    ocr.ModeAccurate,
		DeepSeekBaseURL: title.DefaultBaseURL,
		DeepSeekModel:   title.DefaultModel,
		DeepSeekSystemPrompt: "你是标题提炼助手。你会从杂乱的 OCR 文本中提取一个适合作为短视频标题的中文短句。" +
			"标题是文本中的原文，具有以下特征\n" +
			"- 通常是指引玩家动作的句子或短语\n" +
			"只输出标题本身，不要解释，不要加引号，不要编号，不要换行，修复文本括号不配对的问题。",
		DeepSeekUserPromptTemplate: "从以下 OCR 文本中提取一个适合作为标题的短句（尽量 ≤ 20 个汉字，必要时可包含数字/英文字母）。\n\n" +
			"OCR 文本：\n{ocr_text}\n\n" +
			"输出要求：只输出标题一行。",
	}
}

// Load 读取配置文件并在默认值之上合并。
// 文件不存在不算错误（返回默认配置）；JSON 无效是 InvalidConfig。
func Load(path string) (AppConfig, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, domain.E(domain.ErrKindInvalidConfig, "读取配置文件失败："+path, err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Default(), domain.E(domain.ErrKindInvalidConfig, "配置文件无效："+path, err)
	}
	return cfg, nil
}

// Save 把配置原子写入 path。SaveKeysLocally=false 时密钥不落盘。
func Save(path string, cfg AppConfig) error {
	if !cfg.SaveKeysLocally {
		cfg.BaiduAPIKey = ""
		cfg.BaiduSecretKey = ""
		cfg.DeepSeekAPIKey = ""
	}

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

// ApplyEnv 用环境变量覆盖密钥/服务地址（不落盘的部署方式）。
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("BAIDU_API_KEY"); v != "" {
		cfg.BaiduAPIKey = v
	}
	if v := os.Getenv("BAIDU_SECRET_KEY"); v != "" {
		cfg.BaiduSecretKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.DeepSeekAPIKey = v
	}
	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		cfg.DeepSeekBaseURL = v
	}
	if v := os.Getenv("DEEPSEEK_MODEL"); v != "" {
		cfg.DeepSeekModel = v
	}
}

// TouchRecentDir 把 dir 置于最近目录列表首位（去重，上限 maxRecentDirs）。
func (c *AppConfig) TouchRecentDir(dir string) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return
	}
	out := make([]string, 0, maxRecentDirs)
	out = append(out, dir)
	for _, d := range c.RecentDirs {
		if d != dir && len(out) < maxRecentDirs {
			out = append(out, d)
		}
	}
	c.RecentDirs = out
}

// Validate 校验一次批处理所需的字段。
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.InputDir) == "" {
		return domain.E(domain.ErrKindInvalidConfig, "缺少视频目录（input_dir）", nil)
	}
	if c.FrameNumber < 1 {
		return domain.E(domain.ErrKindInvalidConfig, "帧序号必须 >= 1", nil)
	}
	if c.StartIndex < 1 {
		return domain.E(domain.ErrKindInvalidConfig, "起始序号必须 >= 1", nil)
	}
	if c.IndexPadding < 1 || c.IndexPadding > 8 {
		return domain.E(domain.ErrKindInvalidConfig, "序号补零位数必须在 1..8 之间", nil)
	}
	switch NormalizeOcrMode(c.BaiduOcrMode) {
	case ocr.ModeAccurate, ocr.ModeGeneral:
	default:
		return domain.E(domain.ErrKindInvalidConfig, "OCR 模式无效，只能是 accurate 或 general："+c.BaiduOcrMode, nil)
	}
	if strings.TrimSpace(c.BaiduAPIKey) == "" || strings.TrimSpace(c.BaiduSecretKey) == "" {
		return domain.E(domain.ErrKindMissingCredential, "缺少百度 OCR 的 API Key / Secret Key", nil)
	}
	if strings.TrimSpace(c.DeepSeekAPIKey) == "" {
		return domain.E(domain.ErrKindMissingCredential, "缺少 DeepSeek API Key", nil)
	}
	return nil
}

// Snapshot 产出批处理用的不可变参数快照（运行途中不再回读配置）。
func (c AppConfig) Snapshot() domain.BatchConfig {
	return domain.BatchConfig{
		InputDir:       strings.TrimSpace(c.InputDir),
		IncludeSubdirs: c.IncludeSubdirs,
		FrameNumber:    c.FrameNumber,
		StartIndex:     c.StartIndex,
		IndexPadding:   c.IndexPadding,
		DryRun:         c.DryRun,

		BaiduAPIKey:    strings.TrimSpace(c.BaiduAPIKey),
		BaiduSecretKey: strings.TrimSpace(c.BaiduSecretKey),
		OcrMode:        NormalizeOcrMode(c.BaiduOcrMode),

		DeepSeekAPIKey:     strings.TrimSpace(c.DeepSeekAPIKey),
		DeepSeekBaseURL:    strings.TrimSpace(c.DeepSeekBaseURL),
		DeepSeekModel:      strings.TrimSpace(c.DeepSeekModel),
		SystemPrompt:       c.DeepSeekSystemPrompt,
		UserPromptTemplate: c.DeepSeekUserPromptTemplate,
	}
}

// NormalizeOcrMode 规范化 OCR 模式；兼容旧配置里的 accurate_basic/general_basic。
func NormalizeOcrMode(mode string) string {
	mode = strings.TrimSpace(strings.ToLower(mode))
	mode = strings.TrimSuffix(mode, "_basic")
	return mode
}

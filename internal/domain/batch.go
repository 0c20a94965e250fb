package domain

// BatchConfig 是一次批处理的参数快照。
//
// 不变量：批处理启动时取一次快照，运行途中绝不回读可变的外部配置。
type BatchConfig struct {
	InputDir       string
	IncludeSubdirs bool

	// FrameNumber 是 1 起始的帧序号（传给抽帧器）。
	FrameNumber int

	StartIndex   int
	IndexPadding int
	DryRun       bool

	// OCR
	BaiduAPIKey    string
	BaiduSecretKey string
	// OcrMode：accurate | general
	OcrMode string

	// 标题提炼（OpenAI 兼容 chat-completions 服务）
	DeepSeekAPIKey     string
	DeepSeekBaseURL    string
	DeepSeekModel      string
	SystemPrompt       string
	UserPromptTemplate string
}

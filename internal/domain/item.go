package domain

// Stage 是单条视频在流水线中的阶段。
//
// 不变量：
// - 一次运行内阶段单调推进，不跳段
// - Done/Failed 是终态，不会再次进入其他阶段
type Stage int

const (
	StageQueued Stage = iota
	StageFrameExtracting
	StageOcr
	StageTitleExtracting
	StageRenaming
	StageDone
	StageFailed
)

// Label 返回阶段的中文名（用于 status/错误消息前缀）。
func (s Stage) Label() string {
	switch s {
	case StageQueued:
		return "待处理"
	case StageFrameExtracting:
		return "读取帧"
	case StageOcr:
		return "OCR"
	case StageTitleExtracting:
		return "标题提取"
	case StageRenaming:
		return "重命名"
	case StageDone:
		return "完成"
	case StageFailed:
		return "失败"
	default:
		return "未知"
	}
}

// 条目的对外状态（事件中携带；稳定字符串，展示层自行本地化）。
const (
	StatusQueued     = "queued"
	StatusExtracting = "extracting"
	StatusOcr        = "ocr"
	StatusTitling    = "titling"
	StatusRenaming   = "renaming"
	StatusDone       = "done"
	StatusPreviewed  = "previewed"
	StatusFailed     = "failed"
)

// WorkItem 是一条待处理视频的工作单元。
//
// 所有字段只由编排器在处理期间修改；观察者只通过事件拿到快照，
// 不直接读写 WorkItem（外部编辑必须在没有 worker 运行时进行）。
type WorkItem struct {
	Path string

	Stage   Stage
	OcrText string
	Title   string
	NewName string
	ErrMsg  string
}

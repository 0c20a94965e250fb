package domain

import "image"

// Event 是编排器对外发出的事件（单生产者 -> 单消费者，保序投递）。
//
// 约定：
// - 编排器只发事件，不做任何输出（不污染 stdout 的 JSON 契约）
// - 事件通道在终态 BatchDone 之后关闭；消费者用阻塞接收，不轮询
type Event interface{ isEvent() }

// Progress 报告已完成（含失败）的条目数。
type Progress struct {
	Count int
}

// StatusChanged 报告某条目的状态变化。
type StatusChanged struct {
	Path   string
	Status string
}

// PreviewReady 携带该条目抽取出的预览帧（解码后的图 + 原始 PNG 字节）。
type PreviewReady struct {
	Path  string
	Image image.Image
	PNG   []byte
}

// OcrReady 携带 OCR 识别出的文本。
type OcrReady struct {
	Path string
	Text string
}

// TitleReady 携带提炼出的标题与拟定的新文件名。
type TitleReady struct {
	Path    string
	Title   string
	NewName string
}

// Renamed 报告一次已生效的重命名。
type Renamed struct {
	OldPath string
	NewPath string
}

// ItemFailed 报告条目级失败（消息带阶段前缀；批处理继续）。
type ItemFailed struct {
	Path    string
	Message string
}

// BatchDone 是终态事件：无论停止/失败与否都会发出恰好一次。
type BatchDone struct {
	Summary Summary
}

func (Progress) isEvent()      {}
func (StatusChanged) isEvent() {}
func (PreviewReady) isEvent()  {}
func (OcrReady) isEvent()      {}
func (TitleReady) isEvent()    {}
func (Renamed) isEvent()       {}
func (ItemFailed) isEvent()    {}
func (BatchDone) isEvent()     {}

// Summary 是一次批处理的汇总计数。
type Summary struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Previewed int `json:"previewed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

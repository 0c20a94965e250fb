package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/expliyh/VideoTitler/internal/domain"
)

// progressUI 把事件流渲染成 stderr 上的过程输出。
//
// 设计目标：
// - 所有过程信息写 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：编排器只发事件，CLI 决定如何展示
// - 单消费者：Handle 只会被事件循环这一个 goroutine 调用，无需加锁
type progressUI struct {
	w     io.Writer
	eff   domain.BatchConfig
	total int

	startedAt time.Time
}

func newProgressUI(w io.Writer, eff domain.BatchConfig, total int) *progressUI {
	return &progressUI{w: w, eff: eff, total: total}
}

// OnStart 打印一次生效配置（尽量早，保证用户 1 秒内看到输出）。
func (p *progressUI) OnStart() {
	p.startedAt = time.Now()

	mode := "apply"
	modeHint := ""
	if p.eff.DryRun {
		mode = "dry-run"
		modeHint = "（仅预览，不改名）"
	}

	fmt.Fprintf(p.w, "[%s] VideoTitler run (%s)%s\n", p.startedAt.Format("15:04:05"), mode, modeHint)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", p.eff.InputDir)
	fmt.Fprintf(p.w, "  recursive: %v\n", p.eff.IncludeSubdirs)
	fmt.Fprintf(p.w, "  frame: %d  start: %d  padding: %d\n", p.eff.FrameNumber, p.eff.StartIndex, p.eff.IndexPadding)
	fmt.Fprintf(p.w, "  ocr: %s\n", p.eff.OcrMode)
	fmt.Fprintf(p.w, "  model: %s @ %s\n", p.eff.DeepSeekModel, p.eff.DeepSeekBaseURL)
	fmt.Fprintf(p.w, "扫描到 %d 个视频。\n\n", p.total)
}

// Handle 渲染一条事件。预览帧与 OCR 文本没有展示面（CLI），跳过即可。
func (p *progressUI) Handle(ev domain.Event) {
	switch e := ev.(type) {
	case domain.StatusChanged:
		switch e.Status {
		case domain.StatusPreviewed:
			fmt.Fprintf(p.w, "[预览] %s\n", filepath.Base(e.Path))
		case domain.StatusDone:
			fmt.Fprintf(p.w, "[完成] %s\n", filepath.Base(e.Path))
		}
	case domain.TitleReady:
		fmt.Fprintf(p.w, "标题 %q -> %s\n", e.Title, e.NewName)
	case domain.Renamed:
		fmt.Fprintf(p.w, "重命名 %s -> %s\n", filepath.Base(e.OldPath), filepath.Base(e.NewPath))
	case domain.ItemFailed:
		fmt.Fprintf(p.w, "[失败] %s: %s\n", filepath.Base(e.Path), e.Message)
	case domain.Progress:
		fmt.Fprintf(p.w, "进度 %d/%d\n", e.Count, p.total)
	case domain.BatchDone:
		fmt.Fprintf(p.w, "\n处理结束（%s）：done=%d previewed=%d failed=%d cancelled=%d\n",
			formatShortDuration(time.Since(p.startedAt)),
			e.Summary.Done, e.Summary.Previewed, e.Summary.Failed, e.Summary.Cancelled,
		)
	}
}

func formatShortDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

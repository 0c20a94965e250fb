// Package pipeline 实现逐条视频的处理编排：
// 抽帧 -> OCR -> 标题提炼 -> 重命名，事件化上报，条目间协作式取消。
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/expliyh/VideoTitler/internal/domain"
	"github.com/expliyh/VideoTitler/internal/infra/fsx"
	"github.com/expliyh/VideoTitler/internal/rename"
)

// FrameExtractor 抽取单帧（1 起始帧序号）。
type FrameExtractor interface {
	Extract(ctx context.Context, videoPath string, frameNumber int) ([]byte, image.Image, error)
}

// Recognizer 识别图片中的文字。
type Recognizer interface {
	Recognize(ctx context.Context, imageBytes []byte, mode string) (string, error)
}

// TitleExtractor 把 OCR 文本提炼成一行标题。
type TitleExtractor interface {
	ExtractTitle(ctx context.Context, ocrText string) (string, error)
}

// eventBuffer 是事件通道的缓冲大小。消费者落后太多时生产者会阻塞，
// 这正是“有界流”想要的背压行为。
const eventBuffer = 64

// Runner 按扫描顺序严格串行地处理一批视频。
//
// 并发模型：
// - Run 在单一 worker 上执行，是事件的唯一生产者
// - 观察者是唯一消费者，阻塞接收即可（通道在 BatchDone 后关闭）
// - 处理期间 WorkItem 只归 worker 所有；外部编辑必须等 worker 退出
type Runner struct {
	cfg    domain.BatchConfig
	frames FrameExtractor
	ocr    Recognizer
	titles TitleExtractor

	items  []*domain.WorkItem
	events chan domain.Event
	stop   atomic.Bool
}

// New 基于一次参数快照与扫描结果构造 Runner。
func New(cfg domain.BatchConfig, paths []string, frames FrameExtractor, ocr Recognizer, titles TitleExtractor) *Runner {
	items := make([]*domain.WorkItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, &domain.WorkItem{Path: p, Stage: domain.StageQueued})
	}
	return &Runner{
		cfg:    cfg,
		frames: frames,
		ocr:    ocr,
		titles: titles,
		items:  items,
		events: make(chan domain.Event, eventBuffer),
	}
}

// Events 返回事件通道。通道保序，在终态 BatchDone 事件之后关闭。
func (r *Runner) Events() <-chan domain.Event { return r.events }

// Stop 请求停止：当前条目总会处理到终态，之后不再开始新条目。幂等。
func (r *Runner) Stop() { r.stop.Store(true) }

// Run 执行整批处理并返回最终报告。阻塞直至全部条目终态或被取消；
// 无论如何都会发出恰好一次 BatchDone 并关闭事件通道。
func (r *Runner) Run(ctx context.Context) domain.RunReport {
	started := time.Now().UTC()

	for offset, item := range r.items {
		if r.stop.Load() || ctx.Err() != nil {
			break
		}
		r.runItem(ctx, item, r.cfg.StartIndex+offset)
		r.emit(domain.Progress{Count: offset + 1})
	}

	rr := r.report(started)
	r.emit(domain.BatchDone{Summary: rr.Summary})
	close(r.events)
	return rr
}

// runItem 处理单个条目，并把任何 panic 降级为条目级失败（附完整栈）。
func (r *Runner) runItem(ctx context.Context, item *domain.WorkItem, index int) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(item, fmt.Sprintf("%s异常：%v\n%s", item.Stage.Label(), p, debug.Stack()))
		}
	}()
	r.process(ctx, item, index)
}

func (r *Runner) process(ctx context.Context, item *domain.WorkItem, index int) {
	// 抽帧
	item.Stage = domain.StageFrameExtracting
	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusExtracting})
	pngBytes, img, err := r.frames.Extract(ctx, item.Path, r.cfg.FrameNumber)
	if err != nil {
		r.failErr(item, err)
		return
	}
	r.emit(domain.PreviewReady{Path: item.Path, Image: img, PNG: pngBytes})

	// OCR
	item.Stage = domain.StageOcr
	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusOcr})
	ocrText, err := r.ocr.Recognize(ctx, pngBytes, r.cfg.OcrMode)
	if err != nil {
		r.failErr(item, err)
		return
	}
	item.OcrText = ocrText
	r.emit(domain.OcrReady{Path: item.Path, Text: ocrText})

	// 标题提炼
	item.Stage = domain.StageTitleExtracting
	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusTitling})
	titleText, err := r.titles.ExtractTitle(ctx, ocrText)
	if err != nil {
		r.failErr(item, err)
		return
	}
	item.Title = titleText

	target := rename.BuildTarget(item.Path, index, r.cfg.IndexPadding, titleText)
	target = rename.ResolveConflict(target, "")
	item.NewName = filepath.Base(target)
	r.emit(domain.TitleReady{Path: item.Path, Title: titleText, NewName: item.NewName})

	// 重命名（dry-run 跳过落盘，状态报 previewed）
	item.Stage = domain.StageRenaming
	if r.cfg.DryRun {
		item.Stage = domain.StageDone
		r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusPreviewed})
		return
	}

	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusRenaming})
	if err := fsx.Rename(item.Path, target); err != nil {
		r.failErr(item, domain.E(domain.ErrKindIOFailed, "重命名失败", err))
		return
	}
	r.emit(domain.Renamed{OldPath: item.Path, NewPath: target})

	item.Stage = domain.StageDone
	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusDone})
}

// failErr 把阶段错误降级为条目级失败：消息带阶段前缀，批处理继续。
// 已声明的领域错误报“失败”，其余意外错误报“异常”。
func (r *Runner) failErr(item *domain.WorkItem, err error) {
	word := "失败"
	if domain.ErrKind(err) == "" {
		word = "异常"
	}
	r.fail(item, fmt.Sprintf("%s%s：%v", item.Stage.Label(), word, err))
}

func (r *Runner) fail(item *domain.WorkItem, msg string) {
	item.Stage = domain.StageFailed
	item.ErrMsg = msg
	r.emit(domain.ItemFailed{Path: item.Path, Message: msg})
	r.emit(domain.StatusChanged{Path: item.Path, Status: domain.StatusFailed})
}

func (r *Runner) emit(ev domain.Event) { r.events <- ev }

func (r *Runner) report(started time.Time) domain.RunReport {
	rr := domain.RunReport{
		Dir:       r.cfg.InputDir,
		DryRun:    r.cfg.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemReport, 0, len(r.items)),
	}
	for _, it := range r.items {
		rr.Items = append(rr.Items, domain.ItemReport{
			Src:      it.Path,
			Title:    it.Title,
			NewName:  it.NewName,
			Status:   itemStatus(it, r.cfg.DryRun),
			ErrorMsg: it.ErrMsg,
		})
	}
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func itemStatus(it *domain.WorkItem, dryRun bool) string {
	switch it.Stage {
	case domain.StageDone:
		if dryRun {
			return domain.StatusPreviewed
		}
		return domain.StatusDone
	case domain.StageFailed:
		return domain.StatusFailed
	default:
		// 未进入终态：被取消（Finalize 按 cancelled 归类）。
		return domain.StatusQueued
	}
}

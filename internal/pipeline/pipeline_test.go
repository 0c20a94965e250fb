package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/expliyh/VideoTitler/internal/domain"
)

// 可编程的三个阶段客户端。默认都成功，标题取自 OCR 文本。
type fakeFrames struct {
	fn func(path string, frameNumber int) ([]byte, image.Image, error)
}

func (f *fakeFrames) Extract(ctx context.Context, path string, frameNumber int) ([]byte, image.Image, error) {
	if f.fn != nil {
		return f.fn(path, frameNumber)
	}
	return []byte("png"), image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type fakeOcr struct {
	fn func(imageBytes []byte) (string, error)
}

func (f *fakeOcr) Recognize(ctx context.Context, imageBytes []byte, mode string) (string, error) {
	if f.fn != nil {
		return f.fn(imageBytes)
	}
	return "识别文本", nil
}

type fakeTitles struct {
	fn func(ocrText string) (string, error)
}

func (f *fakeTitles) ExtractTitle(ctx context.Context, ocrText string) (string, error) {
	if f.fn != nil {
		return f.fn(ocrText)
	}
	return "提炼的标题", nil
}

func testConfig(dir string, dryRun bool) domain.BatchConfig {
	return domain.BatchConfig{
		InputDir:     dir,
		FrameNumber:  1,
		StartIndex:   1,
		IndexPadding: 3,
		DryRun:       dryRun,
		OcrMode:      "accurate",
	}
}

// drain 执行 Run 并收集全部事件（事件通道在 BatchDone 后关闭）。
func drain(t *testing.T, r *Runner) ([]domain.Event, domain.RunReport) {
	t.Helper()
	reportCh := make(chan domain.RunReport, 1)
	go func() { reportCh <- r.Run(context.Background()) }()

	var events []domain.Event
	for ev := range r.Events() {
		events = append(events, ev)
	}
	return events, <-reportCh
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestRun_HappyPathRenames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.mp4")
	touch(t, src)

	r := New(testConfig(dir, false), []string{src}, &fakeFrames{}, &fakeOcr{}, &fakeTitles{})
	events, rr := drain(t, r)

	want := filepath.Join(dir, "001-提炼的标题.mp4")
	if _, err := os.Lstat(want); err != nil {
		t.Fatalf("目标文件应存在：%v", err)
	}
	if _, err := os.Lstat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件不应存在：%v", err)
	}

	if rr.Summary.Done != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("汇总不正确：%+v", rr.Summary)
	}
	if len(rr.Items) != 1 || rr.Items[0].Status != domain.StatusDone || rr.Items[0].NewName != "001-提炼的标题.mp4" {
		t.Fatalf("条目报告不正确：%+v", rr.Items)
	}

	assertEventOrder(t, events, []string{
		"StatusChanged:extracting",
		"PreviewReady",
		"StatusChanged:ocr",
		"OcrReady",
		"StatusChanged:titling",
		"TitleReady",
		"StatusChanged:renaming",
		"Renamed",
		"StatusChanged:done",
		"Progress",
		"BatchDone",
	})
}

func TestRun_DryRunDoesNotTouchDisk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.mp4")
	touch(t, src)

	r := New(testConfig(dir, true), []string{src}, &fakeFrames{}, &fakeOcr{}, &fakeTitles{})
	events, rr := drain(t, r)

	if _, err := os.Lstat(src); err != nil {
		t.Fatalf("dry-run 不应移动源文件：%v", err)
	}
	if rr.Summary.Previewed != 1 || rr.Summary.Done != 0 {
		t.Fatalf("汇总不正确：%+v", rr.Summary)
	}
	if rr.Items[0].Status != domain.StatusPreviewed {
		t.Fatalf("条目状态期望 previewed，实际 %q", rr.Items[0].Status)
	}
	// 提案名照常产出。
	if rr.Items[0].NewName != "001-提炼的标题.mp4" {
		t.Fatalf("提案名不正确：%q", rr.Items[0].NewName)
	}

	assertEventOrder(t, events, []string{
		"StatusChanged:extracting",
		"PreviewReady",
		"StatusChanged:ocr",
		"OcrReady",
		"StatusChanged:titling",
		"TitleReady",
		"StatusChanged:previewed",
		"Progress",
		"BatchDone",
	})
}

func TestRun_ItemFailureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.mp4")
	good := filepath.Join(dir, "good.mp4")
	touch(t, bad)
	touch(t, good)

	frames := &fakeFrames{fn: func(path string, _ int) ([]byte, image.Image, error) {
		if path == bad {
			return nil, nil, domain.E(domain.ErrKindFrameExtraction, "抽帧失败", errors.New("ffmpeg exit 1"))
		}
		return []byte("png"), image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}}

	r := New(testConfig(dir, false), []string{bad, good}, frames, &fakeOcr{}, &fakeTitles{})
	events, rr := drain(t, r)

	if rr.Summary.Failed != 1 || rr.Summary.Done != 1 {
		t.Fatalf("汇总不正确：%+v", rr.Summary)
	}
	if rr.Items[0].Status != domain.StatusFailed || rr.Items[0].ErrorMsg == "" {
		t.Fatalf("失败条目报告不正确：%+v", rr.Items[0])
	}
	if rr.Items[1].Status != domain.StatusDone {
		t.Fatalf("后续条目应继续处理：%+v", rr.Items[1])
	}

	var failed []domain.ItemFailed
	for _, ev := range events {
		if e, ok := ev.(domain.ItemFailed); ok {
			failed = append(failed, e)
		}
	}
	if len(failed) != 1 || failed[0].Path != bad {
		t.Fatalf("期望恰好一条 ItemFailed(bad)，实际 %+v", failed)
	}
}

func TestRun_StopBetweenItems(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 3; i++ {
		p := filepath.Join(dir, fmt.Sprintf("v%d.mp4", i))
		touch(t, p)
		paths = append(paths, p)
	}

	var r *Runner
	frames := &fakeFrames{fn: func(path string, _ int) ([]byte, image.Image, error) {
		if path == paths[0] {
			// 第一个条目处理中请求停止：该条目仍会到终态，之后不再开始新条目。
			r.Stop()
		}
		return []byte("png"), image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}}

	r = New(testConfig(dir, false), paths, frames, &fakeOcr{}, &fakeTitles{})
	events, rr := drain(t, r)

	if rr.Summary.Done != 1 || rr.Summary.Cancelled != 2 {
		t.Fatalf("汇总不正确：%+v", rr.Summary)
	}
	if _, ok := events[len(events)-1].(domain.BatchDone); !ok {
		t.Fatalf("最后一个事件应是 BatchDone，实际 %T", events[len(events)-1])
	}
	if rr.Items[1].Status != domain.StatusQueued || rr.Items[2].Status != domain.StatusQueued {
		t.Fatalf("未开始条目应保持 queued：%+v", rr.Items)
	}
}

func TestRun_ContextCancelBetweenItems(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "v1.mp4")
	touch(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(testConfig(dir, false), []string{src}, &fakeFrames{}, &fakeOcr{}, &fakeTitles{})
	reportCh := make(chan domain.RunReport, 1)
	go func() { reportCh <- r.Run(ctx) }()
	var events []domain.Event
	for ev := range r.Events() {
		events = append(events, ev)
	}
	rr := <-reportCh

	if rr.Summary.Cancelled != 1 || rr.Summary.Done != 0 {
		t.Fatalf("汇总不正确：%+v", rr.Summary)
	}
	if len(events) != 1 {
		t.Fatalf("已取消的运行只应发 BatchDone，实际 %d 个事件", len(events))
	}
}

func TestRun_PanicDowngradedToItemFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.mp4")
	good := filepath.Join(dir, "good.mp4")
	touch(t, bad)
	touch(t, good)

	titles := &fakeTitles{fn: func(ocrText string) (string, error) {
		panic("模型客户端内部越界")
	}}

	r := New(testConfig(dir, true), []string{bad, good}, &fakeFrames{}, &fakeOcr{}, titles)
	_, rr := drain(t, r)

	if rr.Summary.Failed != 2 {
		t.Fatalf("panic 应降级为条目失败且批处理继续：%+v", rr.Summary)
	}
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed {
			t.Fatalf("条目状态期望 failed：%+v", it)
		}
	}
}

func TestRun_ConflictSuffixWithinBatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	touch(t, a)
	touch(t, b)

	cfg := testConfig(dir, false)
	cfg.StartIndex = 5
	cfg.IndexPadding = 2

	// 两个条目产出同一标题；序号不同所以目标名不同。
	r := New(cfg, []string{a, b}, &fakeFrames{}, &fakeOcr{}, &fakeTitles{})
	_, rr := drain(t, r)

	if rr.Items[0].NewName != "05-提炼的标题.mp4" {
		t.Fatalf("第一个目标名不正确：%q", rr.Items[0].NewName)
	}
	if rr.Items[1].NewName != "06-提炼的标题.mp4" {
		t.Fatalf("第二个目标名不正确：%q", rr.Items[1].NewName)
	}
}

func TestRun_ExistingTargetGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.mp4")
	touch(t, src)
	touch(t, filepath.Join(dir, "001-提炼的标题.mp4"))

	r := New(testConfig(dir, false), []string{src}, &fakeFrames{}, &fakeOcr{}, &fakeTitles{})
	_, rr := drain(t, r)

	if rr.Items[0].NewName != "001-提炼的标题_2.mp4" {
		t.Fatalf("冲突时应追加 _2，实际 %q", rr.Items[0].NewName)
	}
	if _, err := os.Lstat(filepath.Join(dir, "001-提炼的标题_2.mp4")); err != nil {
		t.Fatalf("目标文件应存在：%v", err)
	}
}

// assertEventOrder 用事件的简名序列校验顺序（StatusChanged 带状态后缀）。
func assertEventOrder(t *testing.T, events []domain.Event, want []string) {
	t.Helper()
	got := make([]string, 0, len(events))
	for _, ev := range events {
		switch e := ev.(type) {
		case domain.StatusChanged:
			got = append(got, "StatusChanged:"+e.Status)
		case domain.PreviewReady:
			got = append(got, "PreviewReady")
		case domain.OcrReady:
			got = append(got, "OcrReady")
		case domain.TitleReady:
			got = append(got, "TitleReady")
		case domain.Renamed:
			got = append(got, "Renamed")
		case domain.ItemFailed:
			got = append(got, "ItemFailed")
		case domain.Progress:
			got = append(got, "Progress")
		case domain.BatchDone:
			got = append(got, "BatchDone")
		default:
			got = append(got, fmt.Sprintf("%T", ev))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("事件数不一致：\n期望 %v\n实际 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 个事件期望 %q，实际 %q\n全部：%v", i, want[i], got[i], got)
		}
	}
}
